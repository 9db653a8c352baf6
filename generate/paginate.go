package generate

import (
	"strconv"

	"github.com/ZacxDev/sitegen/routes"
	"github.com/pkg/errors"
)

const (
	defaultPageSize = 10
	pageParam       = "page"
)

type PaginateOptions struct {
	PageSize int
	Params   routes.Params
	Props    map[string]any
}

// Page is handed to paginated pages under the "page" prop.
type Page struct {
	Data        []any
	Start       int
	End         int
	Size        int
	Total       int
	CurrentPage int
	LastPage    int
	URL         PageURLs
}

// PageURLs are empty where no such page exists.
type PageURLs struct {
	Current string
	Prev    string
	Next    string
	First   string
	Last    string
}

// Paginate splits items into pages for a route with a [page] or [...page]
// segment. With a spread segment the first page lives at the bare route.
func Paginate(route *routes.Route, items []any, opts PaginateOptions) ([]StaticPath, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	includesFirst := true
	switch {
	case route.HasSpreadParam(pageParam):
		includesFirst = false
	case hasParam(route, pageParam):
	default:
		return nil, errors.Wrapf(ErrPageParamNotFound, "paginating %s", route.Pattern)
	}

	lastPage := max(1, (len(items)+pageSize-1)/pageSize)

	paramsFor := func(num int) routes.Params {
		p := make(routes.Params, len(opts.Params)+1)
		for k, v := range opts.Params {
			p[k] = v
		}
		if includesFirst || num > 1 {
			p[pageParam] = strconv.Itoa(num)
		}
		return p
	}

	paths := make([]StaticPath, 0, lastPage)
	for num := 1; num <= lastPage; num++ {
		start := (num - 1) * pageSize
		end := min(start+pageSize, len(items))

		urls := PageURLs{Current: route.Generate(paramsFor(num))}
		if num < lastPage {
			urls.Next = route.Generate(paramsFor(num + 1))
			urls.Last = route.Generate(paramsFor(lastPage))
		}
		if num > 1 {
			urls.Prev = route.Generate(paramsFor(num - 1))
			urls.First = route.Generate(paramsFor(1))
		}

		props := make(map[string]any, len(opts.Props)+1)
		for k, v := range opts.Props {
			props[k] = v
		}
		props[pageParam] = &Page{
			Data:        items[start:end],
			Start:       start,
			End:         end - 1,
			Size:        pageSize,
			Total:       len(items),
			CurrentPage: num,
			LastPage:    lastPage,
			URL:         urls,
		}

		paths = append(paths, StaticPath{Params: paramsFor(num), Props: props})
	}

	return paths, nil
}

func hasParam(route *routes.Route, name string) bool {
	for _, n := range route.ParamNames() {
		if n == name {
			return true
		}
	}
	return false
}
