package routes

import "sort"

// SortRoutes orders routes by priority, most specific first. Literal segments
// beat dynamic ones, dynamic beat spread, and a deeper route beats a shallower
// one sharing its prefix unless the extra depth is only a spread.
func SortRoutes(manifest Manifest) {
	sort.SliceStable(manifest, func(i, j int) bool {
		return compareRoutes(manifest[i], manifest[j]) < 0
	})
}

func rank(seg Segment) int {
	switch {
	case seg.Spread:
		return 2
	case seg.Dynamic:
		return 1
	default:
		return 0
	}
}

func compareRoutes(a, b *Route) int {
	n := min(len(a.Segments), len(b.Segments))
	for i := 0; i < n; i++ {
		if d := rank(a.Segments[i]) - rank(b.Segments[i]); d != 0 {
			return d
		}
	}

	switch {
	case len(a.Segments) == len(b.Segments):
		return 0
	case len(a.Segments) > len(b.Segments):
		if a.Segments[n].Spread {
			return 1
		}
		return -1
	default:
		if b.Segments[n].Spread {
			return -1
		}
		return 1
	}
}
