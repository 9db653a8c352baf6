package generate

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRedirectWithNoLocation is returned when a 3xx response carries no
// Location header.
var ErrRedirectWithNoLocation = errors.New("redirect response has no Location header")

// ErrPageParamNotFound is returned by Paginate for routes without a [page]
// or [...page] segment.
var ErrPageParamNotFound = errors.New("route has no page parameter")

// StaticPathsError reports a failed static path enumeration.
type StaticPathsError struct {
	Component string
	Err       error
}

func (e *StaticPathsError) Error() string {
	return fmt.Sprintf("getting static paths for %s: %v", e.Component, e.Err)
}

func (e *StaticPathsError) Unwrap() error { return e.Err }

// RenderError is a page or endpoint render failure tagged with the component
// that produced it.
type RenderError struct {
	Component string
	Pathname  string
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s (%s): %v", e.Pathname, e.Component, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// tagRenderError wraps err in a RenderError unless it already carries a
// component.
func tagRenderError(err error, component, pathname string) error {
	var tagged *RenderError
	if errors.As(err, &tagged) && tagged.Component != "" {
		return err
	}
	return &RenderError{Component: component, Pathname: pathname, Err: err}
}

// RedirectNotAllowedError is returned when a redirect response points
// somewhere the redirect policy rejects.
type RedirectNotAllowedError struct {
	Component string
	From      string
	Location  string
	Status    int
}

func (e *RedirectNotAllowedError) Error() string {
	return fmt.Sprintf("%s: redirect %d from %s to %s is not allowed", e.Component, e.Status, e.From, e.Location)
}

// MissingBundleEntryError means the bundler output has no entry for a
// specifier the build depends on.
type MissingBundleEntryError struct {
	Specifier string
}

func (e *MissingBundleEntryError) Error() string {
	return fmt.Sprintf("cannot find the built path for %s", e.Specifier)
}
