package resolver

import "fmt"

// ErrUnsupportedSource is returned when a MediaItem's URL matches none of
// the known source hosts/paths (§4.1's "else UNKNOWN → fails fast").
type ErrUnsupportedSource struct {
	URL string
}

func (e *ErrUnsupportedSource) Error() string {
	return fmt.Sprintf("resolver: unsupported source for url %q", e.URL)
}

// ErrResolutionFailed wraps a non-2xx upstream response encountered while
// resolving a MediaItem to a playable stream URL.
type ErrResolutionFailed struct {
	URL           string
	UpstreamStatus int
}

func (e *ErrResolutionFailed) Error() string {
	return fmt.Sprintf("resolver: resolution failed for %q: upstream status %d", e.URL, e.UpstreamStatus)
}

// ErrAuthRequired is returned when a source needs credentials (cookies,
// token) that aren't configured.
type ErrAuthRequired struct {
	URL    string
	Source string
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("resolver: auth required for %s url %q", e.Source, e.URL)
}
