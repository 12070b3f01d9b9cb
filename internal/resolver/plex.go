package resolver

import (
	"strings"

	"github.com/headend/streamtv/internal/catalog"
)

// resolvePlex implements §4.1's Plex contract: build a
// /library/metadata/{ratingKey}/... URL carrying X-Plex-Token as a query
// parameter (left in the URL, not stripped into a header, because FFmpeg
// preserves query strings across redirects the way a header would not
// survive without extra -headers plumbing).
func (r *Resolver) resolvePlex(item catalog.MediaItem) (Result, error) {
	if !r.cfg.PlexEnabled {
		return Result{}, &ErrAuthRequired{URL: item.URL, Source: "PLEX"}
	}
	if r.cfg.PlexToken == "" {
		return Result{}, &ErrAuthRequired{URL: item.URL, Source: "PLEX"}
	}

	streamURL := item.URL
	if strings.HasPrefix(streamURL, "plex://") {
		ratingKey := strings.TrimPrefix(streamURL, "plex://")
		base := strings.TrimSuffix(r.cfg.PlexBaseURL, "/")
		streamURL = base + "/library/metadata/" + ratingKey + "/file"
	}
	sep := "?"
	if strings.Contains(streamURL, "?") {
		sep = "&"
	}
	streamURL += sep + "X-Plex-Token=" + r.cfg.PlexToken

	return Result{
		StreamURL: streamURL,
		Source:    catalog.SourcePlex,
	}, nil
}
