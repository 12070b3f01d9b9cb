package resolver

import (
	"context"
	"net/url"
	"strings"

	"github.com/headend/streamtv/internal/catalog"
)

// resolveArchiveOrg implements §4.1's Archive.org contract: a "details"
// page URL of the form …/details/{identifier}/{filename} is rewritten to
// the direct-download form; an already-direct /download/ URL passes
// through unchanged. Session cookies are injected when configured so
// FFmpeg's request reuses them for access-restricted items.
func (r *Resolver) resolveArchiveOrg(ctx context.Context, item catalog.MediaItem) (Result, error) {
	streamURL := item.URL
	if identifier, filename, ok := parseArchiveOrgDetailsURL(streamURL); ok {
		streamURL = "https://archive.org/download/" + identifier + "/" + filename
	}

	headers := map[string]string{}
	if r.cfg.ArchiveOrgUseAuth {
		if cookies := readCookiesFile(r.cfg.ArchiveOrgCookiesFile); cookies != "" {
			headers["Cookie"] = cookies
		} else {
			return Result{}, &ErrAuthRequired{URL: item.URL, Source: "ARCHIVE_ORG"}
		}
	}

	if err := r.verifyReachable(ctx, streamURL, headers); err != nil {
		return Result{}, err
	}

	return Result{
		StreamURL: streamURL,
		Headers:   headers,
		Source:    catalog.SourceArchiveOrg,
	}, nil
}

// parseArchiveOrgDetailsURL extracts (identifier, filename) from a
// .../details/{identifier}/{filename} path; ok=false for any other shape
// (including an already-direct /download/ URL, which the caller leaves
// untouched).
func parseArchiveOrgDetailsURL(rawURL string) (identifier, filename string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "details" && i+2 < len(parts) {
			return parts[i+1], parts[i+2], true
		}
	}
	return "", "", false
}
