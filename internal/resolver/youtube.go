package resolver

import (
	"context"

	"github.com/headend/streamtv/internal/catalog"
)

// resolveYouTube returns item.URL as-is: §4.1 says YouTube resolution "may
// require cookies; caller is responsible for supplying them" rather than
// this repo running a YouTube extractor itself (out of scope — no
// third-party extractor library appears anywhere in the example pack).
// The cookies file, when configured, is surfaced as an extra FFmpeg input
// option so the caller's cookie jar reaches the actual HTTP request.
func (r *Resolver) resolveYouTube(ctx context.Context, item catalog.MediaItem) (Result, error) {
	var extraOpts []string
	if cookies := r.cfg.YouTubeCookiesFile; cookies != "" {
		if c := readCookiesFile(cookies); c != "" {
			extraOpts = append(extraOpts, "-headers", "Cookie: "+c)
		}
	}
	return Result{
		StreamURL: item.URL,
		Source:    catalog.SourceYouTube,
		ExtraOpts: extraOpts,
	}, nil
}
