// Package resolver implements the Source Resolver (C1): given a
// catalog.MediaItem, produce a stream URL that FFmpeg can open directly,
// plus any extra headers/input options the source requires. Grounded on
// internal/materializer's Interface.Materialize shape (resolve-to-a-
// playable-thing, fail soft with a typed error) and internal/safeurl's
// scheme allow-list.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/config"
	"github.com/headend/streamtv/internal/httpclient"
	"github.com/headend/streamtv/internal/safeurl"
)

// Result is the §4.1 resolved tuple.
type Result struct {
	StreamURL string
	Headers   map[string]string
	ExtraOpts []string
	Source    catalog.Source
}

// Resolver holds the shared HTTP client and per-source configuration
// needed to turn a MediaItem into a Result.
type Resolver struct {
	cfg    *config.Config
	client *http.Client
	cache  *resultCache
}

// New builds a Resolver. cfg supplies per-source auth (cookies files,
// Archive.org session auth, Plex base URL/token).
func New(cfg *config.Config) *Resolver {
	return &Resolver{
		cfg:    cfg,
		client: httpclient.Default(),
		cache:  newResultCache(DefaultTTL),
	}
}

// Resolve is idempotent per (item.URL, channelNameHint) within the
// resolver's TTL cache window, per §4.1. No retries happen here; a failed
// resolve is surfaced immediately and the retry/skip policy lives in C5.
func (r *Resolver) Resolve(ctx context.Context, item catalog.MediaItem, channelNameHint string) (Result, error) {
	if !safeurl.IsHTTPOrHTTPS(item.URL) && !strings.HasPrefix(item.URL, "plex://") {
		return Result{}, &ErrUnsupportedSource{URL: item.URL}
	}
	key := cacheKey{url: item.URL, channelNameHint: channelNameHint}
	return r.cache.getOrResolve(key, func() (Result, error) {
		return r.resolveUncached(ctx, item, channelNameHint)
	})
}

func (r *Resolver) resolveUncached(ctx context.Context, item catalog.MediaItem, channelNameHint string) (Result, error) {
	source := ResolvedSource(item)
	switch source {
	case catalog.SourceYouTube:
		return r.resolveYouTube(ctx, item)
	case catalog.SourceArchiveOrg:
		return r.resolveArchiveOrg(ctx, item)
	case catalog.SourcePBS:
		return r.resolvePBS(item, channelNameHint)
	case catalog.SourcePlex:
		return r.resolvePlex(item)
	default:
		return Result{}, &ErrUnsupportedSource{URL: item.URL}
	}
}

// verifyReachable issues a HEAD through the shared client, gated by
// httpclient.GlobalHostSem so a burst of channel starts hitting the same
// upstream host doesn't thundering-herd it. §4.1 explicitly forbids retries
// at this layer ("retry policy lives in C5"), so this calls client.Do
// exactly once with no retry wrapper. A non-2xx response becomes
// ErrResolutionFailed carrying the upstream status.
func (r *Resolver) verifyReachable(ctx context.Context, rawURL string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("resolver: build request for %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "StreamTV/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	release := httpclient.GlobalHostSem.Acquire(rawURL)
	defer release()
	resp, err := r.client.Do(req)
	if err != nil {
		return &ErrResolutionFailed{URL: rawURL, UpstreamStatus: 0}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ErrResolutionFailed{URL: rawURL, UpstreamStatus: resp.StatusCode}
	}
	return nil
}

func readCookiesFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
