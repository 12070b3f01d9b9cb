package resolver

import (
	"context"
	"net/http"
	"testing"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/config"
)

// fakeTransport answers every request with status, regardless of host, so
// ArchiveOrg's verifyReachable call can be exercised without a real network
// dependency even though the resolved URL always points at archive.org.
type fakeTransport struct{ status int }

func (f fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: f.status,
		Body:       http.NoBody,
		Header:     make(http.Header),
	}, nil
}

func testResolver() *Resolver {
	r := New(&config.Config{})
	r.client = &http.Client{Transport: fakeTransport{status: http.StatusOK}}
	return r
}

func TestDetectSource(t *testing.T) {
	cases := []struct {
		url  string
		want catalog.Source
	}{
		{"https://www.youtube.com/watch?v=x", catalog.SourceYouTube},
		{"https://youtu.be/x", catalog.SourceYouTube},
		{"https://archive.org/details/x/x.mp4", catalog.SourceArchiveOrg},
		{"https://video-auth.pbs.org/live/a.m3u8", catalog.SourcePBS},
		{"https://plex.example.com/library/metadata/123/file", catalog.SourcePlex},
		{"plex://123", catalog.SourcePlex},
		{"https://cdn.example.com/video.mp4", catalog.SourceUnknown},
	}
	for _, tt := range cases {
		if got := DetectSource(tt.url); got != tt.want {
			t.Errorf("DetectSource(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestResolve_archiveOrgDetailsURL(t *testing.T) {
	r := testResolver()
	item := catalog.MediaItem{URL: "https://archive.org/details/myshow/episode1.mp4"}
	got, err := r.Resolve(context.Background(), item, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "https://archive.org/download/myshow/episode1.mp4"
	if got.StreamURL != want {
		t.Errorf("StreamURL = %q, want %q", got.StreamURL, want)
	}
}

func TestResolve_archiveOrgAuthRequiredWithoutCookies(t *testing.T) {
	r := New(&config.Config{ArchiveOrgUseAuth: true})
	item := catalog.MediaItem{URL: "https://archive.org/download/x/x.mp4"}
	_, err := r.Resolve(context.Background(), item, "")
	if _, ok := err.(*ErrAuthRequired); !ok {
		t.Fatalf("expected ErrAuthRequired, got %T: %v", err, err)
	}
}

func TestResolve_pbsPassthrough(t *testing.T) {
	r := testResolver()
	item := catalog.MediaItem{URL: "https://video-auth.pbs.org/live/station.m3u8"}
	got, err := r.Resolve(context.Background(), item, "feed2")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.StreamURL != "https://video-auth.pbs.org/live/station.m3u8?feed=feed2" {
		t.Errorf("StreamURL = %q", got.StreamURL)
	}
}

func TestResolve_pbsNonManifestFails(t *testing.T) {
	r := testResolver()
	item := catalog.MediaItem{URL: "https://video-auth.pbs.org/live/station.mp4"}
	_, err := r.Resolve(context.Background(), item, "")
	if _, ok := err.(*ErrResolutionFailed); !ok {
		t.Fatalf("expected ErrResolutionFailed, got %T: %v", err, err)
	}
}

func TestResolve_plexRequiresToken(t *testing.T) {
	r := New(&config.Config{PlexEnabled: true})
	item := catalog.MediaItem{URL: "plex://123"}
	_, err := r.Resolve(context.Background(), item, "")
	if _, ok := err.(*ErrAuthRequired); !ok {
		t.Fatalf("expected ErrAuthRequired, got %T: %v", err, err)
	}
}

func TestResolve_plexBuildsTokenURL(t *testing.T) {
	r := New(&config.Config{PlexEnabled: true, PlexBaseURL: "http://plex:32400", PlexToken: "tok123"})
	item := catalog.MediaItem{URL: "plex://456"}
	got, err := r.Resolve(context.Background(), item, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "http://plex:32400/library/metadata/456/file?X-Plex-Token=tok123"
	if got.StreamURL != want {
		t.Errorf("StreamURL = %q, want %q", got.StreamURL, want)
	}
}

func TestResolve_unsupportedSource(t *testing.T) {
	r := testResolver()
	item := catalog.MediaItem{URL: "file:///tmp/x.mp4"}
	_, err := r.Resolve(context.Background(), item, "")
	if _, ok := err.(*ErrUnsupportedSource); !ok {
		t.Fatalf("expected ErrUnsupportedSource, got %T: %v", err, err)
	}
}

func TestResolve_cachesWithinTTL(t *testing.T) {
	r := testResolver()
	calls := 0
	r.cache = newResultCache(DefaultTTL)
	item := catalog.MediaItem{URL: "https://archive.org/download/x/x.mp4"}
	for i := 0; i < 3; i++ {
		_, err := r.cache.getOrResolve(cacheKey{url: item.URL, channelNameHint: ""}, func() (Result, error) {
			calls++
			return Result{StreamURL: item.URL}, nil
		})
		if err != nil {
			t.Fatalf("getOrResolve: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 underlying resolve call, got %d", calls)
	}
}
