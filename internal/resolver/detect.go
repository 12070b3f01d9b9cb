package resolver

import (
	"net/url"
	"strings"

	"github.com/headend/streamtv/internal/catalog"
)

// knownPBSHosts serves the same "is this PBS's live HLS edge" test as
// internal/transcoder/command.go's isKnownLivePBSHost, which instead
// matches the substrings "pbs.org" and "video-auth" anywhere in the URL
// (kept separate rather than shared because each call site needs only a
// hostname check, not a cross-package type dependency).
var knownPBSHosts = []string{
	"pbs.org",
	"video-auth.pbs.org",
	"pbs-ahls.akamaized.net",
}

// DetectSource implements §4.1's "from URL host/path" rule. It is the
// fallback used when a MediaItem's stored Source is SourceUnknown; a
// MediaItem that already carries a typed, non-unknown Source is trusted
// as-is (catalog enrichment jobs may know more than a URL shape can).
func DetectSource(rawURL string) catalog.Source {
	u, err := url.Parse(rawURL)
	if err != nil {
		return catalog.SourceUnknown
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") || host == "youtu.be":
		return catalog.SourceYouTube
	case host == "archive.org" || strings.HasSuffix(host, ".archive.org"):
		return catalog.SourceArchiveOrg
	case strings.Contains(host, "pbs") || containsHost(knownPBSHosts, host):
		return catalog.SourcePBS
	case strings.Contains(path, "/library/metadata/") || u.Scheme == "plex":
		return catalog.SourcePlex
	default:
		return catalog.SourceUnknown
	}
}

func containsHost(hosts []string, host string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// ResolvedSource picks item.Source when already known, else detects from URL.
func ResolvedSource(item catalog.MediaItem) catalog.Source {
	if item.Source != catalog.SourceUnknown {
		return item.Source
	}
	return DetectSource(item.URL)
}
