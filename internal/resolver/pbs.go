package resolver

import (
	"strings"

	"github.com/headend/streamtv/internal/catalog"
)

// resolvePBS implements §4.1's PBS contract: an .m3u8 manifest URL is
// returned as-is. channelNameHint disambiguates multi-feed live bundles
// (a single PBS member station sometimes multiplexes several channels
// behind one base manifest URL, selected by an appended query parameter);
// anything that isn't already an .m3u8 is not a shape this resolver knows
// how to turn into one, so it's a resolution failure rather than a guess.
func (r *Resolver) resolvePBS(item catalog.MediaItem, channelNameHint string) (Result, error) {
	if !strings.Contains(strings.ToLower(item.URL), ".m3u8") {
		return Result{}, &ErrResolutionFailed{URL: item.URL, UpstreamStatus: 0}
	}
	streamURL := item.URL
	if channelNameHint != "" && !strings.Contains(streamURL, "feed=") {
		sep := "?"
		if strings.Contains(streamURL, "?") {
			sep = "&"
		}
		streamURL += sep + "feed=" + channelNameHint
	}
	return Result{
		StreamURL: streamURL,
		Source:    catalog.SourcePBS,
	}, nil
}
