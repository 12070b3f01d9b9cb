package iptv

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/headend/streamtv/internal/broadcaster"
)

// streamHeaders sets §4.7's required chunked-transport headers.
func streamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "video/mp2t")
	h.Set("Cache-Control", "no-cache,no-store,must-revalidate,private")
	h.Set("X-Accel-Buffering", "no")
	h.Set("Connection", "keep-alive")
}

func newRequestID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// serveChannelByExt dispatches /iptv/channel/{number}.ts and
// /iptv/channel/{number}.m3u8 (see server.go's routing note on why this
// can't be two ServeMux patterns).
func (s *Server) serveChannelByExt(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	switch {
	case strings.HasSuffix(name, ".m3u8"):
		s.serveChannelHLSNumber(w, r, strings.TrimSuffix(name, ".m3u8"))
	case strings.HasSuffix(name, ".ts"):
		s.serveChannelTSNumber(w, r, strings.TrimSuffix(name, ".ts"))
	default:
		http.NotFound(w, r)
	}
}

// serveChannelTS handles /hdhomerun/auto/v{number}.
func (s *Server) serveChannelTS(w http.ResponseWriter, r *http.Request) {
	s.serveChannelTSNumber(w, r, r.PathValue("number"))
}

func (s *Server) serveChannelTSNumber(w http.ResponseWriter, r *http.Request, number string) {
	streamHeaders(w)
	reqID := newRequestID()
	if err := s.Manager.GetChannelStream(r.Context(), number, w, reqID); err != nil {
		// Headers may already be written; best effort only.
		http.Error(w, "channel stream: "+err.Error(), http.StatusNotFound)
	}
}

// serveChannelHLSNumber builds an event-style HLS playlist for number: the
// media sequence is the currently-live item's index and the segments are
// /iptv/stream/{media_id} URLs in time-aligned order starting at the item
// currently playing. No #EXT-X-ENDLIST while the channel is live (§4.7).
func (s *Server) serveChannelHLSNumber(w http.ResponseWriter, r *http.Request, number string) {
	const maxSegments = 12

	items, playoutStart, err := s.Manager.Timeline(number)
	if err != nil || len(items) == 0 {
		http.NotFound(w, r)
		return
	}

	now := time.Now()
	idx, _ := broadcaster.CurrentPosition(items, playoutStart, now)

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-PLAYLIST-TYPE:EVENT\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", idx)

	target := 0
	n := len(items)
	if n > maxSegments {
		n = maxSegments
	}
	segs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		it := items[(idx+i)%len(items)]
		dur := it.Media.DurationOrDefault(1800)
		if dur > target {
			target = dur
		}
		segs = append(segs, fmt.Sprintf("#EXTINF:%d,\n%s/iptv/stream/%s\n", dur, s.baseURL(), it.Media.ID))
	}
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", target)
	for _, seg := range segs {
		b.WriteString(seg)
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache,no-store,must-revalidate,private")
	_, _ = w.Write([]byte(b.String()))
}

// serveMediaStream is §6's optional per-media proxy: resolve and
// transcode one media item directly, independent of any channel's
// broadcaster, for an HLS client fetching a playlist segment URL.
func (s *Server) serveMediaStream(w http.ResponseWriter, r *http.Request) {
	mediaID := r.PathValue("mediaID")
	item, ok, err := s.Store.LoadMediaItem(mediaID)
	if err != nil || !ok {
		http.NotFound(w, r)
		return
	}

	result, err := s.Resolver.Resolve(r.Context(), item, "")
	if err != nil {
		http.Error(w, "resolve: "+err.Error(), http.StatusBadGateway)
		return
	}

	streamHeaders(w)
	aw := broadcaster.NewAdaptiveWriter(w)
	defer aw.Flush()

	probe := s.Transcoder.Probe(r.Context(), result.StreamURL)
	_ = s.Transcoder.Stream(r.Context(), result.StreamURL, result.Source, "", probe, func(chunk []byte) error {
		_, werr := aw.Write(chunk)
		return werr
	})
}
