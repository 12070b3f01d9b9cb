package iptv

import (
	"net/http"
	"strings"

	"github.com/headend/streamtv/internal/epg"
)

// serveM3U writes channels.m3u, adapted from internal/tuner/m3u.go's
// #EXTM3U/#EXTINF writer to read from the channel manager instead of an
// in-memory []catalog.LiveChannel slice.
func (s *Server) serveM3U(w http.ResponseWriter, r *http.Request) {
	base := s.baseURL()
	channels := s.Manager.Channels()

	w.Header().Set("Content-Type", "audio/x-mpegurl; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte("#EXTM3U\n"))

	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		logo := epg.LogoURL(base, ch.Logo, ch.Number)
		var b strings.Builder
		b.WriteString("#EXTINF:-1 tvg-id=\"")
		b.WriteString(escapeM3UAttr(ch.Number))
		b.WriteString("\" tvg-name=\"")
		b.WriteString(escapeM3UAttr(ch.Name))
		b.WriteString("\"")
		if ch.Group != "" {
			b.WriteString(" group-title=\"")
			b.WriteString(escapeM3UAttr(ch.Group))
			b.WriteString("\"")
		}
		b.WriteString(" tvg-logo=\"")
		b.WriteString(escapeM3UAttr(logo))
		b.WriteString("\",")
		b.WriteString(strings.ReplaceAll(ch.Name, ",", " "))
		b.WriteString("\n")
		b.WriteString(base + "/iptv/channel/" + ch.Number + ".ts\n")
		_, _ = w.Write([]byte(b.String()))
	}
}

func escapeM3UAttr(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
