// Package iptv implements the IPTV/HDHomeRun HTTP endpoints (C7): the
// HDHomeRun discovery/lineup surface, the M3U playlist, the XMLTV guide,
// and the chunked stream endpoints that attach a client to C5.
//
// Routing follows internal/tuner/server.go's hand-rolled http.ServeMux
// dispatch rather than a third-party router, using Go 1.22+'s
// method+path ServeMux patterns.
package iptv

import (
	"net/http"
	"strings"

	"github.com/headend/streamtv/internal/channelmgr"
	"github.com/headend/streamtv/internal/config"
	"github.com/headend/streamtv/internal/epg"
	"github.com/headend/streamtv/internal/obs"
	"github.com/headend/streamtv/internal/resolver"
	"github.com/headend/streamtv/internal/store"
	"github.com/headend/streamtv/internal/transcoder"
)

// Version is stamped into the HDHomeRun discover.json FirmwareName.
const Version = "1.0"

// Server holds every dependency the HTTP surface needs. It does not own
// their lifecycle -- cmd/streamtv-head constructs and starts everything,
// then wires the shared instances in here.
type Server struct {
	Config     *config.Config
	Store      *store.Store
	Manager    *channelmgr.Manager
	Resolver   *resolver.Resolver
	Transcoder *transcoder.Transcoder
	EPG        *epg.Generator
}

// New builds a Server. Call Routes to obtain the http.Handler to serve.
func New(cfg *config.Config, st *store.Store, mgr *channelmgr.Manager, res *resolver.Resolver, tc *transcoder.Transcoder, gen *epg.Generator) *Server {
	return &Server{Config: cfg, Store: st, Manager: mgr, Resolver: res, Transcoder: tc, EPG: gen}
}

// Routes builds the full mux. Every handler except /device.xml,
// /service.xml, /debug/channels/{number}, and /healthz is wrapped by the
// optional access-token check (§4.7).
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /discover.json", s.withAuth(http.HandlerFunc(s.serveDiscover)))
	mux.Handle("GET /hdhomerun/discover.json", s.withAuth(http.HandlerFunc(s.serveDiscover)))
	mux.Handle("GET /lineup.json", s.withAuth(http.HandlerFunc(s.serveLineup)))
	mux.Handle("GET /hdhomerun/lineup.json", s.withAuth(http.HandlerFunc(s.serveLineup)))
	mux.Handle("GET /lineup_status.json", s.withAuth(http.HandlerFunc(s.serveLineupStatus)))
	mux.Handle("GET /hdhomerun/lineup_status.json", s.withAuth(http.HandlerFunc(s.serveLineupStatus)))
	mux.Handle("GET /device.xml", http.HandlerFunc(s.serveDeviceXML))
	mux.Handle("GET /service.xml", http.HandlerFunc(s.serveServiceXML))

	mux.Handle("GET /iptv/channels.m3u", s.withAuth(http.HandlerFunc(s.serveM3U)))
	mux.Handle("GET /iptv/xmltv.xml", s.withAuth(http.HandlerFunc(s.serveXMLTV)))

	mux.Handle("GET /hdhomerun/auto/v{number}", s.withAuth(http.HandlerFunc(s.serveChannelTS)))
	// net/http.ServeMux wildcards must fill an entire path segment, so
	// "{number}.ts"/"{number}.m3u8" can't be patterns directly; capture the
	// whole last segment and split off the extension ourselves.
	mux.Handle("GET /iptv/channel/{name}", s.withAuth(http.HandlerFunc(s.serveChannelByExt)))
	mux.Handle("GET /iptv/stream/{mediaID}", s.withAuth(http.HandlerFunc(s.serveMediaStream)))

	mux.Handle("GET /debug/channels/{number}", http.HandlerFunc(s.serveDebugChannel))
	mux.Handle("GET /healthz", http.HandlerFunc(s.serveHealth))

	return mux
}

// withAuth enforces §4.7's optional access-token check: when
// Config.AccessToken is set, ?access_token=... must match or the request
// gets a bare 401 (no body, so an unauthenticated probe can't learn
// whether the channel it guessed even exists). An unconfigured token
// means public, matching historical Plex-compatible behavior.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Config.AccessToken != "" && r.URL.Query().Get("access_token") != s.Config.AccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		obs.HTTPRequestsTotal.WithLabelValues(routeLabel(r)).Inc()
		next.ServeHTTP(w, r)
	})
}

func routeLabel(r *http.Request) string {
	if p := r.Pattern; p != "" {
		return p
	}
	return r.URL.Path
}

// baseURL returns the configured public base URL, falling back to a
// localhost default so discover.json/lineup.json always emit something
// usable in dev, per internal/tuner/hdhr.go's own "base :="" fallback
// idiom.
func (s *Server) baseURL() string {
	base := strings.TrimRight(s.Config.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8409"
	}
	return base
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
