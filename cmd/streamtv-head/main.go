// Command streamtv-head runs the virtual cable head-end: it loads the
// channel catalog and schedules from the store, starts a broadcaster per
// channel, and serves the IPTV/HDHomeRun HTTP surface (discovery, lineup,
// M3U, XMLTV, and the chunked stream endpoints) plus /metrics.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/headend/streamtv/internal/channelmgr"
	"github.com/headend/streamtv/internal/config"
	"github.com/headend/streamtv/internal/epg"
	"github.com/headend/streamtv/internal/iptv"
	"github.com/headend/streamtv/internal/obs"
	"github.com/headend/streamtv/internal/resolver"
	"github.com/headend/streamtv/internal/store"
	"github.com/headend/streamtv/internal/transcoder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	res := resolver.New(cfg)
	tc := transcoder.New(cfg)

	mgr := channelmgr.New(cfg, st, res, tc)
	if err := mgr.Refresh(); err != nil {
		log.Fatalf("refresh channels: %v", err)
	}
	mgr.StartAllChannels(ctx)

	gen := epg.New(mgr, cfg.BuildDays)
	srv := iptv.New(cfg, st, mgr, res, tc, gen)

	mux := http.NewServeMux()
	mux.Handle("/", srv.Routes())
	mux.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("streamtv-head listening on %s (BaseURL %s)", addr, cfg.BaseURL)
		serverErr <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	case <-ctx.Done():
		log.Print("shutting down streamtv-head ...")
		mgr.StopAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		<-serverErr
	}
}
