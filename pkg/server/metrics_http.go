package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

// StartMetricsHTTP starts a background HTTP server exposing /metrics (the
// registry from Metrics, in Prometheus text exposition format) and
// /healthz. Disabled when Config.MetricsAddr is empty, matching gospeak's
// pkg/server/metrics_http.go shape.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealthz)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server: metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server: metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleHealthz reports process RSS and uptime via gopsutil, the same
// process-gauge source the wider retrieval pack's chat/realtime servers
// use alongside their Prometheus counters (SPEC_FULL.md DOMAIN STACK).
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		_, _ = fmt.Fprintf(w, "ok\nuptime_seconds %d\n", int64(s.metrics.Uptime().Seconds()))
		return
	}
	mem, err := proc.MemoryInfo()
	rss := int64(0)
	if err == nil && mem != nil {
		rss = int64(mem.RSS)
	}
	_, _ = fmt.Fprintf(w, "ok\nuptime_seconds %d\nrss_bytes %d\n", int64(s.metrics.Uptime().Seconds()), rss)
}
