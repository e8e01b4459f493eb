// Package debug provides the optional loopback observability listener
// (SPEC_FULL.md §6 KERNOX_DEBUG_LISTEN_ADDR), adapted from the teacher's
// internal/http/server.go: a plain net/http.ServeMux exposing /healthz,
// /status, and /metrics.
package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
)

// StatusProvider is implemented by the orchestrator so the debug server can
// report live counts without importing the agent package.
type StatusProvider interface {
	EndpointID() string
	Uptime() time.Duration
	LineageSize() int
	RulesLoaded() int
}

// Server is the loopback debug listener.
type Server struct {
	log      *logging.Logger
	counters *metrics.Counters
	status   StatusProvider
	srv      *http.Server
}

// New builds a debug server bound to addr. The caller skips calling Start
// entirely when addr is empty (SPEC_FULL.md §6 default: disabled).
func New(addr string, counters *metrics.Counters, status StatusProvider, log *logging.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		log:      log.WithComponent("debug_server"),
		counters: counters,
		status:   status,
		srv:      &http.Server{Addr: addr, Handler: mux},
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Start runs the listener until ctx is canceled, then shuts it down.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.LogSystemEvent("debug_server_error", "error", err.Error())
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":      "ok",
		"endpoint_id": s.status.EndpointID(),
		"uptime":      s.status.Uptime().String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"endpoint_id":  s.status.EndpointID(),
		"uptime":       s.status.Uptime().String(),
		"lineage_size": s.status.LineageSize(),
		"rules_loaded": s.status.RulesLoaded(),
		"counters":     s.counters.Snapshot(),
	})
}
