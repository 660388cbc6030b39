// Package api exposes a small JSON/WebSocket status API over a compare run:
// kick one off, watch its phase-timing and warning events live over the
// socket, and fetch the rendered report once it finishes. Grounded on the
// teacher's internal/api/server.go net/http wiring (ServeMux route table,
// CORS dev-mode middleware, graceful Shutdown); the large wizard-state
// handler surface is replaced with the much smaller compare-run surface
// schema-diff needs.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/atoreson/schemadiff/internal/compare"
	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/orchestrate"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/report"
	"github.com/atoreson/schemadiff/internal/validate"
	"github.com/atoreson/schemadiff/internal/ws"
)

// Server is the status API server.
type Server struct {
	cfg    *config.Config
	hub    *ws.Hub
	logger *slog.Logger
	port   int
	server *http.Server
	devMode bool

	mu      sync.Mutex
	running bool
	last    *runOutcome
}

type runOutcome struct {
	Diff    *compare.DiffResult `json:"diff"`
	Report  string              `json:"report"`
	Error   string              `json:"error,omitempty"`
}

// New creates a status API server. cfg, if non-nil, is used as the default
// run configuration for POST /api/compare requests that omit a body.
func New(cfg *config.Config, logger *slog.Logger, port int, hub *ws.Hub) *Server {
	return &Server{cfg: cfg, logger: logger, port: port, hub: hub}
}

// WithDevMode enables permissive CORS, for local frontend development.
func (s *Server) WithDevMode(dev bool) *Server {
	s.devMode = dev
	return s
}

// Start starts the HTTP server; blocks until Shutdown or a fatal error.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.devMode {
		handler = s.corsMiddleware(mux)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: handler,
	}

	s.logger.Info("starting status server", "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/result", s.handleResult)
	if s.hub != nil {
		mux.HandleFunc("/api/ws", s.hub.ServeHTTP)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleCompare starts a comparison run in the background, using the
// request body as a config.Config (falling back to the server's default
// config), and streams its progress to every connected WebSocket client.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg
	if r.ContentLength > 0 {
		cfg = &config.Config{}
		if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
			http.Error(w, fmt.Sprintf("decoding request body: %v", err), http.StatusBadRequest)
			return
		}
	}
	if cfg == nil {
		http.Error(w, "no compare configuration provided", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "a compare run is already in progress", http.StatusConflict)
		return
	}
	s.running = true
	s.last = nil
	s.mu.Unlock()

	go s.runCompare(cfg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"started"}`))
}

func (s *Server) runCompare(cfg *config.Config) {
	sink := progress.NewRecorder(func(e progress.Event) {
		if s.hub == nil {
			return
		}
		switch e.Kind {
		case "start":
			s.hub.BroadcastPhaseStart(e)
		case "complete":
			s.hub.BroadcastPhaseComplete(e)
		case "warning":
			s.hub.BroadcastWarning(e)
		}
	})

	outcome := &runOutcome{}
	result, err := orchestrate.Run(context.Background(), cfg, sink)
	if err != nil {
		outcome.Error = err.Error()
		if s.hub != nil {
			s.hub.BroadcastError(err.Error())
		}
	} else {
		var warnings []string
		for _, w := range validate.Check(result.Reference, nil) {
			warnings = append(warnings, "reference: "+w.String())
		}
		for _, w := range validate.Check(result.Target, nil) {
			warnings = append(warnings, "target: "+w.String())
		}

		outcome.Diff = result.Diff
		outcome.Report = report.FormatText(result.Diff, warnings...)
		if s.hub != nil {
			s.hub.BroadcastRunComplete(outcome)
		}
	}

	s.mu.Lock()
	s.running = false
	s.last = outcome
	s.mu.Unlock()
}

// handleResult returns the most recently completed run's diff and rendered
// report, or 404 if no run has completed yet.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	outcome := s.last
	s.mu.Unlock()

	if outcome == nil {
		http.Error(w, "no compare run has completed yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}
