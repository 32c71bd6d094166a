// Package server exposes the orchestrator over HTTP: a streaming NDJSON
// endpoint, a synchronous variant, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/logging"
	"github.com/AdamTheFirstGitman/scribe/stream"
	"github.com/AdamTheFirstGitman/scribe/workflow"
)

// DefaultStreamBudget bounds a streaming request end to end.
const DefaultStreamBudget = 2 * time.Minute

// DefaultKeepaliveInterval paces idle-connection frames.
const DefaultKeepaliveInterval = 15 * time.Second

// Options configure the HTTP handler.
type Options struct {
	KeepaliveInterval time.Duration
	StreamBudget      time.Duration
	Logger            logging.Logger
}

// Server wires the orchestrator into HTTP handlers.
type Server struct {
	orch   *workflow.Orchestrator
	notes  core.NoteStore
	opts   Options
	logger logging.Logger
}

// New creates a Server. notes may be nil; health then reports only liveness.
func New(orch *workflow.Orchestrator, notes core.NoteStore, optFns ...func(o *Options)) *Server {
	opts := Options{
		KeepaliveInterval: DefaultKeepaliveInterval,
		StreamBudget:      DefaultStreamBudget,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{orch: orch, notes: notes, opts: opts, logger: opts.Logger}
}

// WithKeepaliveInterval overrides the keepalive pacing.
func WithKeepaliveInterval(d time.Duration) func(o *Options) {
	return func(o *Options) { o.KeepaliveInterval = d }
}

// WithStreamBudget overrides the per-request wall-clock bound.
func WithStreamBudget(d time.Duration) func(o *Options) {
	return func(o *Options) { o.StreamBudget = d }
}

// WithLogger sets the handler logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orchestrate", s.handleOrchestrate)
		r.Post("/orchestrate/sync", s.handleOrchestrateSync)
	})

	return r
}

// handleOrchestrate streams orchestration events as NDJSON.
func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch := stream.NewChannel(stream.DefaultQueueSize)
	go s.orch.Run(r.Context(), req, ch)

	err := stream.Serve(r.Context(), w, ch, stream.ServeOptions{
		KeepaliveInterval: s.opts.KeepaliveInterval,
		Budget:            s.opts.StreamBudget,
		Logger:            s.logger,
	})
	if err != nil {
		s.logger.Warn("server.stream.ended", "session_id", req.SessionID, "error", err.Error())
	}
}

// handleOrchestrateSync runs the workflow to completion and returns the
// final result as one JSON document.
func (s *Server) handleOrchestrateSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if s.opts.StreamBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.StreamBudget)
		defer cancel()
	}

	ch := stream.NewChannel(stream.DefaultQueueSize)
	go s.orch.Run(ctx, req, ch)

	var terminal *core.StreamEvent
	keep := func(ev core.StreamEvent) {
		if ev.Terminal() {
			e := ev
			terminal = &e
		}
	}
drain:
	for {
		select {
		case ev := <-ch.Events():
			keep(ev)
		case <-ch.Done():
			for {
				ev, ok := ch.TryNext()
				if !ok {
					break drain
				}
				keep(ev)
			}
		}
	}

	switch {
	case terminal == nil:
		writeError(w, http.StatusInternalServerError, "stream ended without a result")
	case terminal.Type == core.EventError:
		writeError(w, http.StatusInternalServerError, terminal.Error)
	default:
		writeJSON(w, http.StatusOK, terminal.Result)
	}
}

// handleHealth reports process liveness and database connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.notes != nil {
		if err := s.notes.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}
	writeJSON(w, code, status)
}

// decodeRequest parses and validates the request body, writing the error
// response itself on failure.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (core.OrchestrationRequest, bool) {
	var req core.OrchestrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return req, false
	}

	if err := s.orch.Validate(&req); err != nil {
		var inputErr *core.InputError
		if errors.As(err, &inputErr) {
			writeError(w, http.StatusBadRequest, inputErr.Reason)
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
