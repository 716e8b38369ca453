// Package server exposes the daemon's HTTP API: generation, provider
// introspection, project workspaces, preview control, application memory and
// the WebSocket event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/ctxutil"
	"github.com/modelmux/modelmux/events"
	"github.com/modelmux/modelmux/llm"
	"github.com/modelmux/modelmux/memory"
	"github.com/modelmux/modelmux/preview"
	"github.com/modelmux/modelmux/workspace"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server wires the daemon components into an HTTP API.
type Server struct {
	addr      string
	manager   *llm.Manager
	workspace *workspace.Manager
	store     *memory.Store
	preview   *preview.Server
	hub       *events.Hub
	keyrings  map[string]*llm.Keyring
	logger    zerolog.Logger
}

// New creates the API server. store and preview may be nil when those
// features are disabled; their routes then answer 503.
func New(
	addr string,
	manager *llm.Manager,
	ws *workspace.Manager,
	store *memory.Store,
	pv *preview.Server,
	hub *events.Hub,
	keyrings map[string]*llm.Keyring,
	logger zerolog.Logger,
) *Server {
	return &Server{
		addr:      addr,
		manager:   manager,
		workspace: ws,
		store:     store,
		preview:   pv,
		hub:       hub,
		keyrings:  keyrings,
		logger:    logger.With().Str("component", "api_server").Logger(),
	}
}

// Handler builds the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/generate/code", s.handleGenerateCode)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/keys", s.handleKeys)

	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("POST /api/projects/{id}/generate", s.handleProjectGenerate)
	mux.HandleFunc("GET /api/projects/{id}/files", s.handleListFiles)
	mux.HandleFunc("GET /api/projects/{id}/files/{path...}", s.handleReadFile)

	mux.HandleFunc("POST /api/preview/{id}", s.handleStartPreview)
	mux.HandleFunc("DELETE /api/preview", s.handleStopPreview)
	mux.HandleFunc("GET /api/preview", s.handlePreviewStatus)

	mux.HandleFunc("GET /api/memory/patterns", s.handleListPatterns)
	mux.HandleFunc("POST /api/memory/patterns", s.handleAddPattern)
	mux.HandleFunc("GET /api/memory/practices", s.handleListPractices)
	mux.HandleFunc("POST /api/memory/practices", s.handleAddPractice)
	mux.HandleFunc("GET /api/memory/mistakes", s.handleListMistakes)
	mux.HandleFunc("POST /api/memory/mistakes", s.handleRecordMistake)
	mux.HandleFunc("GET /api/memory/feedback", s.handleListFeedback)
	mux.HandleFunc("POST /api/memory/feedback", s.handleAddFeedback)

	mux.HandleFunc("GET /ws", s.handleWS)

	return s.cors(s.withRequestContext(mux))
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx) //nolint:errcheck
	}()

	s.logger.Info().Str("addr", s.addr).Msg("API server listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withRequestContext stamps a request id, attaches the manager to the
// context and logs the request.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := ctxutil.WithRequestID(r.Context(), requestID)
		ctx = ctxutil.WithManager(ctx, s.manager)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]any{
		"service":   "modelmux",
		"version":   Version,
		"status":    "ok",
		"providers": s.manager.AvailableProviders(),
	}, http.StatusOK)
}

func jsonOK(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}

// errorResponse is the structured failure payload for generation errors.
type errorResponse struct {
	Error    string                `json:"error"`
	Kind     string                `json:"kind,omitempty"`
	Provider string                `json:"provider,omitempty"`
	Failures []llm.ProviderFailure `json:"failures,omitempty"`
}

// writeLLMError maps the error taxonomy to HTTP responses.
func writeLLMError(w http.ResponseWriter, err error) {
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			jsonErr(w, err.Error(), 499)
			return
		}
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}

	code := http.StatusBadGateway
	switch llmErr.Kind {
	case llm.KindNoProviders:
		code = http.StatusServiceUnavailable
	case llm.KindProviderNotFound:
		code = http.StatusNotFound
	case llm.KindContentBlocked:
		code = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{ //nolint:errcheck
		Error:    llmErr.Error(),
		Kind:     string(llmErr.Kind),
		Provider: llmErr.Provider,
		Failures: llmErr.Failures,
	})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
