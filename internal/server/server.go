// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rivulet-dev/rivulet/internal/session"
)

// ExchangeHandler starts one user-to-assistant exchange. Implementations
// return once the upstream response is obtained; streamed events follow on
// the session's push channel.
type ExchangeHandler interface {
	Submit(ctx context.Context, sessionID, message string) error
}

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr        string
	CORSOrigins       []string
	ReadHeaderTimeout time.Duration
}

// Server wraps a chi router with the huma API and HTTP server.
type Server struct {
	router    chi.Router
	api       huma.API
	cfg       Config
	registry  *session.Registry
	exchanges ExchangeHandler
	started   time.Time
}

// New creates a Server with chi router, huma API, CORS, the push-stream and
// chat routes, and the read-only session endpoints.
func New(cfg Config, registry *session.Registry) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("Rivulet Gateway", "0.1.0")
	humaConfig.Info.Description = "Streaming chat relay API"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	srv := &Server{
		router:   r,
		api:      api,
		cfg:      cfg,
		registry: registry,
		started:  time.Now(),
	}

	srv.registerStreamRoute()
	// Chat returns 503 until an ExchangeHandler is set.
	srv.registerChatRoute()
	srv.registerSessionRoutes()

	return srv, nil
}

// RegisterExchangeHandler sets the handler used by the chat endpoint.
func (s *Server) RegisterExchangeHandler(h ExchangeHandler) {
	s.exchanges = h
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}

	srv := &http.Server{
		Handler: s.router,
		// No ReadTimeout/WriteTimeout: the push stream is a long-lived
		// response that outlives any fixed deadline. Slowloris protection
		// comes from the header timeout instead.
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	return <-errCh
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Cache-Control", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// writeJSONError writes a plain {"error": msg} body with the given status.
// The raw chi routes use this instead of huma's error model so the wire
// contract stays exactly as clients expect.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
