// Package http exposes the tracker facade as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soldi/internal/identity"
	"soldi/internal/middleware/ratelimit"
	"soldi/internal/middleware/security"
	"soldi/internal/middleware/trace"
	"soldi/internal/tracker"
	"soldi/internal/vocab"
)

type Server struct {
	http.Server
	tracker  *tracker.Tracker
	identity *identity.Manager
	vocab    vocab.Provider
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, tr *tracker.Tracker, ids *identity.Manager, vocabProvider vocab.Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tracker:  tr,
		identity: ids,
		vocab:    vocabProvider,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(trace.NewMiddleware(security.ExtractClientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(security.ExtractClientIP, nil))

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/state", s.handleState)
		r.Post("/demo/start", s.handleStartDemo)
		r.Post("/demo/stop", s.handleStopDemo)
		r.Get("/categories", s.handleCategories)
		r.Get("/stats", s.handleStats)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleAddTransaction)
			r.Get("/count", s.handleCount)
			r.Patch("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
	})

	s.Server = http.Server{Addr: addr, Handler: r}
	return s
}

// Shutdown stops the rate limiter's cleanup goroutine on top of the usual
// server shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
