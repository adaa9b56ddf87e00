// Package server exposes the record store over authenticated HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/bandhanheal/backend/internal/auth"
	"github.com/bandhanheal/backend/internal/config"
	"github.com/bandhanheal/backend/internal/kv"
	"github.com/bandhanheal/backend/internal/records"
)

// Service owns the router and the domain services. All request state flows
// through it; there are no package-level mutable globals.
type Service struct {
	version string
	cfg     *config.Config
	store   kv.Store
	auth    *auth.Manager
	records *records.Service
	router  chi.Router
}

// New wires the service over the given store.
func New(version string, cfg *config.Config, store kv.Store) *Service {
	svc := &Service{
		version: version,
		cfg:     cfg,
		store:   store,
		auth:    auth.NewManager(store, time.Duration(cfg.TokenTTL)),
		records: records.NewService(store),
		router:  chi.NewRouter(),
	}
	svc.setupRoutes()
	return svc
}

// Router returns the HTTP handler for tests and embedding.
func (s *Service) Router() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(time.Duration(s.cfg.RequestTimeout)))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)
	s.router.Post("/signup", s.handleSignup)
	s.router.Post("/login", s.handleLogin)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/profile", s.handleSaveProfile)
		r.Get("/profile", s.handleGetProfile)
		r.Post("/booking", s.handleCreateBooking)
		r.Get("/bookings", s.handleListBookings)
		r.Put("/booking/{id}/status", s.handleUpdateBookingStatus)
		r.Post("/notes", s.handleSaveNote)
		r.Get("/notes", s.handleListNotes)
		r.Post("/progress", s.handleSaveProgress)
		r.Get("/progress", s.handleListProgress)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.RequestTimeout),
		WriteTimeout:      time.Duration(s.cfg.RequestTimeout) + 5*time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requestLogger logs one line per request with structured fields.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
