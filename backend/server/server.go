// Package server exposes the backend manager over a small HTTP bridge so that
// a host player can browse, search and resolve playable URLs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/metrics"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

const (
	defaultAddr           = "127.0.0.1:6690"
	defaultRatePerMinute  = 600
	readHeaderTimeout     = 10 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr string
	// RateLimitPerMinute caps requests per client IP. Zero uses the default, negative disables it.
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	Logger             backend.Logger
	Metrics            *metrics.Metrics
}

// Server is the HTTP bridge.
type Server struct {
	manager platform.Manager
	logger  backend.Logger
	metrics *metrics.Metrics
	router  chi.Router
	http    *http.Server
}

// New builds the router. Nothing listens until Run.
func New(manager platform.Manager, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = defaultRatePerMinute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	s := &Server{
		manager: manager,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(s.observe)
	if opts.RateLimitPerMinute > 0 {
		r.Use(rateLimit(opts.RateLimitPerMinute, time.Minute))
	}
	r.Use(chimw.Timeout(opts.RequestTimeout))
	s.routes(r)

	s.router = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/library", func(r chi.Router) {
		r.Get("/browse", s.handleBrowse)
		r.Get("/lookup", s.handleLookup)
		r.Get("/search", s.handleSearch)
		r.Get("/images", s.handleImages)
		r.Get("/distinct", s.handleDistinct)
	})

	r.Route("/playlists", func(r chi.Router) {
		r.Get("/", s.handlePlaylists)
		r.Post("/", s.handleCreatePlaylist)
		r.Put("/", s.handleSavePlaylist)
		r.Delete("/", s.handleDeletePlaylist)
		r.Get("/items", s.handlePlaylistItems)
		r.Get("/lookup", s.handlePlaylistLookup)
		r.Post("/refresh", s.handleRefreshPlaylists)
		r.Post("/subscribe", s.handleSubscribe)
	})

	r.Route("/playback", func(r chi.Router) {
		r.Get("/translate", s.handleTranslate)
		r.Post("/invalidate", s.handleInvalidate)
		r.Post("/prefetch", s.handlePrefetch)
	})

	r.Post("/favorites", s.handleFavorite)
	r.Get("/match", s.handleMatch)
}

// Run listens until ctx is cancelled, then shuts down gracefully within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	if s.logger != nil {
		s.logger.Info("http bridge listening", "addr", ln.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http bridge: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
