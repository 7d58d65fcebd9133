// Package server provides the local web UI for rollcall.
//
// The server renders the roster held by an app.App and forwards the signup,
// unregister and refresh forms to its controller.
//
// # Endpoints
//
//   - GET / - Roster page with the signup form and feedback message
//   - POST /signup - Signs up (form fields: activity, email)
//   - POST /unregister - Unregisters (form fields: activity, email)
//   - POST /refresh - Reloads every activity
//   - GET /api/page - The roster view as JSON
//   - GET /api/logs - Captured diagnostics, optionally ?action=<name>
//   - GET /health - "ok", or 503 when the last roster load failed
//   - GET /metrics - Prometheus metrics, when a scrape registry is configured
//
// The POST endpoints redirect back to / unless the request accepts
// application/json.
//
// # Example
//
//	srv, err := server.New(a, server.WithListenAddr(":8080"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nomis52/rollcall/app"
	"github.com/nomis52/rollcall/server/handlers"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultListenAddr      = "127.0.0.1:8080"
)

// Server is the HTTP server for the rollcall web interface.
type Server struct {
	addr       string
	app        *app.App
	logger     *slog.Logger
	metrics    http.Handler
	certs      *CertLoader
	router     chi.Router
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithListenAddr configures the address the server listens on.
// Default is "127.0.0.1:8080".
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) error {
		s.metrics = h
		return nil
	}
}

// WithTLS serves HTTPS using the given certificate and key files. A renewed
// certificate is picked up without a restart.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) error {
		loader, err := NewCertLoader(certFile, keyFile, s.logger)
		if err != nil {
			return err
		}
		s.certs = loader
		return nil
	}
}

// New creates a Server for a.
func New(a *app.App, opts ...Option) (*Server, error) {
	s := &Server{
		addr:   defaultListenAddr,
		app:    a,
		logger: a.Logger,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run loads the roster, starts any refresh schedule and serves HTTP until
// the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: defaultReadTimeout,
	}
	if s.certs != nil {
		s.httpServer.TLSConfig = s.certs.TLSConfig()
		ln = tls.NewListener(ln, s.httpServer.TLSConfig)
	}

	// A failed first load leaves the page showing the load failure notice.
	go func() {
		_ = s.app.Controller.Refresh(ctx)
	}()
	s.app.StartSchedule(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", ln.Addr().String(),
			"backend", s.app.Config.Backend.URL,
			"tls", s.certs != nil,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() chi.Router {
	a := s.app

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", handlers.NewIndexHandler(s.logger, a.Page, a.Notifier, a).ServeHTTP)
	r.Get("/health", handlers.NewHealthHandler(a.Controller).ServeHTTP)

	r.Post("/signup", handlers.NewSignupHandler(s.logger, a.Controller, a.Page, a.Notifier).ServeHTTP)
	r.Post("/unregister", handlers.NewUnregisterHandler(s.logger, a.Controller, a.Notifier).ServeHTTP)
	r.Post("/refresh", handlers.NewRefreshHandler(s.logger, a.Controller, a.Notifier).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/page", handlers.NewPageHandler(a.Page, a.Notifier, a).ServeHTTP)
		r.Get("/logs", handlers.NewLogsHandler(a.Logs).ServeHTTP)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}
