// Package server exposes the scan pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"idscan/internal/logger"
	"idscan/pkg/models"
)

// Scanner is the pipeline behind POST /process-aadhar.
type Scanner interface {
	Scan(ctx context.Context, imagePath, userID string) (models.ExtractionResult, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr           string        // default ":5000"
	UploadDir      string        // default "uploads"; created if missing
	MaxUploadBytes int64         // default 10MB
	RequestTimeout time.Duration // default 60s
}

func (o *Options) setDefaults() {
	if o.Addr == "" {
		o.Addr = ":5000"
	}
	if o.UploadDir == "" {
		o.UploadDir = "uploads"
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
}

// Server serves the extraction API.
type Server struct {
	opts    Options
	scanner Scanner
	router  chi.Router
	log     zerolog.Logger
}

// New creates the upload directory and registers the routes.
func New(scanner Scanner, opts Options) (*Server, error) {
	const op = "New"

	opts.setDefaults()
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: failed to create upload directory %s: %w", op, opts.UploadDir, err)
	}

	s := &Server{
		opts:    opts,
		scanner: scanner,
		log:     logger.WithComponent("http"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Post("/process-aadhar", s.processAadhar)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Str("upload_dir", s.opts.UploadDir).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ListenAndServe: shutdown: %w", err)
	}
	return nil
}

// requestLogger attaches a request-scoped logger to the context and logs
// each request when it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := logger.WithRequestID(middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

		l.Info().
			Str("component", "http").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
