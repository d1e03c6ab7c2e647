package server

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/thumbatlas/pkg/pipeline"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

const (
	// DefaultAddr is the listen address used when Addr is empty.
	DefaultAddr = ":8080"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Server serves the atlas API for a single Runner.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration

	Runner  *pipeline.Runner
	Options pipeline.Options
	Reader  *status.Reader
	Logger  *log.Logger

	// runCtx bounds runs started by the trigger. Runs must outlive the
	// request that started them.
	runCtx context.Context
}

// New creates a server that triggers runs with opts. Status reads treat
// records older than staleAfter as abandoned unless runner is still busy.
func New(runner *pipeline.Runner, opts pipeline.Options, staleAfter time.Duration, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Server{
		Addr:            DefaultAddr,
		ShutdownTimeout: DefaultShutdownTimeout,
		Runner:          runner,
		Options:         opts,
		Reader: &status.Reader{
			Store:      runner.Status,
			StaleAfter: staleAfter,
			Artifacts:  []string{opts.AtlasPath, opts.CoordinatesPath},
			Live:       runner.Running,
			Logger:     logger,
		},
		Logger: logger,
		runCtx: context.Background(),
	}
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/atlas", func(r chi.Router) {
		r.Post("/", s.handleTrigger)
		r.Get("/status", s.handleStatus)
		r.Get("/image", s.handleImage)
		r.Get("/coordinates", s.handleCoordinates)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

// Run listens on Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully and waits for any active run to write its final status.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.runCtx = ctx
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Logger.Info("atlas API available", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("shutting down server")

		timeout := s.ShutdownTimeout
		if timeout <= 0 {
			timeout = DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Runner.Wait()
		s.Logger.Info("server stopped")
		return err
	})
	return g.Wait()
}
