package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"enricher/internal/worker"
	"enricher/pkg/config"
	"enricher/pkg/jobs"
	"enricher/pkg/logger"
	"enricher/pkg/pipeline"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second

	// jobQueueSize bounds the jobs waiting for a free worker.
	jobQueueSize = 64
)

// Server is the HTTP shell over the pipeline. Every stage request becomes
// a job run on the worker pool; status and cancel requests stay responsive
// while jobs run.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	registry *jobs.Registry
	pool     *worker.Pool
	router   *gin.Engine
	server   *http.Server
	logger   logger.Logger

	finished atomic.Int64
	panicked atomic.Int64
}

// New builds the server and starts its worker pool.
func New(cfg *config.Config, p *pipeline.Pipeline, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		logger:   log,
	}
	s.pool = worker.NewPool(cfg.Server.Workers, jobQueueSize, log, worker.WithOnDone(s.taskDone))
	s.pool.Start()
	s.registry = jobs.NewRegistry(jobs.Options{
		Executor:   s.pool,
		Activity:   jobs.NewActivityLog(cfg.Server.MaxLogs),
		HardCancel: cfg.Server.HardCancel,
		Logger:     log,
	})

	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(loggerMiddleware(log))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	s.setupRoutes(router)
	s.router = router

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func (s *Server) taskDone(r worker.Result) {
	s.finished.Add(1)
	if r.Panic != nil {
		s.panicked.Add(1)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Registry returns the job table.
func (s *Server) Registry() *jobs.Registry { return s.registry }

// Addr is the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.InfoWithFields("Starting HTTP server", map[string]interface{}{
		"address": s.server.Addr,
		"workers": s.pool.NumWorkers(),
	})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels running jobs and waits for
// them to return until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	var errList []error
	if err := s.server.Shutdown(ctx); err != nil {
		errList = append(errList, fmt.Errorf("server shutdown error: %w", err))
	}
	if n := s.registry.CancelAll(); n > 0 {
		s.logger.WithField("cancelled", n).Warn("Cancelled running jobs for shutdown")
	}
	if err := s.registry.Wait(ctx); err != nil {
		errList = append(errList, fmt.Errorf("waiting for jobs: %w", err))
	}
	if err := s.pool.Stop(ctx); err != nil {
		errList = append(errList, err)
	}

	if len(errList) == 0 {
		s.logger.Info("HTTP server stopped gracefully")
	}
	return errors.Join(errList...)
}
