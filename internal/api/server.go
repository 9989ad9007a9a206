// Package api exposes the HTTP surface: search intake, snapshot reads,
// the SSE event stream, vendor listing, health and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/search"
	"github.com/jonesrussell/pricescout/internal/stream"
)

const shutdownTimeout = 15 * time.Second

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Orchestrator *search.Orchestrator
	Registry     *search.Registry
	Hub          *stream.Hub
	Vendors      map[string]config.VendorConfig
	Gatherer     prometheus.Gatherer
	// Heartbeat is the idle SSE keep-alive interval.
	Heartbeat time.Duration
}

// Server wraps the gin engine and http.Server lifecycle.
type Server struct {
	router *gin.Engine
	server *http.Server
	log    logger.Logger
}

// NewServer builds the router with standard middleware and all routes.
func NewServer(cfg config.ServerConfig, deps Deps, log logger.Logger) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestLogger(log))
	router.Use(CORS(cfg.AllowedOrigins))

	h := newHandlers(deps, log)
	h.register(router)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:        cfg.Address(),
			Handler:     router,
			ReadTimeout: cfg.ReadTimeout,
			// No write timeout: the event stream endpoint holds its
			// response open for the lifetime of a search.
			WriteTimeout: 0,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Router returns the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
		s.log.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}
