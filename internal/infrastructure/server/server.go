// Package server assembles the local diagnostics HTTP server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/devicepilot/agent/internal/api/http"
	"github.com/devicepilot/agent/internal/api/middleware"
	"github.com/devicepilot/agent/internal/infrastructure/config"
	"github.com/devicepilot/agent/internal/infrastructure/monitoring"
	"github.com/devicepilot/agent/internal/pagechange"
	"github.com/devicepilot/agent/internal/session"
)

// Server is the loopback diagnostics server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New builds the diagnostics server with its middleware chain and routes.
func New(cfg *config.Config, sess *session.Context, scheduler *pagechange.Scheduler, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if metrics != nil {
		router.Use(monitoring.Middleware(metrics))
	}
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	apihttp.NewHandlers(sess, scheduler, metrics).Register(router)

	addr := cfg.Diagnostics.Host + ":" + cfg.Diagnostics.Port
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until the listener closes. http.ErrServerClosed is swallowed so
// a clean shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("diagnostics server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
