// Package server assembles the gin router and the HTTP server around the
// montage module.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/api"
	"github.com/mantonx/fragreel/internal/config"
	"github.com/mantonx/fragreel/internal/middleware"
	"github.com/mantonx/fragreel/internal/modules/montagemodule"
)

// Server owns the HTTP listener
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger hclog.Logger
}

// New builds the router and an http.Server for it
func New(cfg *config.Config, module *montagemodule.Module, logger hclog.Logger) *Server {
	router := SetupRouter(cfg, module, logger)
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	return &Server{
		router: router,
		http: &http.Server{
			Addr:         addr,
			Handler:      middleware.WriteDeadline(router, "/api/download/", cfg.Server.DownloadTimeout),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			ErrorLog:     logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
		},
		logger: logger.Named("server"),
	}
}

// SetupRouter configures the middleware chain and every route
func SetupRouter(cfg *config.Config, module *montagemodule.Module, logger hclog.Logger) *gin.Engine {
	r := gin.New()

	r.Use(api.ErrorMiddleware())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.ErrorLogger(logger))
	if cfg.Server.EnableCORS {
		r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	}
	r.Use(middleware.BodyLimit(cfg.Server.MaxUploadSize))

	// Multipart parts above this size spill to temp files instead of memory
	r.MaxMultipartMemory = 32 << 20

	r.NoRoute(api.NoRoute)
	setupRoutes(r, module)

	return r
}

// Router exposes the configured engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Addr is the address the server listens on
func (s *Server) Addr() string {
	return s.http.Addr
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.http.Shutdown(ctx)
}
