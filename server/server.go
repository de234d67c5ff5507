// Package server exposes a store.Store over HTTP so remote clients can share one
// PostgreSQL or SQLite database.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/existflow/goalpost/internal/api"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/store"
)

// Server is the goal record server
type Server struct {
	store store.Store
	echo  *echo.Echo
	log   *logger.Logger
}

// New creates a server backed by s. A nil log uses the global logger.
func New(s store.Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	srv := &Server{
		store: s,
		log:   log.WithFields(logger.F("component", "server")),
	}

	// Setup Echo
	srv.setupEcho()

	return srv
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Custom logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			// Process request
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			s.log.Info("HTTP Request",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("owner", req.Header.Get(api.OwnerHeader)),
				logger.F("status", res.Status),
				logger.F("size", res.Size),
				logger.F("duration", time.Since(start).String()))

			return nil
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders: []string{echo.HeaderContentType, api.OwnerHeader},
	}))

	// Health check
	e.GET("/health", s.handleHealth)

	// API v1, scoped by the owner header
	api := e.Group("/api/v1")
	api.Use(s.ownerMiddleware)

	owners := api.Group("/owners/:owner")
	owners.Use(s.sameOwnerMiddleware)
	owners.GET("/goals", s.handleScanByOwner)
	owners.POST("/goals", s.handlePut)
	owners.GET("/goals/:id", s.handleGet)
	owners.PATCH("/goals/:id", s.handlePatch)

	api.GET("/goals", s.handleScanGlobal)
	api.PUT("/goals/:id", s.handlePutPublic)
	api.PATCH("/goals/:id", s.handlePatchPublic)

	s.echo = e
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	s.log.Info("Listening", logger.F("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
