// Package api exposes the worker's control plane over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal/runstate"
	"sjsage522/consoledealworker/logger"

	"github.com/gin-gonic/gin"
)

// Controller is the part of the worker the API drives
type Controller interface {
	Start() bool
	Stop()
	Trigger()
	Settings() config.Settings
	UpdateSettings(config.Settings)
	State() *runstate.State
}

// SeenStore is the part of the seen set the API exposes
type SeenStore interface {
	Snapshot() []string
	Reset(ctx context.Context) error
}

// Server represents the control API with lifecycle management
type Server struct {
	router       *gin.Engine
	server       *http.Server
	worker       Controller
	seen         SeenStore
	settingsFile string

	// settingsMu serializes read-merge-write of settings updates
	settingsMu sync.Mutex
}

// NewServer builds the router. settingsFile is where accepted settings
// updates are persisted; empty disables persistence.
func NewServer(addr string, worker Controller, seen SeenStore, settingsFile string, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recoveryMiddleware(), loggerMiddleware(), corsMiddleware())

	s := &Server{
		router:       router,
		worker:       worker,
		seen:         seen,
		settingsFile: settingsFile,
	}
	s.routes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	api := s.router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.POST("/start", s.start)
		api.POST("/stop", s.stop)
		api.POST("/run", s.run)
		api.GET("/settings", s.getSettings)
		api.POST("/settings", s.updateSettings)
		api.GET("/seen", s.getSeen)
		api.DELETE("/seen", s.resetSeen)
	}
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Router returns the underlying Gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logger.ForAPI().Info().Str("address", s.server.Addr).Msg("Starting control API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
