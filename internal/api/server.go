package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stravasync/stravasync/internal/config"
	"github.com/stravasync/stravasync/internal/logging"
	"github.com/stravasync/stravasync/internal/metrics"
	"github.com/stravasync/stravasync/internal/store"
)

// Server exposes the synced activity data over HTTP, read-only.
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	store      *store.SQLiteStore
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates the HTTP API server.
func NewServer(cfg config.ServerConfig, st *store.SQLiteStore, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		router:  gin.New(),
		config:  cfg,
		store:   st,
		metrics: m,
		logger:  logger,
	}
	server.router.HandleMethodNotAllowed = true
	server.router.Use(gin.Recovery())
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/activities", s.handleListActivities)
		v1.GET("/activities/:id/kudos", s.handleActivityKudos)
		v1.GET("/stats", s.handleStats)
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Addr()
	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}
	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err.Error())
			return err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return err
		}
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListActivities(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	activities, err := s.store.ListActivities(c.Request.Context(), limit)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "list activities failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(activities),
		"activities": activities,
	})
}

func (s *Server) handleActivityKudos(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity id"})
		return
	}

	activity, err := s.store.GetActivity(c.Request.Context(), id)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "activity lookup failed", "activity_id", id, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if activity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return
	}

	entries, err := s.store.ListKudosForActivity(c.Request.Context(), id)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "list kudos failed", "activity_id", id, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"activity_id": id,
		"count":       len(entries),
		"kudos":       entries,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "stats query failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
