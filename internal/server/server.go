// Package server exposes the HTTP control plane: the command API used by
// dashboards and other services, device surfaces, health endpoints, metrics
// and the event stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fantasma-ai/fantasma/internal/observe"
	"github.com/fantasma-ai/fantasma/internal/request"
	"github.com/fantasma-ai/fantasma/internal/skill"
)

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithHub attaches the websocket event hub served at /ws.
func WithHub(hub *Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithReadyCheck registers a named readiness probe.
func WithReadyCheck(name string, check ReadyCheck) Option {
	return func(s *Server) { s.readyChecks[name] = check }
}

// WithMetrics overrides the metrics instance (tests).
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the HTTP control plane.
type Server struct {
	router   *skill.Router
	registry *skill.Registry
	tracker  *request.Tracker
	metrics  *observe.Metrics

	hub         *Hub
	readyChecks map[string]ReadyCheck

	engine *gin.Engine
	http   *http.Server
}

// New creates the Server and wires all routes.
func New(addr string, router *skill.Router, registry *skill.Registry, tracker *request.Tracker, opts ...Option) *Server {
	s := &Server{
		router:      router,
		registry:    registry,
		tracker:     tracker,
		metrics:     observe.DefaultMetrics(),
		readyChecks: make(map[string]ReadyCheck),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.logging(), cors.Default())
	s.routes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler (tests).
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() {
	s.engine.POST("/comando", s.handleCommand)
	s.engine.POST("/device_action", s.handleDeviceAction)
	s.engine.GET("/device_status", s.handleDeviceStatus)
	s.engine.GET("/get_devices", s.handleGetDevices)
	s.engine.GET("/help", s.handleHelp)

	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/readyz", s.handleReadyz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.hub != nil {
		s.engine.GET("/ws", gin.WrapH(s.hub))
	}
}

// logging is the slog + metrics middleware.
func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		s.metrics.HTTPRequestDuration.Record(c.Request.Context(), elapsed.Seconds(),
			metric.WithAttributes(
				attribute.String("method", c.Request.Method),
				attribute.String("path", c.FullPath()),
			))
		slog.Debug("server: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", elapsed)
	}
}

// ─── Handlers ───────────────────────────────────────────────────────────────

// route runs one API-originated request through the router.
func (s *Server) route(ctx context.Context, prompt string) string {
	req := s.tracker.Begin(request.OriginAPI)
	defer s.tracker.Complete(req)
	return s.router.Route(ctx, prompt, req)
}

func (s *Server) handleCommand(c *gin.Context) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid body"})
		return
	}
	answer := s.route(c.Request.Context(), body.Prompt)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "response": answer})
}

func (s *Server) handleDeviceAction(c *gin.Context) {
	var body struct {
		Device string `json:"device"`
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Device == "" || body.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "device and action required"})
		return
	}
	answer := s.route(c.Request.Context(), fmt.Sprintf("%s o %s", body.Action, body.Device))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "response": answer})
}

func (s *Server) handleDeviceStatus(c *gin.Context) {
	nickname := c.Query("nickname")
	if nickname == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "nickname required"})
		return
	}
	c.JSON(http.StatusOK, s.registry.DeviceStatus(c.Request.Context(), nickname))
}

func (s *Server) handleGetDevices(c *gin.Context) {
	toggles, status := s.registry.Devices()
	if toggles == nil {
		toggles = []string{}
	}
	if status == nil {
		status = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"devices": gin.H{"toggles": toggles, "status": status},
	})
}

func (s *Server) handleHelp(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "commands": s.registry.Help()})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failures": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
