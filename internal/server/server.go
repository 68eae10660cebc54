// Package server implements the HTTP server functionality for the TeamChat server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/teamchat/internal/chat"
)

// Server bundles the chat core with everything needed to serve it over HTTP
// and WebSocket.
type Server struct {
	cfg      Config
	core     *chat.Core
	hub      *Hub
	log      logrus.FieldLogger
	metrics  *Metrics
	origins  *originPolicy
	upgrader websocket.Upgrader
	limiters *limiterPool
	now      func() time.Time
}

// New creates a Server for core. The hub is created but not started; call
// Hub().Run in its own goroutine before serving.
func New(cfg Config, core *chat.Core, log logrus.FieldLogger, metrics *Metrics) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	cfg = sanitizeConfig(cfg)

	s := &Server{
		cfg:      cfg,
		core:     core,
		hub:      NewHub(core, cfg, log, metrics),
		log:      log,
		metrics:  metrics,
		origins:  newOriginPolicy(cfg.AllowedOrigins, log),
		limiters: newLimiterPool(cfg.RateLimit, 0),
		now:      time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Hub returns the server's connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// CreateServer creates and configures the HTTP server with security settings
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it exits. A server
// closed by ShutdownServer returns nil.
func StartServer(server *http.Server, log logrus.FieldLogger) error {
	log.WithField("addr", server.Addr).Info("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// ShutdownServer stops accepting HTTP requests, then shuts the hub down,
// closing every WebSocket connection on the core.
func ShutdownServer(ctx context.Context, server *http.Server, hub *Hub, timeout time.Duration) error {
	httpErr := server.Shutdown(ctx)
	hubErr := hub.Shutdown(timeout)

	if httpErr != nil {
		return errors.Wrap(httpErr, "http shutdown")
	}
	if hubErr != nil {
		return errors.Wrap(hubErr, "hub shutdown")
	}
	return nil
}
