// Package server wires HTTP handlers into a gorilla/mux router for the
// TeamChat application via routing helpers.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// SetupRoutes configures and returns the application router: health check,
// WebSocket endpoint, REST message API, and metrics.
func (s *Server) SetupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestLogger)

	router.HandleFunc("/", s.HealthHandler)
	router.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/ws", s.WebSocketHandler)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// Registered on the root router so a method mismatch yields 405, not 404.
	router.HandleFunc("/api/channels", s.ListChannelsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/messages/{channel}", s.ListMessagesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/messages/{channel}", s.CreateMessageHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/messages/{channel}/{messageId}", s.DeleteMessageHandler).Methods(http.MethodDelete)

	return router
}

// Handler returns the router wrapped with CORS and panic recovery.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.origins.origins()),
		handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(s.log),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(s.SetupRoutes()))
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start),
		}).Debug("request handled")
	})
}
