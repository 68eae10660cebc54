// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the REST message API.
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/teamchat/internal/chat"
)

// WebSocketHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method and names a known encoding, upgrades the HTTP
// connection, and registers a new Client with the hub, which opens it on the
// core and starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	cdc, ok := codecFor(r.URL.Query().Get("encoding"))
	if !ok {
		http.Error(w, "Unsupported encoding.", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(chat.ConnectionID(uuid.NewString()), conn, s.hub, r.RemoteAddr, cdc)

	select {
	case s.hub.GetRegisterChan() <- client:
	case <-s.hub.ctx.Done():
		client.closeConnection()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "TeamChat server is running!")
}

// ListChannelsHandler serves GET /api/channels.
func (s *Server) ListChannelsHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, newChannelViews(s.core.Channels()))
}

// ListMessagesHandler serves GET /api/messages/{channel}. An unknown channel
// yields an empty list.
func (s *Server) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	s.writeJSON(w, http.StatusOK, newMessageViews(s.core.List(channel), s.now()))
}

// CreateMessageHandler serves POST /api/messages/{channel}. The new message
// is broadcast to the channel's subscribers before the response is written.
func (s *Server) CreateMessageHandler(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	log := s.log.WithFields(logrus.Fields{"channel": channel, "remote": r.RemoteAddr})

	if !s.limiters.allow(remoteHost(r.RemoteAddr)) {
		s.metrics.rejected("rest")
		log.Warn("rate limit exceeded")
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Rate limit exceeded"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxMessageSize)
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Debug("invalid request body")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	msg, err := s.core.Create(channel, req.author(), req.Message)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	log.WithField("message_id", msg.ID).Info("message created")
	s.writeJSON(w, http.StatusOK, createMessageResponse{
		Success: true,
		Message: newMessageView(msg, s.now()),
	})
}

// DeleteMessageHandler serves DELETE /api/messages/{channel}/{messageId}.
func (s *Server) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	channel := vars["channel"]
	log := s.log.WithFields(logrus.Fields{"channel": channel, "remote": r.RemoteAddr})

	id, err := strconv.ParseUint(strings.TrimSpace(vars["messageId"]), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid message id"})
		return
	}

	if err := s.core.Delete(channel, chat.MessageID(id)); err != nil {
		s.writeError(w, log.WithField("message_id", id), err)
		return
	}

	log.WithField("message_id", id).Info("message deleted")
	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := statusCodeForError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	} else {
		log.WithError(err).Debug("request rejected")
	}
	s.writeJSON(w, status, errorResponse{Error: sanitizedError(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Error("error encoding response")
		http.Error(w, "An internal error has occurred.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.log.WithError(err).Debug("error writing response")
	}
}
