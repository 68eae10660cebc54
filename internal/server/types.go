// Package server defines the wire payloads exchanged with REST and WebSocket
// clients and utility helpers that are reused across client and hub logic.
package server

import (
	"strings"

	"github.com/Tyrowin/teamchat/internal/chat"
)

// Frame types exchanged over the WebSocket connection.
const (
	frameJoinChannel    = "joinChannel"
	frameLeaveChannel   = "leaveChannel"
	frameSendMessage    = "sendMessage"
	frameJoined         = "joined"
	frameLeft           = "left"
	frameNewMessage     = "newMessage"
	frameMessageDeleted = "messageDeleted"
	frameError          = "error"
)

// MessageView is the presentation form of a chat message.
type MessageView struct {
	ID        chat.MessageID `json:"id" msgpack:"id"`
	Channel   string         `json:"channel" msgpack:"channel"`
	Username  string         `json:"username" msgpack:"username"`
	Avatar    string         `json:"avatar" msgpack:"avatar"`
	Color     string         `json:"color" msgpack:"color"`
	Timestamp string         `json:"timestamp" msgpack:"timestamp"`
	CreatedAt string         `json:"createdAt" msgpack:"createdAt"`
	Text      string         `json:"text" msgpack:"text"`
	Reactions []string       `json:"reactions,omitempty" msgpack:"reactions,omitempty"`
	Thread    string         `json:"thread,omitempty" msgpack:"thread,omitempty"`
}

// ChannelView summarizes a channel for the channel list endpoint.
type ChannelView struct {
	Name         string `json:"name"`
	MessageCount int    `json:"messageCount"`
	LastActivity string `json:"lastActivity,omitempty"`
}

// inboundFrame is a command sent by a WebSocket client.
type inboundFrame struct {
	Type     string `json:"type" msgpack:"type"`
	Channel  string `json:"channel" msgpack:"channel"`
	Message  string `json:"message,omitempty" msgpack:"message,omitempty"`
	Username string `json:"username,omitempty" msgpack:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty" msgpack:"avatar,omitempty"`
	Color    string `json:"color,omitempty" msgpack:"color,omitempty"`
}

// outboundFrame is an event or reply pushed to a WebSocket client.
type outboundFrame struct {
	Type      string         `json:"type" msgpack:"type"`
	Channel   string         `json:"channel,omitempty" msgpack:"channel,omitempty"`
	Message   *MessageView   `json:"message,omitempty" msgpack:"message,omitempty"`
	MessageID chat.MessageID `json:"messageId,omitempty" msgpack:"messageId,omitempty"`
	Error     string         `json:"error,omitempty" msgpack:"error,omitempty"`
}

// createMessageRequest is the body of POST /api/messages/{channel}.
type createMessageRequest struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Color    string `json:"color"`
}

func (r createMessageRequest) author() chat.Author {
	return chat.Author{Name: r.Username, AvatarLabel: r.Avatar, ColorTag: r.Color}
}

type createMessageResponse struct {
	Success bool        `json:"success"`
	Message MessageView `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
