// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/teamchat/internal/chat"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	sendQueueLen = 256
)

var (
	errSendClosed    = errors.New("send queue closed")
	errSendQueueFull = errors.New("send queue full")
)

// Client represents a WebSocket client connection in the chat system. It is
// known to the chat core by its connection id; events reach it through
// deliver, which encodes them and queues the bytes for the write pump.
type Client struct {
	id             chat.ConnectionID
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	codec          codec
	log            logrus.FieldLogger
	addr           string
	mu             sync.Mutex
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	now            func() time.Time
}

// NewClient creates a new Client for conn. A nil codec selects JSON.
func NewClient(id chat.ConnectionID, conn *websocket.Conn, hub *Hub, addr string, cdc codec) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	if cdc == nil {
		cdc = jsonCodec{}
	}

	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendQueueLen),
		hub:  hub,
		log: hub.log.WithFields(logrus.Fields{
			"conn":     id,
			"remote":   addr,
			"encoding": cdc.name(),
		}),
		codec:          cdc,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		now:            time.Now,
	}
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// enqueue hands an encoded frame to the write pump without blocking.
func (c *Client) enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errSendClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errSendQueueFull
	}
}

// closeSend closes the send queue once; the write pump then sends a close
// frame and exits.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// deliver is the callback the core's dispatcher invokes for every event on a
// channel this client has joined.
func (c *Client) deliver(ev chat.Event) {
	frame, ok := c.frameForEvent(ev)
	if !ok {
		return
	}
	err := c.sendFrame(frame)
	switch {
	case err == nil:
	case errors.Is(err, errSendQueueFull):
		c.hub.metrics.sendBufferFull(ev)
		c.log.WithField("channel", ev.Channel).Debug("send queue full; dropping event")
	default:
		c.log.WithError(err).WithField("channel", ev.Channel).Debug("event not sent")
	}
}

func (c *Client) frameForEvent(ev chat.Event) (outboundFrame, bool) {
	switch ev.Kind {
	case chat.MessageCreated:
		view := newMessageView(ev.Message, c.now())
		return outboundFrame{Type: frameNewMessage, Channel: ev.Channel, Message: &view}, true
	case chat.MessageDeleted:
		return outboundFrame{Type: frameMessageDeleted, Channel: ev.Channel, MessageID: ev.MessageID}, true
	default:
		c.log.WithField("kind", ev.Kind).Warn("unknown event kind")
		return outboundFrame{}, false
	}
}

// sendFrame encodes frame with the client's codec and queues it.
func (c *Client) sendFrame(frame outboundFrame) error {
	payload, err := c.codec.marshal(frame)
	if err != nil {
		c.log.WithError(err).WithField("type", frame.Type).Error("error encoding frame")
		return errors.Wrap(err, "encode frame")
	}
	return c.enqueue(payload)
}

func (c *Client) sendError(channel, text string) {
	_ = c.sendFrame(outboundFrame{Type: frameError, Channel: channel, Error: text})
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.WithError(err).Warn("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.WithError(err).Warn("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.WithField("limit", c.maxMessageSize).Warn("message exceeded maximum size")
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.WithError(err).Info("client disconnected")
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.WithError(err).Info("client connection closed")
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.WithError(err).Warn("unexpected WebSocket error")
		return true
	}

	c.log.WithError(err).Warn("WebSocket read error")
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.WithFields(logrus.Fields{
			"burst":    c.rateLimit.Burst,
			"interval": c.rateLimit.RefillInterval,
		}).Warn("rate limit exceeded; discarding frame")
		c.hub.metrics.rejected("websocket")
		return false
	}
	return true
}

// processMessage decodes a raw frame and applies it to the core. It returns
// true if the frame was applied.
func (c *Client) processMessage(rawMessage []byte) bool {
	var frame inboundFrame
	if err := c.codec.unmarshal(rawMessage, &frame); err != nil {
		c.log.WithError(err).Debug("invalid frame")
		c.sendError("", "Invalid frame")
		return false
	}

	log := c.log.WithFields(logrus.Fields{"type": frame.Type, "channel": frame.Channel})

	switch frame.Type {
	case frameJoinChannel:
		if err := c.hub.core.Join(c.id, frame.Channel); err != nil {
			log.WithError(err).Debug("join rejected")
			c.sendError(frame.Channel, sanitizedError(err))
			return false
		}
		_ = c.sendFrame(outboundFrame{Type: frameJoined, Channel: frame.Channel})

	case frameLeaveChannel:
		if err := c.hub.core.Leave(c.id, frame.Channel); err != nil {
			log.WithError(err).Debug("leave rejected")
			c.sendError(frame.Channel, sanitizedError(err))
			return false
		}
		_ = c.sendFrame(outboundFrame{Type: frameLeft, Channel: frame.Channel})

	case frameSendMessage:
		author := chat.Author{Name: frame.Username, AvatarLabel: frame.Avatar, ColorTag: frame.Color}
		msg, err := c.hub.core.Create(frame.Channel, author, frame.Message)
		if err != nil {
			log.WithError(err).Debug("send rejected")
			c.sendError(frame.Channel, sanitizedError(err))
			return false
		}
		log.WithField("message_id", msg.ID).Debug("message created")

	default:
		log.Debug("unknown frame type")
		c.sendError(frame.Channel, "Unknown frame type")
		return false
	}

	return true
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			c.sendError("", "Rate limit exceeded")
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.WithError(err).Warn("error closing connection")
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.WithError(err).Warn("error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if !c.codec.batchable() {
		return c.writeSingleMessage(message)
	}
	return c.writeBatch(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.WithError(err).Warn("error writing close message")
		}
	}
	return false
}

// writeSingleMessage writes one frame as its own WebSocket message.
func (c *Client) writeSingleMessage(message []byte) bool {
	if err := c.conn.WriteMessage(c.codec.messageType(), message); err != nil {
		c.log.WithError(err).Warn("error writing message")
		return false
	}
	return true
}

// writeBatch writes a frame and any queued frames, newline separated, into
// one WebSocket message.
func (c *Client) writeBatch(message []byte) bool {
	w, err := c.conn.NextWriter(c.codec.messageType())
	if err != nil {
		c.log.WithError(err).Warn("error creating writer")
		return false
	}

	if !c.writeMessageContent(w, message) {
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	return c.closeWriter(w)
}

// writeMessageContent writes the main message content
func (c *Client) writeMessageContent(w io.WriteCloser, message []byte) bool {
	if _, err := w.Write(message); err != nil {
		c.log.WithError(err).Warn("error writing message")
		return false
	}
	return true
}

// writeQueuedMessages writes any additional queued messages
func (c *Client) writeQueuedMessages(w io.WriteCloser) bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		message, ok := <-c.send
		if !ok {
			return true
		}
		if !c.writeQueuedMessage(w, message) {
			return false
		}
	}
	return true
}

// writeQueuedMessage writes a single queued message with newline separator
func (c *Client) writeQueuedMessage(w io.WriteCloser, message []byte) bool {
	if _, err := w.Write([]byte{'\n'}); err != nil {
		c.log.WithError(err).Warn("error writing newline")
		return false
	}
	if _, err := w.Write(message); err != nil {
		c.log.WithError(err).Warn("error writing queued message")
		return false
	}
	return true
}

// closeWriter closes the message writer
func (c *Client) closeWriter(w io.WriteCloser) bool {
	if err := w.Close(); err != nil {
		c.log.WithError(err).Warn("error closing writer")
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.WithError(err).Warn("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.WithError(err).Warn("error writing ping message")
		return false
	}
	return true
}
