package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/teamchat/internal/chat"
)

func TestWebSocketHandlerMethodValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/ws", http.NoBody)
			rec := httptest.NewRecorder()
			env.srv.WebSocketHandler(rec, req)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestWebSocketHandlerGETWithoutUpgrade(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	rec := httptest.NewRecorder()
	env.srv.WebSocketHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketRejectsUnknownEncoding(t *testing.T) {
	env := newTestEnv(t, nil)

	_, resp, err := dialWebSocket(env.wsURL("xml"), testOriginURL)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketOriginValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"configured origin", testOriginURL, true},
		{"case insensitive", "HTTP://LOCALHOST:8080", true},
		{"other origin", "http://evil.example", false},
		{"missing origin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := dialWebSocket(env.wsURL(""), tt.origin)
			if resp != nil {
				defer resp.Body.Close()
			}
			if tt.allowed {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestJoinReceivesNewMessages(t *testing.T) {
	env := newTestEnv(t, nil)

	c := env.connect(t, "")
	c.join(t, "general")

	status, _ := env.request(t, http.MethodPost, "/api/messages/general", `{"message":"Hello","username":"Ann"}`)
	require.Equal(t, http.StatusOK, status)

	frame := c.read(t)
	assert.Equal(t, frameNewMessage, frame.Type)
	assert.Equal(t, "general", frame.Channel)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "Hello", frame.Message.Text)
	assert.Equal(t, "Ann", frame.Message.Username)
	assert.Equal(t, chat.DefaultAvatarLabel, frame.Message.Avatar)
	assert.True(t, strings.HasPrefix(frame.Message.Timestamp, "Today at "))
}

func TestMessagePackEncoding(t *testing.T) {
	env := newTestEnv(t, nil)

	c := env.connect(t, "msgpack")
	c.join(t, "random")

	msg, err := env.core.Create("random", chat.Author{Name: "Bo"}, "binary hi")
	require.NoError(t, err)

	frame := c.read(t)
	assert.Equal(t, frameNewMessage, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, msg.ID, frame.Message.ID)
	assert.Equal(t, "binary hi", frame.Message.Text)
}

func TestSendMessageOverWebSocket(t *testing.T) {
	env := newTestEnv(t, nil)

	sender := env.connect(t, "")
	listener := env.connect(t, "")
	sender.join(t, "dev")
	listener.join(t, "dev")

	sender.send(t, inboundFrame{Type: frameSendMessage, Channel: "dev", Message: "ship it", Username: "Cy"})

	for _, c := range []*wsClient{sender, listener} {
		frame := c.read(t)
		assert.Equal(t, frameNewMessage, frame.Type)
		require.NotNil(t, frame.Message)
		assert.Equal(t, "ship it", frame.Message.Text)
	}

	msgs := env.core.List("dev")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Cy", msgs[0].Author.Name)
}

func TestNonSubscriberReceivesNothing(t *testing.T) {
	env := newTestEnv(t, nil)

	member := env.connect(t, "")
	outsider := env.connect(t, "")
	member.join(t, "design")
	outsider.join(t, "random")

	_, err := env.core.Create("design", chat.Author{}, "mockups")
	require.NoError(t, err)

	assert.Equal(t, frameNewMessage, member.read(t).Type)
	outsider.expectNothing(t, 200*time.Millisecond)
}

func TestDeleteIsBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)

	c := env.connect(t, "")
	c.join(t, "general")

	msg, err := env.core.Create("general", chat.Author{}, "oops")
	require.NoError(t, err)
	require.Equal(t, frameNewMessage, c.read(t).Type)

	status, _ := env.request(t, http.MethodDelete, "/api/messages/general/"+strconv.FormatUint(uint64(msg.ID), 10), "")
	require.Equal(t, http.StatusOK, status)

	frame := c.read(t)
	assert.Equal(t, frameMessageDeleted, frame.Type)
	assert.Equal(t, "general", frame.Channel)
	assert.Equal(t, msg.ID, frame.MessageID)
}

func TestLeaveStopsDelivery(t *testing.T) {
	env := newTestEnv(t, nil)

	c := env.connect(t, "")
	c.join(t, "general")
	c.send(t, inboundFrame{Type: frameLeaveChannel, Channel: "general"})
	ack := c.read(t)
	require.Equal(t, frameLeft, ack.Type)

	_, err := env.core.Create("general", chat.Author{}, "anyone?")
	require.NoError(t, err)
	c.expectNothing(t, 200*time.Millisecond)
}

func TestInvalidFramesGetErrorReplies(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.connect(t, "")

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame := c.read(t)
	assert.Equal(t, frameError, frame.Type)
	assert.Equal(t, "Invalid frame", frame.Error)

	c.send(t, inboundFrame{Type: frameJoinChannel, Channel: "  "})
	frame = c.read(t)
	assert.Equal(t, frameError, frame.Type)
	assert.NotEmpty(t, frame.Error)

	c.send(t, inboundFrame{Type: frameSendMessage, Channel: "general", Message: " "})
	frame = c.read(t)
	assert.Equal(t, frameError, frame.Type)

	c.send(t, inboundFrame{Type: "shout", Channel: "general"})
	frame = c.read(t)
	assert.Equal(t, frameError, frame.Type)
	assert.Equal(t, "Unknown frame type", frame.Error)

	assert.Empty(t, env.core.List("general"))
}

func TestWebSocketRateLimiting(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{Burst: 2, RefillInterval: time.Hour}
	})

	c := env.connect(t, "")
	c.join(t, "general")
	c.send(t, inboundFrame{Type: frameSendMessage, Channel: "general", Message: "one"})
	assert.Equal(t, frameNewMessage, c.read(t).Type)

	c.send(t, inboundFrame{Type: frameSendMessage, Channel: "general", Message: "two"})
	frame := c.read(t)
	assert.Equal(t, frameError, frame.Type)
	assert.Equal(t, "Rate limit exceeded", frame.Error)
	assert.Len(t, env.core.List("general"), 1)
}

func TestWebSocketMessageSizeLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxMessageSize = 128
	})

	c := env.connect(t, "")
	c.send(t, inboundFrame{Type: frameSendMessage, Channel: "general", Message: strings.Repeat("x", 512)})

	_, err := c.next(2 * time.Second)
	require.Error(t, err)
	assert.Empty(t, env.core.List("general"))
}

func TestDisconnectRemovesSubscriptions(t *testing.T) {
	env := newTestEnv(t, nil)

	c := env.connect(t, "")
	c.join(t, "general")
	require.Len(t, env.core.Subscribers("general"), 1)

	require.NoError(t, c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = c.conn.Close()

	require.Eventually(t, func() bool {
		return len(env.core.Subscribers("general")) == 0 && env.srv.Hub().ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentClientsSeeSameOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	const numClients = 4
	const perClient = 5

	clients := make([]*wsClient, numClients)
	for i := range clients {
		clients[i] = env.connect(t, "")
		clients[i].join(t, "general")
	}

	var wg sync.WaitGroup
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perClient; j++ {
				_, err := env.core.Create("general", chat.Author{}, strconv.Itoa(i*perClient+j))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	var reference []chat.MessageID
	for _, c := range clients {
		var ids []chat.MessageID
		for len(ids) < numClients*perClient {
			frame := c.read(t)
			require.Equal(t, frameNewMessage, frame.Type)
			ids = append(ids, frame.Message.ID)
		}
		if reference == nil {
			reference = ids
			continue
		}
		assert.Equal(t, reference, ids)
	}
	for i := 1; i < len(reference); i++ {
		assert.Less(t, uint64(reference[i-1]), uint64(reference[i]))
	}
}
