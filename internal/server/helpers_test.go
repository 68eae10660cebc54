package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/teamchat/internal/chat"
)

const testOriginURL = "http://localhost:8080"

type testEnv struct {
	srv     *Server
	core    *chat.Core
	metrics *Metrics
	http    *httptest.Server
	logs    *test.Hook
}

// newTestEnv starts a Server with its hub on an httptest listener. customize
// may adjust the config before the server is built.
func newTestEnv(t *testing.T, customize func(cfg *Config)) *testEnv {
	t.Helper()

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{testOriginURL}
	if customize != nil {
		customize(cfg)
	}

	logger, hook := test.NewNullLogger()
	metrics := NewMetrics()
	core := chat.New(chat.DispatcherConfig{Buffer: cfg.DeliveryBuffer, Logger: logger, Observer: metrics})
	srv := New(*cfg, core, logger, metrics)
	go srv.Hub().Run()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Hub().Shutdown(2 * time.Second)
	})

	return &testEnv{srv: srv, core: core, metrics: metrics, http: ts, logs: hook}
}

func (e *testEnv) wsURL(encoding string) string {
	u := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	if encoding != "" {
		u += "?encoding=" + encoding
	}
	return u
}

// request performs an HTTP request against the test server and returns the
// status and body.
func (e *testEnv) request(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// wsClient reads frames from a connection, splitting batched JSON messages.
type wsClient struct {
	conn    *websocket.Conn
	codec   codec
	pending [][]byte
}

func dialWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(url, headers)
}

func (e *testEnv) connect(t *testing.T, encoding string) *wsClient {
	t.Helper()

	conn, resp, err := dialWebSocket(e.wsURL(encoding), testOriginURL)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	cdc, ok := codecFor(encoding)
	require.True(t, ok)
	return &wsClient{conn: conn, codec: cdc}
}

func (c *wsClient) send(t *testing.T, frame inboundFrame) {
	t.Helper()
	data, err := c.codec.marshal(frame)
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteMessage(c.codec.messageType(), data))
}

func (c *wsClient) next(timeout time.Duration) (outboundFrame, error) {
	var frame outboundFrame
	if len(c.pending) == 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return frame, err
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return frame, err
		}
		if c.codec.batchable() {
			c.pending = bytes.Split(data, []byte{'\n'})
		} else {
			c.pending = [][]byte{data}
		}
	}
	data := c.pending[0]
	c.pending = c.pending[1:]
	err := c.codec.unmarshal(data, &frame)
	return frame, err
}

// read returns the next frame, failing the test on timeout.
func (c *wsClient) read(t *testing.T) outboundFrame {
	t.Helper()
	frame, err := c.next(2 * time.Second)
	require.NoError(t, err)
	return frame
}

// expectNothing asserts no frame arrives within timeout.
func (c *wsClient) expectNothing(t *testing.T, timeout time.Duration) {
	t.Helper()
	frame, err := c.next(timeout)
	require.Error(t, err, "unexpected frame %+v", frame)
}

func (c *wsClient) join(t *testing.T, channel string) {
	t.Helper()
	c.send(t, inboundFrame{Type: frameJoinChannel, Channel: channel})
	ack := c.read(t)
	require.Equal(t, frameJoined, ack.Type)
	require.Equal(t, channel, ack.Channel)
}
