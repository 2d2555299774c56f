package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketConfig configures the WebSocket transport
type WebSocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	MessageTimeout   time.Duration
	Header           http.Header
	Logger           zerolog.Logger
}

// WebSocket sends each exchange body as one text message on a persistent
// connection and treats the next message read as the reply. Exchanges are
// serialized; the connection is redialed after any failure.
type WebSocket struct {
	cfg    WebSocketConfig
	dialer websocket.Dialer
	stats  Stats
	logger zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket creates a WebSocket transport. The connection is dialed on
// first use.
func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = DefaultTimeout
	}
	return &WebSocket{
		cfg:    cfg,
		dialer: websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger: cfg.Logger.With().Str("component", "websocket").Logger(),
	}
}

// Stats returns the exchange counters
func (w *WebSocket) Stats() *Stats {
	return &w.stats
}

// Execute writes ex.Body and waits for one reply message. The exchange URL,
// method and query are ignored; headers are only sent on the handshake.
func (w *WebSocket) Execute(ctx context.Context, ex *Exchange) (*Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.IncrementRequests()

	conn, err := w.connect(ctx, ex.Header)
	if err != nil {
		w.stats.IncrementFailures()
		return nil, err
	}

	deadline := time.Now().Add(w.cfg.MessageTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// Unblock the read when ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, ex.Body); err != nil {
		w.dropLocked()
		w.stats.IncrementFailures()
		return nil, fmt.Errorf("%w: failed to send message: %w", ErrTransport, err)
	}

	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		w.dropLocked()
		w.stats.IncrementFailures()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
		}
		return nil, fmt.Errorf("%w: failed to read message: %w", ErrTransport, err)
	}

	return &Response{StatusCode: http.StatusOK, Body: data}, nil
}

// Close closes the connection
func (w *WebSocket) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropLocked()
}

// connect returns the live connection, dialing if needed. Caller holds mu.
func (w *WebSocket) connect(ctx context.Context, header http.Header) (*websocket.Conn, error) {
	if w.conn != nil {
		return w.conn, nil
	}

	h := http.Header{}
	for k, v := range w.cfg.Header {
		h[k] = v
	}
	for k, v := range header {
		// Handshake headers only; the dialer sets these itself
		if k == "Content-Type" || k == "Content-Length" {
			continue
		}
		h[k] = v
	}

	w.logger.Debug().Str("url", w.cfg.URL).Msg("WebSocket connecting")
	conn, _, err := w.dialer.DialContext(ctx, w.cfg.URL, h)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect WebSocket: %w", ErrTransport, err)
	}
	w.conn = conn
	w.logger.Debug().Str("url", w.cfg.URL).Msg("WebSocket connected")
	return conn, nil
}

// dropLocked closes and forgets the connection. Caller holds mu.
func (w *WebSocket) dropLocked() {
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
