// Package transport implements the persistent WebSocket connection to the
// chat server using gobwas/ws. It is a dumb byte pipe: frames are delivered
// to a single handler exactly as they arrive, and outbound events are
// serialized through a write lock. Connection lifecycle policy (announce,
// reconnect) lives in the client package.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/parley/chat-client/internal/metrics"
	"github.com/parley/chat-client/internal/protocol"
)

// ErrNotConnected is returned by Emit when there is no live connection.
// Outbound events are never queued; callers decide whether to retry.
var ErrNotConnected = errors.New("transport: not connected")

// ErrAlreadyConnected is returned by Dial when a connection is already open.
var ErrAlreadyConnected = errors.New("transport: already connected")

// WSTransport is a single persistent WebSocket connection to the chat server.
// It may be redialed after a drop; each successful Dial starts a fresh read
// loop. The frame and state handlers must be set before the first Dial and
// are invoked from the read loop goroutine.
type WSTransport struct {
	url string
	log zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	onFrame func(data []byte)
	onState func(connected bool)
}

// New creates a transport targeting the given server URL. HTTP schemes are
// rewritten to their WebSocket equivalents at dial time, so both
// "http://host:port" and "ws://host:port" are accepted.
func New(url string, log zerolog.Logger) *WSTransport {
	return &WSTransport{url: url, log: log}
}

// SetFrameHandler registers the handler invoked for every inbound frame.
func (t *WSTransport) SetFrameHandler(fn func(data []byte)) {
	t.onFrame = fn
}

// SetStateHandler registers the handler invoked when the connection is
// established or lost. It fires exactly once per established connection on
// loss, whether the loss was a remote drop or a local Close.
func (t *WSTransport) SetStateHandler(fn func(connected bool)) {
	t.onState = fn
}

// Dial opens the WebSocket connection and starts the read loop. It returns
// ErrAlreadyConnected if a connection is already live.
func (t *WSTransport) Dial(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.closed = false
	t.mu.Unlock()

	wsURL := toWebSocketURL(t.url)
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", wsURL, err)
	}

	t.mu.Lock()
	if t.closed {
		// Close raced with the dial; discard the fresh connection.
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("transport: dial %s: %w", wsURL, net.ErrClosed)
	}
	t.conn = conn
	t.mu.Unlock()

	metrics.Connected.Set(1)
	t.stateChanged(true)
	go t.readLoop(conn)

	t.log.Debug().Str("url", wsURL).Msg("transport connected")
	return nil
}

// Close tears down the current connection, if any. It is idempotent and safe
// to call regardless of connection state.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	metrics.Connected.Set(0)
	t.stateChanged(false)
	return err
}

// Emit sends a named event to the server. It fails fast with ErrNotConnected
// when there is no live connection. Goroutine-safe.
func (t *WSTransport) Emit(event string, payload interface{}) error {
	data, err := protocol.NewClientEvent(event, payload)
	if err != nil {
		metrics.EmitFailuresTotal.Inc()
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		metrics.EmitFailuresTotal.Inc()
		return fmt.Errorf("transport: emit %q: %w", event, ErrNotConnected)
	}
	if err := wsutil.WriteClientMessage(t.conn, ws.OpText, data); err != nil {
		metrics.EmitFailuresTotal.Inc()
		return fmt.Errorf("transport: emit %q: %w", event, err)
	}
	metrics.EmitsTotal.WithLabelValues(event).Inc()
	return nil
}

// IsConnected reports whether a connection is currently live.
func (t *WSTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// readLoop reads frames from one established connection and hands them to
// the frame handler until the connection drops. Whichever side removes the
// connection from the transport (this loop or Close) owns the disconnect
// notification, so the state handler fires exactly once per connection.
func (t *WSTransport) readLoop(conn net.Conn) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			t.mu.Lock()
			owned := t.conn == conn
			if owned {
				t.conn = nil
			}
			t.mu.Unlock()

			if owned {
				t.log.Debug().Err(err).Msg("transport connection lost")
				metrics.Connected.Set(0)
				t.stateChanged(false)
			}
			return
		}

		if t.onFrame != nil {
			t.onFrame(data)
		}
	}
}

func (t *WSTransport) stateChanged(connected bool) {
	if t.onState != nil {
		t.onState(connected)
	}
}

// toWebSocketURL rewrites http/https URLs to their ws/wss equivalents. URLs
// already carrying a WebSocket scheme pass through unchanged.
func toWebSocketURL(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}
