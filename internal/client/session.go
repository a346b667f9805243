// Package client implements the chat session: connection lifecycle with
// bounded reconnection, event routing into the state stores, and the
// outbound intents exposed to a UI layer. One Session is constructed per
// login; there is no process-wide shared instance.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/chat-client/internal/config"
	"github.com/parley/chat-client/internal/metrics"
	"github.com/parley/chat-client/internal/protocol"
	"github.com/parley/chat-client/internal/store"
	"github.com/parley/chat-client/internal/transport"
)

// Transport is the persistent bidirectional connection the session runs
// over. transport.WSTransport is the production implementation; tests
// substitute an in-memory fake.
type Transport interface {
	Dial(ctx context.Context) error
	Close() error
	Emit(event string, payload interface{}) error
	SetFrameHandler(fn func(data []byte))
	SetStateHandler(fn func(connected bool))
}

// ConnState is the consumer-facing connection state. IsConnected remains the
// primary surface; the richer state exists so reconnect exhaustion can be
// told apart from never having connected.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateExhausted
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Session is a live client session against the chat server. It owns the
// transport, the event router, and the four state stores. All store
// mutations happen on the transport's read goroutine; the stores themselves
// are safe for concurrent snapshot reads by the UI.
type Session struct {
	cfg config.Config
	log zerolog.Logger
	tr  Transport

	messages *store.MessageStore
	rooms    *store.RoomStore
	presence *store.PresenceStore
	typing   *store.TypingStore
	receipts *store.ReadReceiptIndex

	router *EventRouter

	mu       sync.Mutex
	state    ConnState
	identity string
	closing  bool
	gen      uint64
	done     chan struct{}
	dialCtx  context.Context

	updates     chan struct{}
	onExhausted func(error)
}

// New creates a session speaking to cfg.ServerURL over a WebSocket.
func New(cfg config.Config, log zerolog.Logger) *Session {
	return NewWithTransport(cfg, log, transport.New(cfg.ServerURL, log))
}

// NewWithTransport creates a session over the given transport. The frame
// handler is bound exactly once here, for the lifetime of the session, so
// reconnect cycles never produce duplicate registrations.
func NewWithTransport(cfg config.Config, log zerolog.Logger, tr Transport) *Session {
	s := &Session{
		cfg:      cfg,
		log:      log,
		tr:       tr,
		messages: store.NewMessageStore(),
		rooms:    store.NewRoomStore(),
		presence: store.NewPresenceStore(),
		typing:   store.NewTypingStore(),
		receipts: store.NewReadReceiptIndex(),
		state:    StateDisconnected,
		updates:  make(chan struct{}, 1),
	}
	s.router = newEventRouter(s)
	tr.SetFrameHandler(s.router.onFrame)
	tr.SetStateHandler(s.onTransportState)
	return s
}

// OnReconnectExhausted registers a hook invoked once the automatic reconnect
// bound is reached. Must be called before Connect.
func (s *Session) OnReconnectExhausted(fn func(error)) {
	s.onExhausted = fn
}

// Connect opens the transport and, once it signals established, announces
// identity to the server with a user_join event. The connection is never
// established implicitly; callers trigger it explicitly, and must call
// Connect again after the reconnect bound is exhausted.
func (s *Session) Connect(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}

	s.mu.Lock()
	switch s.state {
	case StateConnecting, StateConnected, StateReconnecting:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.identity = identity
	s.closing = false
	s.gen++
	s.done = make(chan struct{})
	s.dialCtx = ctx
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if err := s.tr.Dial(ctx); err != nil {
		s.mu.Lock()
		s.setStateLocked(StateDisconnected)
		s.mu.Unlock()
		return fmt.Errorf("client: connect: %w", err)
	}
	return nil
}

// Disconnect closes the transport and stops any in-flight reconnect loop. It
// is idempotent and safe to call in any state. Accumulated store state is
// deliberately left intact; only connectivity is torn down.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	wasClosing := s.closing
	s.closing = true
	s.gen++
	if s.done != nil && !wasClosing {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()

	err := s.tr.Close()

	s.mu.Lock()
	s.setStateLocked(StateDisconnected)
	s.mu.Unlock()
	return err
}

// IsConnected reports whether the session currently has a live connection.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// State returns the current consumer-facing connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe activates event dispatch into the stores and returns an
// idempotent disposer. The owner of the session's lifetime calls this once
// after constructing the session and invokes the disposer on teardown;
// reconnects in between neither require nor produce re-registration.
func (s *Session) Subscribe() func() {
	return s.router.Subscribe()
}

// Updates returns a channel that receives a coalesced signal whenever store
// state or connectivity changes, so a UI can re-render from snapshots.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// ---------------------------------------------------------------------------
// Store accessors
// ---------------------------------------------------------------------------

// Messages returns the global message feed.
func (s *Session) Messages() *store.MessageStore { return s.messages }

// Rooms returns the per-room message feeds.
func (s *Session) Rooms() *store.RoomStore { return s.rooms }

// Presence returns the user roster.
func (s *Session) Presence() *store.PresenceStore { return s.presence }

// Typing returns the set of users currently typing.
func (s *Session) Typing() *store.TypingStore { return s.typing }

// Receipts returns the read-receipt index.
func (s *Session) Receipts() *store.ReadReceiptIndex { return s.receipts }

// LastMessage returns the most recent global-feed message, if any. UIs use
// this to raise notifications without diffing the whole feed.
func (s *Session) LastMessage() (protocol.Message, bool) {
	return s.messages.Last()
}

// ---------------------------------------------------------------------------
// Outbound intents
// ---------------------------------------------------------------------------

// SendMessage sends a message to the global room.
func (s *Session) SendMessage(text string) error {
	return s.tr.Emit(protocol.EventSendMessage, protocol.SendMessagePayload{Text: text})
}

// SendPrivateMessage sends a direct message to the given user ID.
func (s *Session) SendPrivateMessage(to, text string) error {
	return s.tr.Emit(protocol.EventPrivateMessage, protocol.PrivateMessagePayload{To: to, Text: text})
}

// SetTyping reports whether the local user is composing. Callers emit this
// on every transition between empty and non-empty input; no local throttling
// is applied.
func (s *Session) SetTyping(isTyping bool) error {
	return s.tr.Emit(protocol.EventTyping, isTyping)
}

// JoinRoom subscribes the session to a named room.
func (s *Session) JoinRoom(room string) error {
	if room == "" {
		return fmt.Errorf("client: join room: room must not be empty")
	}
	return s.tr.Emit(protocol.EventJoinRoom, room)
}

// LeaveRoom unsubscribes the session from a named room. The room's locally
// accumulated feed is retained.
func (s *Session) LeaveRoom(room string) error {
	if room == "" {
		return fmt.Errorf("client: leave room: room must not be empty")
	}
	return s.tr.Emit(protocol.EventLeaveRoom, room)
}

// SendRoomMessage sends a message scoped to a named room.
func (s *Session) SendRoomMessage(room, text string) error {
	if room == "" {
		return fmt.Errorf("client: room message: room must not be empty")
	}
	return s.tr.Emit(protocol.EventRoomMessage, protocol.RoomMessagePayload{Room: room, Text: text})
}

// MarkRead acknowledges a message explicitly. Under the default AckOnReceipt
// policy this happens automatically on arrival; under AckManual the consumer
// calls it when the message becomes visible.
func (s *Session) MarkRead(messageID string) error {
	return s.tr.Emit(protocol.EventMessageRead, protocol.MessageReadPayload{MessageID: messageID})
}

// ---------------------------------------------------------------------------
// Lifecycle internals
// ---------------------------------------------------------------------------

// onTransportState handles connection establishment and loss signals from
// the transport. Runs on the dialing goroutine for establishment and on the
// read-loop goroutine for loss.
func (s *Session) onTransportState(connected bool) {
	if connected {
		s.mu.Lock()
		if s.closing {
			// Disconnect raced an in-flight dial; refuse the establishment
			// and tear the fresh connection down.
			s.mu.Unlock()
			s.tr.Close()
			return
		}
		s.setStateLocked(StateConnected)
		identity := s.identity
		s.mu.Unlock()

		// Announce on every establishment, including reconnects: the server
		// has no memory of this client across connections.
		if err := s.tr.Emit(protocol.EventUserJoin, identity); err != nil {
			s.log.Warn().Err(err).Msg("announce failed")
		}
		s.notify()
		return
	}

	s.mu.Lock()
	if s.closing || s.state == StateReconnecting {
		if s.closing {
			s.setStateLocked(StateDisconnected)
		}
		s.mu.Unlock()
		s.notify()
		return
	}
	s.setStateLocked(StateReconnecting)
	gen := s.gen
	done := s.done
	ctx := s.dialCtx
	s.mu.Unlock()
	s.notify()

	go s.reconnectLoop(ctx, gen, done)
}

// reconnectLoop retries the transport dial up to the configured bound with a
// fixed inter-attempt delay. It aborts if Disconnect or a fresh Connect
// bumps the generation counter.
func (s *Session) reconnectLoop(ctx context.Context, gen uint64, done chan struct{}) {
	timer := time.NewTimer(s.cfg.ReconnectDelay)
	defer timer.Stop()

	for attempt := 1; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-done:
			return
		case <-ctx.Done():
			s.giveUp(gen, ctx.Err())
			return
		case <-timer.C:
		}

		if s.stale(gen) {
			return
		}

		metrics.ReconnectAttemptsTotal.Inc()
		err := s.tr.Dial(ctx)
		if err == nil {
			if s.stale(gen) {
				// Disconnect landed between the staleness check and the
				// dial; the connection must not outlive it.
				s.tr.Close()
				return
			}
			s.log.Info().Int("attempt", attempt).Msg("reconnected")
			return
		}
		s.log.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", s.cfg.ReconnectAttempts).
			Msg("reconnect attempt failed")

		timer.Reset(s.cfg.ReconnectDelay)
	}

	s.giveUp(gen, ErrReconnectExhausted)
}

// giveUp transitions a still-current reconnect loop into the terminal
// exhausted state and fires the hook.
func (s *Session) giveUp(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateExhausted)
	hook := s.onExhausted
	s.mu.Unlock()

	s.log.Error().Err(err).Msg("giving up on reconnection")
	if hook != nil {
		hook(err)
	}
	s.notify()
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

func (s *Session) setStateLocked(state ConnState) {
	if s.state != state {
		s.log.Debug().Stringer("from", s.state).Stringer("to", state).Msg("state change")
	}
	s.state = state
}

// notify wakes the UI with a coalesced update signal.
func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// newSystemMessage synthesizes a locally owned system notice for the global
// feed. IDs are generated locally and the timestamp is the local receipt
// time; system notices never round-trip through the server.
func newSystemMessage(text string) protocol.Message {
	return protocol.Message{
		ID:        uuid.New().String(),
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		System:    true,
	}
}
