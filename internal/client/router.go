package client

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley/chat-client/internal/config"
	"github.com/parley/chat-client/internal/metrics"
	"github.com/parley/chat-client/internal/protocol"
)

// EventRouter maps named inbound events to typed store mutations. The
// transport's frame handler feeds it exactly once per session, so handlers
// are structurally bound once: reconnect cycles cannot duplicate dispatch.
// Events are applied strictly in arrival order with no batching, reordering,
// or deduplication. A frame that fails to decode is counted, logged, and
// dropped; it never halts dispatch of subsequent events.
type EventRouter struct {
	sess   *Session
	active atomic.Bool
}

func newEventRouter(sess *Session) *EventRouter {
	return &EventRouter{sess: sess}
}

// Subscribe activates dispatch and returns a disposer that deactivates it.
// Whoever owns the session's lifetime calls the pair once; the disposer is
// idempotent. While unsubscribed, inbound frames are discarded so a torn
// down consumer never sees late dispatch.
func (r *EventRouter) Subscribe() func() {
	r.active.Store(true)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.active.Store(false)
		})
	}
}

// onFrame is the transport frame handler. Runs on the read-loop goroutine;
// this single execution context is what lets the stores mutate without
// cross-event locking concerns.
func (r *EventRouter) onFrame(data []byte) {
	if !r.active.Load() {
		return
	}

	start := time.Now()
	event, payload, err := protocol.ParseServerEvent(data)
	if err != nil {
		metrics.EventsDroppedTotal.Inc()
		r.sess.log.Warn().Err(err).Msg("dropping malformed event")
		return
	}

	r.dispatch(event, payload)

	metrics.EventsDispatchedTotal.WithLabelValues(event).Inc()
	metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	r.sess.notify()
}

func (r *EventRouter) dispatch(event string, payload interface{}) {
	s := r.sess

	switch event {
	case protocol.EventReceiveMessage, protocol.EventPrivateMessage:
		msg := payload.(protocol.Message)
		s.messages.Append(msg)
		r.maybeAck(msg)

	case protocol.EventUserList:
		s.presence.SetRoster(payload.([]protocol.User))

	case protocol.EventUserJoined:
		u := payload.(protocol.User)
		s.messages.Append(newSystemMessage(fmt.Sprintf("%s joined the chat", u.Username)))

	case protocol.EventUserLeft:
		u := payload.(protocol.User)
		s.messages.Append(newSystemMessage(fmt.Sprintf("%s left the chat", u.Username)))

	case protocol.EventTypingUsers:
		s.typing.Set(payload.([]string))

	case protocol.EventMessageRead:
		receipt := payload.(protocol.ReadReceiptPayload)
		s.receipts.Record(receipt.MessageID, receipt.ReaderID)

	case protocol.EventRoomMessage:
		msg := payload.(protocol.Message)
		s.rooms.Append(msg.Room, msg)

	case protocol.EventRoomHistory:
		history := payload.(protocol.RoomHistoryPayload)
		s.rooms.ReplaceHistory(history.Room, history.Messages)
	}
}

// maybeAck emits the read acknowledgement for a freshly received message
// under the AckOnReceipt policy. System notices are never acknowledged. The
// eager ack fires on receipt, not on user visibility; consumers wanting
// visibility semantics configure AckManual and call MarkRead themselves.
func (r *EventRouter) maybeAck(msg protocol.Message) {
	if msg.System || r.sess.cfg.AckPolicy != config.AckOnReceipt {
		return
	}
	if err := r.sess.MarkRead(msg.ID); err != nil {
		r.sess.log.Warn().Err(err).Str("message_id", msg.ID).Msg("read ack failed")
	}
}
