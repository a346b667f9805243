// Package protocol defines the named events and payload structures exchanged
// with the chat server. All events are serialized as JSON and follow a
// consistent envelope format with an event-name discriminator and a deferred
// data payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event name constants
// ---------------------------------------------------------------------------

// Client -> Server event names.
const (
	EventUserJoin       = "user_join"
	EventSendMessage    = "send_message"
	EventPrivateMessage = "private_message"
	EventTyping         = "typing"
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventRoomMessage    = "room_message"
	EventMessageRead    = "message_read"
)

// Server -> Client event names. EventPrivateMessage, EventRoomMessage and
// EventMessageRead are shared with the outbound direction: the server reuses
// the same names when broadcasting.
const (
	EventReceiveMessage = "receive_message"
	EventUserList       = "user_list"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventTypingUsers    = "typing_users"
	EventRoomHistory    = "room_history"
)

// ---------------------------------------------------------------------------
// Core data types
// ---------------------------------------------------------------------------

// Message is a single chat message. Messages are created by the server (or
// synthesized locally for join/leave notices) and are never mutated after
// insertion into a store.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
	Text      string `json:"message"`
	Timestamp string `json:"timestamp"`
	System    bool   `json:"system,omitempty"`
	IsPrivate bool   `json:"isPrivate,omitempty"`
	Room      string `json:"room,omitempty"`
}

// UnmarshalJSON accepts both string and numeric message IDs. The server
// assigns numeric IDs (millisecond timestamps) while locally synthesized
// messages use string UUIDs, so the decoder normalizes both forms to a
// string.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal message: %w", err)
	}
	id, err := normalizeID(aux.ID)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// User identifies a connected chat participant.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UnmarshalJSON accepts both string and numeric user IDs, mirroring the
// Message ID handling.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(u)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal user: %w", err)
	}
	id, err := normalizeID(aux.ID)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// normalizeID converts a raw JSON scalar (string or number) into its string
// form. Absent or null IDs normalize to the empty string; validation of
// required IDs happens at the event boundary, not here.
func normalizeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("protocol: invalid id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("protocol: invalid id: %w", err)
	}
	return n.String(), nil
}

// ---------------------------------------------------------------------------
// Envelope: initial parse to extract the event-name discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the event name and the raw JSON data payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// UnmarshalJSON implements json.Unmarshaler. It rejects envelopes with a
// missing or empty event name so malformed frames are caught before dispatch.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var partial struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Event == "" {
		return fmt.Errorf("protocol: missing or empty \"event\" field")
	}
	e.Event = partial.Event
	e.Data = partial.Data
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server payload structs
// ---------------------------------------------------------------------------

// SendMessagePayload carries a message for the global room.
type SendMessagePayload struct {
	Text string `json:"message"`
}

// PrivateMessagePayload carries a direct message to a specific user.
type PrivateMessagePayload struct {
	To   string `json:"to"`
	Text string `json:"message"`
}

// RoomMessagePayload carries a message scoped to a named room.
type RoomMessagePayload struct {
	Room string `json:"room"`
	Text string `json:"message"`
}

// MessageReadPayload acknowledges receipt of a specific message.
type MessageReadPayload struct {
	MessageID string `json:"messageId"`
}

// ---------------------------------------------------------------------------
// Server -> Client payload structs
// ---------------------------------------------------------------------------

// ReadReceiptPayload reports that a user has acknowledged a message.
type ReadReceiptPayload struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
}

// UnmarshalJSON accepts string and numeric IDs for both fields.
func (p *ReadReceiptPayload) UnmarshalJSON(data []byte) error {
	var aux struct {
		MessageID json.RawMessage `json:"messageId"`
		ReaderID  json.RawMessage `json:"readerId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal read receipt: %w", err)
	}
	var err error
	if p.MessageID, err = normalizeID(aux.MessageID); err != nil {
		return err
	}
	if p.ReaderID, err = normalizeID(aux.ReaderID); err != nil {
		return err
	}
	return nil
}

// RoomHistoryPayload delivers the full ordered message history for a room.
type RoomHistoryPayload struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

// ---------------------------------------------------------------------------
// Parsing and construction
// ---------------------------------------------------------------------------

// ParseServerEvent parses a raw inbound frame into a typed server event. It
// returns the event name, the decoded payload struct, and any error
// encountered. Unknown event names and payloads missing required fields are
// reported as errors; callers are expected to drop such frames without
// interrupting dispatch of subsequent events.
func ParseServerEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse frame: %w", err)
	}

	var (
		payload interface{}
		err     error
	)

	switch env.Event {
	case EventReceiveMessage, EventPrivateMessage, EventRoomMessage:
		var m Message
		err = json.Unmarshal(env.Data, &m)
		if err == nil && m.ID == "" {
			err = fmt.Errorf("protocol: %s payload missing message id", env.Event)
		}
		if err == nil && env.Event == EventRoomMessage && m.Room == "" {
			err = fmt.Errorf("protocol: room_message payload missing room")
		}
		payload = m
	case EventUserList:
		var users []User
		err = json.Unmarshal(env.Data, &users)
		payload = users
	case EventUserJoined, EventUserLeft:
		var u User
		err = json.Unmarshal(env.Data, &u)
		if err == nil && u.Username == "" {
			err = fmt.Errorf("protocol: %s payload missing username", env.Event)
		}
		payload = u
	case EventTypingUsers:
		var names []string
		err = json.Unmarshal(env.Data, &names)
		payload = names
	case EventMessageRead:
		var r ReadReceiptPayload
		err = json.Unmarshal(env.Data, &r)
		if err == nil && (r.MessageID == "" || r.ReaderID == "") {
			err = fmt.Errorf("protocol: message_read payload missing messageId or readerId")
		}
		payload = r
	case EventRoomHistory:
		var h RoomHistoryPayload
		err = json.Unmarshal(env.Data, &h)
		if err == nil && h.Room == "" {
			err = fmt.Errorf("protocol: room_history payload missing room")
		}
		payload = h
	default:
		return env.Event, nil, fmt.Errorf("protocol: unknown server event: %q", env.Event)
	}

	if err != nil {
		return env.Event, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Event, err)
	}
	return env.Event, payload, nil
}

// NewClientEvent builds a JSON-encoded frame for an outbound event. The
// payload may be any JSON-marshalable value, including bare strings and
// booleans for events like join_room and typing.
func NewClientEvent(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q payload: %w", event, err)
	}
	out, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q frame: %w", event, err)
	}
	return out, nil
}
