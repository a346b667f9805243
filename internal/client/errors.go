package client

import (
	"errors"

	"github.com/parley/chat-client/internal/transport"
)

// ErrNotConnected is returned by outbound intents when there is no live
// connection. Sends are never queued; the caller decides whether to retry
// once the session reports connected again.
var ErrNotConnected = transport.ErrNotConnected

// ErrEmptyIdentity is returned by Connect when no display name is given.
var ErrEmptyIdentity = errors.New("client: identity must not be empty")

// ErrAlreadyConnected is returned by Connect while a session is live or
// still trying to reconnect.
var ErrAlreadyConnected = errors.New("client: already connected")

// ErrReconnectExhausted is passed to the reconnect-exhausted hook after the
// configured number of automatic attempts failed. The session stays in
// StateExhausted until Connect is called again.
var ErrReconnectExhausted = errors.New("client: reconnect attempts exhausted")
