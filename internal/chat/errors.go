package chat

import "errors"

// Every failure in this package is scoped to the smallest affected
// unit: one frame, one publish attempt, or one session. Nothing here
// is process-fatal.
var (
	// ErrInvalidHandshake: missing room or sender at connect time.
	// The connection is refused before it is ever registered.
	ErrInvalidHandshake = errors.New("chat: invalid handshake")

	// ErrMalformedMessage: an inbound frame that does not parse. The
	// frame is dropped; the connection stays open.
	ErrMalformedMessage = errors.New("chat: malformed message")

	// ErrEmptyMessage: a body that trims to empty. Rejected before
	// persistence, nothing is fanned out.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrPersistenceFailure: the store rejected the append. The message
	// is delivered to no one; the sender may retry.
	ErrPersistenceFailure = errors.New("chat: persistence failure")

	// ErrSessionClosed: a delivery attempt on a session that is closed
	// or whose outbound buffer is full. Isolated to that session.
	ErrSessionClosed = errors.New("chat: session closed")
)
