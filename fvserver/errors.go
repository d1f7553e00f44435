package fvserver

import "errors"

var (
	// ErrProtocolViolation indicates the peer sent something other than
	// begin_session as its first message, or sent a message type the
	// active-state dispatch table does not recognize badly enough to
	// warrant a logged warning rather than termination.
	ErrProtocolViolation = errors.New("fvserver: protocol violation")

	// ErrVersionMismatch indicates the peer's protocol_version high byte
	// differs from this server's.
	ErrVersionMismatch = errors.New("fvserver: protocol version mismatch")

	// ErrSessionNotFound indicates a fan-out handler or server lookup
	// addressed a session id no longer in the server's table.
	ErrSessionNotFound = errors.New("fvserver: session not found")

	ErrServerClosed = errors.New("fvserver: server closed")
)
