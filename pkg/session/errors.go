package session

import "errors"

// Session package errors.
var (
	// ErrDeadlock is returned when the session lock could not be
	// acquired within its timeout. Fatal: the session terminates.
	ErrDeadlock = errors.New("session: lock acquisition timed out")

	// ErrTimeout is returned when a transaction exceeded its budget.
	ErrTimeout = errors.New("session: transaction timed out")

	// ErrCancelled is returned when shutdown interrupted a transaction.
	ErrCancelled = errors.New("session: cancelled")

	// ErrUnexpectedResponse is returned when a correlated frame
	// carried the wrong message type.
	ErrUnexpectedResponse = errors.New("session: unexpected response type")

	// ErrNotSupported is returned when a message type demands a known
	// command at a point where only an unknown one is available, or an
	// unknown encryption scheme is requested.
	ErrNotSupported = errors.New("session: not supported")

	// ErrClosed is returned for sends on a session that has shut down.
	ErrClosed = errors.New("session: closed")
)
