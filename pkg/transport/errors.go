package transport

import "errors"

// Transport package errors.
var (
	// ErrDisconnected is returned when the peer closed the connection.
	ErrDisconnected = errors.New("transport: peer disconnected")

	// ErrCancelled is returned when a read or write was abandoned
	// because the context was cancelled.
	ErrCancelled = errors.New("transport: operation cancelled")

	// ErrClosed is returned for operations on a closed client.
	ErrClosed = errors.New("transport: client closed")

	// ErrPacketTooLong is returned when no end delimiter appears
	// within the receive buffer limit.
	ErrPacketTooLong = errors.New("transport: packet exceeds buffer limit")
)
