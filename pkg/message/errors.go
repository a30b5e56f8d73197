package message

import "errors"

// Message package errors.
var (
	// ErrNoCommand is returned when encoding a message whose type has
	// no wire command and is not an ack.
	ErrNoCommand = errors.New("message: message type has no command code")

	// ErrDuplicateCommand is raised at registry construction when two
	// types claim the same command code.
	ErrDuplicateCommand = errors.New("message: duplicate command registration")

	// ErrBodyTooShort is returned for a frame body shorter than the two
	// sequence bytes.
	ErrBodyTooShort = errors.New("message: frame body too short")
)
