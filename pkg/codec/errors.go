package codec

import (
	"errors"
	"fmt"
)

// Codec package errors.
var (
	// ErrShortBuffer is returned when the buffer ends before a field is complete.
	ErrShortBuffer = errors.New("codec: short buffer")

	// ErrLengthOverflow is returned when an array exceeds its length prefix range.
	ErrLengthOverflow = errors.New("codec: length exceeds prefix range")

	// ErrUnsupportedType names field kinds the codec cannot handle. Payload
	// codecs are hand-written per message type, so no code path in this
	// module returns it.
	ErrUnsupportedType = errors.New("codec: unsupported field type")

	// ErrInvalidPrefixWidth is returned for prefix widths other than 1 or 2.
	ErrInvalidPrefixWidth = errors.New("codec: invalid length prefix width")
)

// ShortBufferError reports which field could not be decoded and where.
type ShortBufferError struct {
	Field  string // field being decoded
	Offset int    // offset at which decoding stopped
	Need   int    // bytes required to continue
	Have   int    // bytes remaining
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("codec: short buffer decoding %q at offset %d: need %d, have %d",
		e.Field, e.Offset, e.Need, e.Have)
}

// Unwrap allows errors.Is(err, ErrShortBuffer).
func (e *ShortBufferError) Unwrap() error { return ErrShortBuffer }

// LengthOverflowError reports an array too long for its length prefix.
type LengthOverflowError struct {
	Field  string
	Length int // actual byte count
	Width  int // prefix width in bytes
}

func (e *LengthOverflowError) Error() string {
	return fmt.Sprintf("codec: %q is %d bytes, exceeds %d-byte prefix", e.Field, e.Length, e.Width)
}

func (e *LengthOverflowError) Unwrap() error { return ErrLengthOverflow }
