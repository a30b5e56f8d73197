package framing

import "errors"

// Framing package errors.
var (
	// ErrFraming is returned when a packet delimiter is missing.
	ErrFraming = errors.New("framing: missing packet delimiter")

	// ErrEncoding is returned for an illegal escape sequence or a
	// reserved byte that leaked through unescaped.
	ErrEncoding = errors.New("framing: invalid byte stuffing")

	// ErrCRC is returned when the frame checksum does not match.
	ErrCRC = errors.New("framing: crc mismatch")

	// ErrFrameTooShort is returned when a frame is shorter than its
	// declared length or below the structural minimum.
	ErrFrameTooShort = errors.New("framing: frame too short")

	// ErrFrameTooLong is returned when a frame length exceeds the
	// two-byte length encoding.
	ErrFrameTooLong = errors.New("framing: frame too long")
)
