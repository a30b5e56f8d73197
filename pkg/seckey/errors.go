package seckey

import "errors"

// Seckey package errors.
var (
	// ErrCheckMismatch is returned when the check bytes of a Type 1
	// initializer do not match the decrypted material.
	ErrCheckMismatch = errors.New("seckey: initializer check bytes do not match")

	// ErrInitializerLength is returned for an initializer of the wrong size.
	ErrInitializerLength = errors.New("seckey: invalid initializer length")

	// ErrUnknownScheme is returned for an encryption type byte the
	// gateway does not implement.
	ErrUnknownScheme = errors.New("seckey: unknown encryption scheme")

	// ErrInvalidSecret is returned when a configured access code or
	// identification number cannot produce a key.
	ErrInvalidSecret = errors.New("seckey: invalid integration secret")

	// ErrInvalidKey is returned for key material that is not one AES block.
	ErrInvalidKey = errors.New("seckey: invalid key length")
)
