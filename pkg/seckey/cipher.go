package seckey

import (
	"crypto/aes"
	"crypto/cipher"
)

// BlockSize is the AES block size in bytes. Every key and check-byte
// sequence in the keying schemes is one block.
const BlockSize = aes.BlockSize

// Cipher encrypts and decrypts whole frames with AES-128-ECB and zero
// padding. ECB with no IV or MAC is dictated by the panel protocol; the
// frame CRC inside the ciphertext is the only integrity check.
type Cipher struct {
	block cipher.Block
}

// NewCipher creates a cipher from a 16-byte AES key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != BlockSize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block}, nil
}

// Encrypt pads data with zeros to a block boundary and encrypts each
// block. The input is not modified.
func (c *Cipher) Encrypt(data []byte) []byte {
	padded := pad(data)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += BlockSize {
		c.block.Encrypt(out[i:i+BlockSize], padded[i:i+BlockSize])
	}
	return out
}

// Decrypt decrypts each block. Input that is not block-aligned is
// zero-padded first; panels have been observed to truncate trailing
// pad bytes on the wire.
func (c *Cipher) Decrypt(data []byte) []byte {
	padded := pad(data)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += BlockSize {
		c.block.Decrypt(out[i:i+BlockSize], padded[i:i+BlockSize])
	}
	return out
}

func pad(data []byte) []byte {
	if rem := len(data) % BlockSize; rem != 0 {
		padded := make([]byte, len(data)+BlockSize-rem)
		copy(padded, data)
		return padded
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
