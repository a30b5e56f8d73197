package codec

import "encoding/binary"

// Reader decodes fields sequentially from a flat byte buffer.
// All multi-byte integers are big-endian. Reader never retains the
// input slice beyond the lifetime of the call that produced it; byte
// array accessors copy.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a reader over buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current decode offset.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of undecoded bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) need(field string, n int) error {
	if r.Remaining() < n {
		return &ShortBufferError{Field: field, Offset: r.off, Need: n, Have: r.Remaining()}
	}
	return nil
}

// Uint8 decodes a single byte.
func (r *Reader) Uint8(field string) (uint8, error) {
	if err := r.need(field, 1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Uint16 decodes a big-endian 16-bit integer.
func (r *Reader) Uint16(field string) (uint16, error) {
	if err := r.need(field, 2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// Uint32 decodes a big-endian 32-bit integer.
func (r *Reader) Uint32(field string) (uint32, error) {
	if err := r.need(field, 4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// Int8 decodes a signed byte.
func (r *Reader) Int8(field string) (int8, error) {
	v, err := r.Uint8(field)
	return int8(v), err
}

// Int16 decodes a big-endian signed 16-bit integer.
func (r *Reader) Int16(field string) (int16, error) {
	v, err := r.Uint16(field)
	return int16(v), err
}

// Int32 decodes a big-endian signed 32-bit integer.
func (r *Reader) Int32(field string) (int32, error) {
	v, err := r.Uint32(field)
	return int32(v), err
}

// CompactUint decodes a compact integer. The compact encoding is a
// reserved hook; until the variable-width form is observed on the wire
// it is a plain single byte.
func (r *Reader) CompactUint(field string) (uint8, error) {
	return r.Uint8(field)
}

// FixedBytes decodes exactly n bytes. The returned slice is a copy.
func (r *Reader) FixedBytes(field string, n int) ([]byte, error) {
	if err := r.need(field, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += n
	return out, nil
}

// PrefixedBytes decodes a length-prefixed byte array. The prefix is a
// big-endian integer of width 1 or 2 bytes.
func (r *Reader) PrefixedBytes(field string, width int) ([]byte, error) {
	var n int
	switch width {
	case 1:
		v, err := r.Uint8(field)
		if err != nil {
			return nil, err
		}
		n = int(v)
	case 2:
		v, err := r.Uint16(field)
		if err != nil {
			return nil, err
		}
		n = int(v)
	default:
		return nil, ErrInvalidPrefixWidth
	}
	return r.FixedBytes(field, n)
}

// Rest returns a copy of all undecoded bytes and advances to the end.
func (r *Reader) Rest() []byte {
	out := make([]byte, r.Remaining())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}
