package codec

import "encoding/binary"

// Writer encodes fields sequentially into a growing byte buffer.
// All multi-byte integers are big-endian.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded buffer and the first error encountered,
// if any. Once an error occurs, subsequent writes are no-ops.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// Uint8 encodes a single byte.
func (w *Writer) Uint8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

// Uint16 encodes a big-endian 16-bit integer.
func (w *Writer) Uint16(v uint16) {
	if w.err != nil {
		return
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// Uint32 encodes a big-endian 32-bit integer.
func (w *Writer) Uint32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// Int8 encodes a signed byte.
func (w *Writer) Int8(v int8) { w.Uint8(uint8(v)) }

// Int16 encodes a big-endian signed 16-bit integer.
func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }

// Int32 encodes a big-endian signed 32-bit integer.
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

// CompactUint encodes a compact integer. Single byte until the
// variable-width form is observed on the wire; see Reader.CompactUint.
func (w *Writer) CompactUint(v uint8) { w.Uint8(v) }

// FixedBytes encodes exactly n bytes: shorter values are right-padded
// with zeros, longer values are truncated.
func (w *Writer) FixedBytes(v []byte, n int) {
	if w.err != nil {
		return
	}
	if len(v) >= n {
		w.buf = append(w.buf, v[:n]...)
		return
	}
	w.buf = append(w.buf, v...)
	w.buf = append(w.buf, make([]byte, n-len(v))...)
}

// PrefixedBytes encodes a length-prefixed byte array. Fails when the
// value does not fit the prefix width.
func (w *Writer) PrefixedBytes(field string, v []byte, width int) {
	if w.err != nil {
		return
	}
	switch width {
	case 1:
		if len(v) > 0xFF {
			w.err = &LengthOverflowError{Field: field, Length: len(v), Width: width}
			return
		}
		w.buf = append(w.buf, uint8(len(v)))
	case 2:
		if len(v) > 0xFFFF {
			w.err = &LengthOverflowError{Field: field, Length: len(v), Width: width}
			return
		}
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(v)))
	default:
		w.err = ErrInvalidPrefixWidth
		return
	}
	w.buf = append(w.buf, v...)
}

// Raw appends v without any length treatment. Used for trailing
// payloads whose extent is bounded by the frame, not by a prefix.
func (w *Writer) Raw(v []byte) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v...)
}
