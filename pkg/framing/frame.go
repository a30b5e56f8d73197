package framing

import (
	"bytes"
	"fmt"

	"github.com/sigurn/crc16"
)

// Frames longer than this cannot be described by the two-byte length
// encoding (15 usable bits).
const maxFrameLength = 0x7FFF

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Checksum computes the frame CRC over the given bytes using
// CRC-16/ARC; the two checksum bytes are big-endian on the wire.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// BuildFrame prepends the length and appends the CRC to a frame body.
// The body is everything between the length field and the CRC: sender
// sequence, receiver sequence, optional command word, optional app
// sequence, payload. The length counts the body plus the two CRC bytes.
// Lengths below 0x80 use one byte; longer frames use two bytes with the
// high bit of the first set as a continuation marker.
func BuildFrame(body []byte) ([]byte, error) {
	length := len(body) + 2
	if length > maxFrameLength {
		return nil, ErrFrameTooLong
	}

	var out []byte
	if length < 0x80 {
		out = make([]byte, 0, 1+length)
		out = append(out, byte(length))
	} else {
		out = make([]byte, 0, 2+length)
		out = append(out, 0x80|byte(length>>8), byte(length))
	}
	out = append(out, body...)

	crc := Checksum(body)
	out = append(out, byte(crc>>8), byte(crc))
	return out, nil
}

// ParseFrame strips the length prefix and CRC from a decrypted frame
// and returns the body. Trailing bytes beyond the declared length are
// ignored; block ciphers pad frames to a block boundary.
func ParseFrame(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty frame", ErrFrameTooShort)
	}

	var length, start int
	if data[0]&0x80 == 0 {
		length = int(data[0])
		start = 1
	} else {
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: truncated length prefix", ErrFrameTooShort)
		}
		length = int(data[0]&0x7F)<<8 | int(data[1])
		start = 2
	}

	// Minimum body is sender seq + receiver seq, plus the two CRC bytes.
	if length < 4 {
		return nil, fmt.Errorf("%w: declared length %d", ErrFrameTooShort, length)
	}
	if len(data) < start+length {
		return nil, fmt.Errorf("%w: declared %d, have %d", ErrFrameTooShort, length, len(data)-start)
	}

	body := data[start : start+length-2]
	want := uint16(data[start+length-2])<<8 | uint16(data[start+length-1])
	if got := Checksum(body); got != want {
		return nil, fmt.Errorf("%w: computed 0x%04X, frame carries 0x%04X", ErrCRC, got, want)
	}

	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// WrapPacket byte-stuffs the frame and wraps it in the packet envelope.
// The optional header region precedes the start delimiter and is
// stuffed independently; it is empty on everything the gateway emits
// and is kept for legacy peers that prepend addressing bytes.
func WrapPacket(header, frame []byte) []byte {
	stuffedBody := Stuff(frame)
	out := make([]byte, 0, len(header)+len(stuffedBody)+2)
	if len(header) > 0 {
		out = append(out, Stuff(header)...)
	}
	out = append(out, StartDelimiter)
	out = append(out, stuffedBody...)
	out = append(out, EndDelimiter)
	return out
}

// UnwrapPacket validates the packet envelope and unstuffs the header
// and body regions. The input is one complete packet ending in the end
// delimiter, as produced by the transport reader.
func UnwrapPacket(packet []byte) (header, frame []byte, err error) {
	if len(packet) < 2 || packet[len(packet)-1] != EndDelimiter {
		return nil, nil, fmt.Errorf("%w: no end delimiter", ErrFraming)
	}

	sep := bytes.IndexByte(packet, StartDelimiter)
	if sep < 0 {
		return nil, nil, fmt.Errorf("%w: no start delimiter", ErrFraming)
	}

	if sep > 0 {
		header, err = Unstuff(packet[:sep])
		if err != nil {
			return nil, nil, err
		}
	}

	frame, err = Unstuff(packet[sep+1 : len(packet)-1])
	if err != nil {
		return nil, nil, err
	}
	return header, frame, nil
}

// AddFraming builds a complete unencrypted packet from a frame body.
// Encrypted paths call BuildFrame, the cipher, and WrapPacket in turn.
func AddFraming(body []byte) ([]byte, error) {
	frame, err := BuildFrame(body)
	if err != nil {
		return nil, err
	}
	return WrapPacket(nil, frame), nil
}

// RemoveFraming unwraps, unstuffs and validates an unencrypted packet
// and returns the frame body.
func RemoveFraming(packet []byte) ([]byte, error) {
	_, frame, err := UnwrapPacket(packet)
	if err != nil {
		return nil, err
	}
	return ParseFrame(frame)
}
