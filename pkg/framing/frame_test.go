package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrameShortLength(t *testing.T) {
	// A poll-sized body: sender, receiver, two command bytes.
	body := []byte{0x01, 0x00, 0x05, 0x70}

	frame, err := BuildFrame(body)
	require.NoError(t, err)

	// length(1) + body(4) + crc(2)
	require.Len(t, frame, 7)
	assert.Equal(t, byte(0x06), frame[0])
	assert.Equal(t, body, frame[1:5])

	crc := Checksum(body)
	assert.Equal(t, byte(crc>>8), frame[5])
	assert.Equal(t, byte(crc), frame[6])

	back, err := ParseFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, body, back)
}

func TestBuildFrameAckShape(t *testing.T) {
	// An ack body is just the two sequence bytes; the frame is five
	// bytes with length 4 and no command word.
	frame, err := BuildFrame([]byte{0x03, 0x02})
	require.NoError(t, err)
	require.Len(t, frame, 5)
	assert.Equal(t, byte(0x04), frame[0])
}

func TestBuildFrameTwoByteLength(t *testing.T) {
	body := make([]byte, 0x90)
	for i := range body {
		body[i] = byte(i)
	}

	frame, err := BuildFrame(body)
	require.NoError(t, err)

	// 0x90 + 2 = 0x92 does not fit in 7 bits.
	assert.Equal(t, byte(0x80), frame[0])
	assert.Equal(t, byte(0x92), frame[1])

	back, err := ParseFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, body, back)
}

func TestBuildFrameTooLong(t *testing.T) {
	_, err := BuildFrame(make([]byte, maxFrameLength))
	assert.ErrorIs(t, err, ErrFrameTooLong)
}

func TestParseFrameIgnoresBlockPadding(t *testing.T) {
	body := []byte{0x01, 0x00, 0x05, 0x70}
	frame, err := BuildFrame(body)
	require.NoError(t, err)

	// Simulate cipher padding to a 16-byte boundary.
	padded := append(frame, make([]byte, 16-len(frame)%16)...)

	back, err := ParseFrame(padded)
	require.NoError(t, err)
	assert.Equal(t, body, back)
}

func TestParseFrameCRCSensitivity(t *testing.T) {
	body := []byte{0x01, 0x00, 0x05, 0x70, 0xAA, 0xBB}
	frame, err := BuildFrame(body)
	require.NoError(t, err)

	// Flipping any single bit of the CRC-protected region fails.
	for i := 1; i < len(frame); i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := make([]byte, len(frame))
			copy(corrupt, frame)
			corrupt[i] ^= 1 << bit

			_, err := ParseFrame(corrupt)
			require.Error(t, err, "byte %d bit %d", i, bit)
		}
	}
}

func TestParseFrameTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"length only", []byte{0x06}},
		{"below minimum", []byte{0x02, 0x01, 0x00}},
		{"truncated body", []byte{0x06, 0x01, 0x00, 0x05}},
		{"truncated two-byte length", []byte{0x80}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFrame(tc.data)
			assert.ErrorIs(t, err, ErrFrameTooShort)
		})
	}
}

func TestPacketRoundtrip(t *testing.T) {
	body := []byte{0x01, 0x00, 0x05, 0x70, 0x7E, 0x7F, 0x7D}

	packet, err := AddFraming(body)
	require.NoError(t, err)
	assert.Equal(t, StartDelimiter, packet[0])
	assert.Equal(t, EndDelimiter, packet[len(packet)-1])

	back, err := RemoveFraming(packet)
	require.NoError(t, err)
	assert.Equal(t, body, back)
}

func TestUnwrapPacketHeaderRegion(t *testing.T) {
	frame := []byte{0x04, 0x01, 0x00, 0xAA, 0xBB}
	packet := WrapPacket([]byte{0xC0, 0x7E}, frame)

	header, body, err := UnwrapPacket(packet)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC0, 0x7E}, header)
	assert.Equal(t, frame, body)
}

func TestUnwrapPacketErrors(t *testing.T) {
	_, _, err := UnwrapPacket([]byte{0x7E, 0x01})
	assert.ErrorIs(t, err, ErrFraming)

	_, _, err = UnwrapPacket([]byte{0x01, 0x02, 0x7F})
	assert.ErrorIs(t, err, ErrFraming)
}
