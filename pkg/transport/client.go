package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pion/logging"

	"github.com/bhumlicek/itv2/pkg/framing"
)

// maxBufferedBytes bounds the receive buffer. A peer that never sends
// an end delimiter cannot grow the buffer without limit.
const maxBufferedBytes = 64 * 1024

// Client reads delimiter-bounded packets from a duplex byte pipe and
// writes packets to it. One client owns one connection; reads are
// serialised by the owning session's listen loop, writes by an
// internal mutex so each packet goes out as a single buffer.
type Client struct {
	conn net.Conn
	log  logging.LeveledLogger

	// buf accumulates bytes between reads; a packet may arrive split
	// across many reads or many packets may arrive in one.
	buf bytes.Buffer

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// ClientConfig configures a transport client.
type ClientConfig struct {
	// Conn is the connection to the panel. Required.
	Conn net.Conn

	// LoggerFactory creates the client's logger. Nil uses the default
	// factory.
	LoggerFactory logging.LoggerFactory
}

// NewClient creates a client over an established connection.
func NewClient(config ClientConfig) *Client {
	lf := config.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Client{
		conn: config.Conn,
		log:  lf.NewLogger("transport"),
	}
}

// ReadPacket blocks until one complete packet (through its end
// delimiter, inclusive) is available and returns it, pre-unstuff and
// pre-decrypt. Cancellation is cooperative: Close unblocks the pending
// read, and the context decides whether the failure surfaces as
// ErrCancelled or ErrDisconnected.
func (c *Client) ReadPacket(ctx context.Context) ([]byte, error) {
	for {
		if packet := c.slicePacket(); packet != nil {
			return packet, nil
		}
		if c.buf.Len() > maxBufferedBytes {
			return nil, ErrPacketTooLong
		}

		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}

		var chunk [4096]byte
		n, err := c.conn.Read(chunk[:])
		c.log.Debugf("conn read: n=%d err=%v", n, err)
		if n > 0 {
			c.buf.Write(chunk[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrCancelled
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil, ErrDisconnected
			}
			if c.isClosed() {
				return nil, ErrCancelled
			}
			return nil, fmt.Errorf("transport: read: %w", err)
		}
	}
}

// slicePacket cuts one packet through the first end delimiter out of
// the buffer, or returns nil if none is complete yet.
func (c *Client) slicePacket() []byte {
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, framing.EndDelimiter)
	if idx < 0 {
		return nil
	}
	packet := make([]byte, idx+1)
	copy(packet, data[:idx+1])
	c.buf.Next(idx + 1)
	return packet
}

// WritePacket writes one complete packet as a single buffer write.
func (c *Client) WritePacket(ctx context.Context, packet []byte) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	if c.isClosed() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(packet); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return ErrDisconnected
		}
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Close releases the connection. Pending reads unblock with
// ErrCancelled or ErrDisconnected. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
