package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/bhumlicek/itv2/pkg/message"
	"github.com/bhumlicek/itv2/pkg/seckey"
	"github.com/bhumlicek/itv2/pkg/transport"
)

// Default timing. The heartbeat delays mirror observed panel firmware
// expectations; all five are configurable.
const (
	DefaultTransactionTimeout    = 30 * time.Second
	DefaultHandshakeTimeout      = 60 * time.Second
	DefaultLockTimeout           = 30 * time.Second
	DefaultHeartbeatInitialDelay = 10 * time.Second
	DefaultHeartbeatInterval     = 30 * time.Second
)

// Notification is one decoded inbound message, delivered upward to the
// application bus.
type Notification struct {
	SessionID  uuid.UUID
	ReceivedAt time.Time
	Message    message.Message
}

// Config configures a session.
type Config struct {
	// Client is the transport for this connection. Required.
	Client *transport.Client

	// Secrets are the provisioned integration secrets used during the
	// handshake. Required for encrypted panels.
	Secrets seckey.Secrets

	// OnNotification receives every successfully decoded inbound
	// message. Called outside the session lock. Optional.
	OnNotification func(Notification)

	// OnHandshake is called once when the handshake completes. Optional.
	OnHandshake func(sessionID uuid.UUID)

	// LoggerFactory creates the session logger. Nil uses the default
	// factory.
	LoggerFactory logging.LoggerFactory

	// TransactionTimeout bounds ordinary transactions; zero means the
	// default. HandshakeTimeout bounds the whole handshake.
	TransactionTimeout time.Duration
	HandshakeTimeout   time.Duration

	// LockTimeout bounds session lock acquisition; exceeding it is
	// fatal for the session.
	LockTimeout time.Duration

	// HeartbeatInitialDelay is the pause after the handshake before
	// the version probe; HeartbeatInterval spaces the polls after it.
	HeartbeatInitialDelay time.Duration
	HeartbeatInterval     time.Duration

	// Identity the gateway reports when mirroring the panel's session
	// open. Zero values are fine for panels that ignore them.
	DeviceType      uint8
	DeviceID        uint16
	SoftwareVersion uint16
}

func (c *Config) applyDefaults() {
	if c.TransactionTimeout == 0 {
		c.TransactionTimeout = DefaultTransactionTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.HeartbeatInitialDelay == 0 {
		c.HeartbeatInitialDelay = DefaultHeartbeatInitialDelay
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}
