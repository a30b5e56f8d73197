package gateway

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/bhumlicek/itv2/pkg/seckey"
	"github.com/bhumlicek/itv2/pkg/session"
)

// DefaultPort is the TCP port panels dial by default.
const DefaultPort = 3072

// Config holds all configuration for a Gateway.
type Config struct {
	// Network. Panels initiate; the gateway never dials out. If
	// Listener is set it is used as-is and ListenPort is ignored.
	ListenPort int
	Listener   net.Listener

	// Secrets are the provisioned integration secrets. At least one
	// keying scheme must be usable.
	Secrets seckey.Secrets

	// Identity the gateway reports during the handshake mirror.
	DeviceType      uint8
	DeviceID        uint16
	SoftwareVersion uint16

	// Callbacks. OnNotification receives every decoded inbound
	// message from every session; it must not block.
	OnNotification   func(session.Notification)
	OnSessionStarted func(id uuid.UUID, remote net.Addr)
	OnSessionClosed  func(id uuid.UUID)

	// Session timing. Zero values use the session defaults.
	TransactionTimeout    time.Duration
	HandshakeTimeout      time.Duration
	HeartbeatInitialDelay time.Duration
	HeartbeatInterval     time.Duration

	// LoggerFactory creates loggers for the gateway and its sessions.
	// Nil uses the default factory.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	hasType1 := c.Secrets.AccessCodeType1 != "" && c.Secrets.IdentificationNumber != ""
	hasType2 := c.Secrets.AccessCodeType2 != ""
	if !hasType1 && !hasType2 {
		return ErrNoSecrets
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = DefaultPort
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}

// sessionConfig builds the per-connection session configuration.
func (c *Config) sessionConfig() session.Config {
	return session.Config{
		Secrets:               c.Secrets,
		LoggerFactory:         c.LoggerFactory,
		OnNotification:        c.OnNotification,
		TransactionTimeout:    c.TransactionTimeout,
		HandshakeTimeout:      c.HandshakeTimeout,
		HeartbeatInitialDelay: c.HeartbeatInitialDelay,
		HeartbeatInterval:     c.HeartbeatInterval,
		DeviceType:            c.DeviceType,
		DeviceID:              c.DeviceID,
		SoftwareVersion:       c.SoftwareVersion,
	}
}
