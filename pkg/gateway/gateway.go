package gateway

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"

	"github.com/bhumlicek/itv2/pkg/message"
	"github.com/bhumlicek/itv2/pkg/session"
	"github.com/bhumlicek/itv2/pkg/transport"
)

// Gateway accepts panel connections and runs one session per
// connection. Decoded inbound traffic fans into the configured
// notification callback; outbound commands are addressed by session ID.
type Gateway struct {
	cfg      Config
	log      logging.LeveledLogger
	listener net.Listener

	sessionsMu sync.RWMutex
	sessions   map[uuid.UUID]*session.Session

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a gateway from the configuration.
func New(cfg Config) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	return &Gateway{
		cfg:      cfg,
		log:      cfg.LoggerFactory.NewLogger("gateway"),
		listener: cfg.Listener,
		sessions: make(map[uuid.UUID]*session.Session),
		group:    group,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start opens the listen socket and begins accepting panels.
func (g *Gateway) Start() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if g.started {
		g.mu.Unlock()
		return ErrAlreadyStarted
	}
	g.started = true
	g.mu.Unlock()

	if g.listener == nil {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", g.cfg.ListenPort))
		if err != nil {
			return fmt.Errorf("gateway: listen: %w", err)
		}
		g.listener = l
	}

	g.log.Infof("listening on %s", g.listener.Addr())
	g.group.Go(g.acceptLoop)
	return nil
}

// Stop closes the listener and every session, then waits for the
// accept loop and session goroutines to drain.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.closed = true
	g.mu.Unlock()

	g.cancel()
	if g.listener != nil {
		_ = g.listener.Close()
	}

	g.sessionsMu.RLock()
	for _, s := range g.sessions {
		s.Shutdown()
	}
	g.sessionsMu.RUnlock()

	return g.group.Wait()
}

// Wait blocks until the gateway stops.
func (g *Gateway) Wait() error {
	return g.group.Wait()
}

// Addr returns the listen address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Send delivers an outbound command on the named session and blocks
// until its transaction completes.
func (g *Gateway) Send(ctx context.Context, id uuid.UUID, msg message.Message) (*session.Result, error) {
	g.sessionsMu.RLock()
	s, ok := g.sessions[id]
	g.sessionsMu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Send(ctx, msg)
}

// Sessions lists the IDs of the currently connected sessions.
func (g *Gateway) Sessions() []uuid.UUID {
	g.sessionsMu.RLock()
	defer g.sessionsMu.RUnlock()
	ids := make([]uuid.UUID, 0, len(g.sessions))
	for id := range g.sessions {
		ids = append(ids, id)
	}
	return ids
}

// acceptLoop accepts connections until shutdown, backing off on
// transient accept failures so a hot error does not spin the loop.
func (g *Gateway) acceptLoop() error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	for {
		conn, err := g.listener.Accept()
		if err != nil {
			select {
			case <-g.ctx.Done():
				return nil
			default:
			}

			wait := bo.NextBackOff()
			g.log.Warnf("accept: %v; retrying in %s", err, wait)
			select {
			case <-g.ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		g.group.Go(func() error {
			g.handleConn(conn)
			return nil
		})
	}
}

// handleConn runs one session for the lifetime of a connection.
func (g *Gateway) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr()

	cfg := g.cfg.sessionConfig()
	cfg.Client = transport.NewClient(transport.ClientConfig{
		Conn:          conn,
		LoggerFactory: g.cfg.LoggerFactory,
	})

	s, err := session.New(cfg)
	if err != nil {
		g.log.Errorf("session setup for %s: %v", remote, err)
		_ = conn.Close()
		return
	}

	g.sessionsMu.Lock()
	g.sessions[s.ID()] = s
	g.sessionsMu.Unlock()

	g.log.Infof("panel connected: %s as %s", remote, s.ID())
	if g.cfg.OnSessionStarted != nil {
		g.cfg.OnSessionStarted(s.ID(), remote)
	}

	if err := s.Run(g.ctx); err != nil {
		g.log.Warnf("session %s: %v", s.ID(), err)
	}

	g.sessionsMu.Lock()
	delete(g.sessions, s.ID())
	g.sessionsMu.Unlock()

	g.log.Infof("panel disconnected: %s", s.ID())
	if g.cfg.OnSessionClosed != nil {
		g.cfg.OnSessionClosed(s.ID())
	}
}
