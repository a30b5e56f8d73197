package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/bhumlicek/itv2/pkg/framing"
	"github.com/bhumlicek/itv2/pkg/message"
	"github.com/bhumlicek/itv2/pkg/seckey"
	"github.com/bhumlicek/itv2/pkg/transport"
)

// Result is what an outbound transaction produced for its initiator.
type Result struct {
	// Response is the panel's response code for command/response
	// traffic. HasResponse distinguishes Success from "no response
	// leg in this pattern".
	Response    message.ResponseCode
	HasResponse bool

	// Nack is set when the panel rejected a simple-ack message with a
	// CommandError. The transaction still completed; the rejection is
	// the caller's to interpret.
	Nack *message.CommandError
}

// Session owns one panel connection: sequence counters, encryption
// state, the active transaction list, the heartbeat, and shutdown.
//
// A single timed lock serialises every state mutation. Two logical
// entry points compete for it: the listen loop delivering decoded
// inbound frames, and Send initiating outbound transactions. The
// ciphers are written only from the listen loop (handshake steps run
// inside it), so the inbound decrypt reads inCipher without the lock;
// outCipher is only touched under it.
type Session struct {
	id     uuid.UUID
	cfg    Config
	client *transport.Client
	log    logging.LeveledLogger

	lock *timedLock

	localSeq  uint8
	remoteSeq uint8
	appSeq    uint8

	inCipher  *seckey.Cipher
	outCipher *seckey.Cipher

	transactions []Transaction
	handshaken   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	heartbeatStarted atomic.Bool

	abortCount atomic.Uint64
	dropCount  atomic.Uint64
}

// New creates a session over an established transport client.
func New(cfg Config) (*Session, error) {
	if cfg.Client == nil {
		return nil, errors.New("session: transport client is required")
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     uuid.New(),
		cfg:    cfg,
		client: cfg.Client,
		log:    cfg.LoggerFactory.NewLogger("session"),
		lock:   newTimedLock(),
		ctx:    ctx,
		cancel: cancel,
	}
	return s, nil
}

// ID returns the session identifier used on the notification surface.
func (s *Session) ID() uuid.UUID { return s.id }

// Handshaken reports whether the handshake has completed.
func (s *Session) Handshaken() bool { return s.handshaken.Load() }

// AbortCount returns how many transactions this session has aborted.
func (s *Session) AbortCount() uint64 { return s.abortCount.Load() }

// Run drives the listen loop until the connection drops, the context
// is cancelled, or a fatal protocol condition occurs. It owns cleanup:
// on return all transactions are aborted, crypto state is dropped and
// the transport is released.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()

	stop := context.AfterFunc(ctx, func() { s.terminate() })
	defer stop()

	for {
		packet, err := s.client.ReadPacket(s.ctx)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrCancelled):
				return nil
			case errors.Is(err, transport.ErrDisconnected):
				s.log.Infof("%s: peer disconnected", s.id)
				return nil
			default:
				return fmt.Errorf("session %s: %w", s.id, err)
			}
		}

		if err := s.handlePacket(packet); err != nil {
			if errors.Is(err, ErrDeadlock) {
				s.log.Errorf("%s: %v; terminating", s.id, err)
				return err
			}
			// Recoverable: drop the packet and keep listening.
			s.dropCount.Add(1)
			s.log.Warnf("%s: dropped packet: %v", s.id, err)
		}
	}
}

// handlePacket runs one inbound packet through unstuff, decrypt, frame
// parse, message decode and transaction dispatch.
func (s *Session) handlePacket(packet []byte) error {
	_, frame, err := framing.UnwrapPacket(packet)
	if err != nil {
		return err
	}

	if s.inCipher != nil {
		frame = s.inCipher.Decrypt(frame)
	}

	body, err := framing.ParseFrame(frame)
	if err != nil {
		return err
	}

	env, err := message.DecodeEnvelope(body)
	if err != nil {
		// The payload would not decode but the sequence bytes did:
		// abort whatever transaction was waiting on this frame.
		if len(body) >= 2 {
			s.abortCorrelated(body[0], body[1], err)
		}
		return err
	}

	if err := s.dispatch(env); err != nil {
		return err
	}

	if !env.IsAck() && s.cfg.OnNotification != nil {
		s.cfg.OnNotification(Notification{
			SessionID:  s.id,
			ReceivedAt: time.Now(),
			Message:    env.Message,
		})
	}
	return nil
}

// dispatch offers the envelope to the active transactions in insertion
// order and falls back to constructing a new inbound transaction.
func (s *Session) dispatch(env *message.Envelope) error {
	if err := s.lock.Acquire(s.ctx, s.cfg.LockTimeout); err != nil {
		return err
	}
	defer s.lock.Release()

	s.remoteSeq = env.SenderSeq
	if env.HasAppSeq {
		// Inbound app sequences track the panel's counter.
		s.appSeq = env.AppSeq
	}

	handled := false
	for _, t := range s.transactions {
		if t.TryContinue(env) {
			handled = true
			break
		}
	}

	if !handled {
		if env.IsAck() {
			s.log.Debugf("%s: stray ack for seq 0x%02X", s.id, env.ReceiverSeq)
		} else if err := s.beginInbound(env); err != nil {
			s.log.Warnf("%s: inbound %v: %v", s.id, env.Message.Command(), err)
		}
	}

	s.pruneLocked()
	return nil
}

// beginInbound constructs the transaction registered for the message's
// command. Called with the lock held.
func (s *Session) beginInbound(env *message.Envelope) error {
	var (
		t   Transaction
		err error
	)
	switch message.PatternFor(env.Message.Command()) {
	case message.PatternHandshake:
		t, err = beginInboundHandshake(s, env)
	case message.PatternCommandResponse:
		t, err = beginInboundCommandResponse(s, env)
	default:
		t, err = beginInboundSimpleAck(s, env)
	}
	if err != nil {
		return err
	}
	if t.CanContinue() {
		s.transactions = append(s.transactions, t)
	}
	return nil
}

// Send initiates an outbound transaction for msg and blocks until it
// completes, aborts, or ctx fires. The transaction pattern comes from
// the registry; handshakes are panel-initiated and cannot be sent.
func (s *Session) Send(ctx context.Context, msg message.Message) (*Result, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	pattern := message.PatternFor(msg.Command())
	if pattern == message.PatternHandshake {
		return nil, fmt.Errorf("%w: handshake is panel-initiated", ErrNotSupported)
	}

	if err := s.lock.Acquire(ctx, s.cfg.LockTimeout); err != nil {
		return nil, err
	}

	var (
		t   Transaction
		err error
	)
	switch pattern {
	case message.PatternCommandResponse:
		t, err = beginOutboundCommandResponse(s, msg)
	default:
		t, err = beginOutboundSimpleAck(s, msg)
	}
	if err == nil && t.CanContinue() {
		s.transactions = append(s.transactions, t)
	}
	s.lock.Release()
	if err != nil {
		return nil, err
	}

	select {
	case <-t.Done():
	case <-ctx.Done():
		s.abortAndRemove(t, ErrCancelled)
		return nil, ErrCancelled
	case <-s.ctx.Done():
		s.abortAndRemove(t, ErrCancelled)
		return nil, ErrCancelled
	}

	if terr := t.Err(); terr != nil {
		return nil, terr
	}
	return resultOf(t), nil
}

func resultOf(t Transaction) *Result {
	switch tt := t.(type) {
	case *CommandResponseTransaction:
		return &Result{Response: tt.Response, HasResponse: tt.HasResponse}
	case *SimpleAckTransaction:
		return &Result{Nack: tt.Nack}
	default:
		return &Result{}
	}
}

// sendLocked allocates the next local sequence (and app sequence when
// the command carries one), encodes, encrypts and writes one frame.
// Called with the lock held; allocation and write under the same hold
// keeps wire order equal to allocation order.
func (s *Session) sendLocked(msg message.Message) (uint8, error) {
	s.localSeq++
	env := &message.Envelope{
		SenderSeq:   s.localSeq,
		ReceiverSeq: s.remoteSeq,
		Message:     msg,
	}
	if cmd := msg.Command(); cmd != message.CommandNone && message.HasAppSequence(cmd) {
		s.appSeq++
		env.HasAppSeq = true
		env.AppSeq = s.appSeq
	}

	body, err := env.Encode()
	if err != nil {
		return 0, err
	}
	frame, err := framing.BuildFrame(body)
	if err != nil {
		return 0, err
	}
	if s.outCipher != nil {
		frame = s.outCipher.Encrypt(frame)
	}

	if err := s.client.WritePacket(s.ctx, framing.WrapPacket(nil, frame)); err != nil {
		return 0, err
	}
	s.log.Debugf("%s: sent %v seq=0x%02X", s.id, msg.Command(), s.localSeq)
	return s.localSeq, nil
}

// abortCorrelated aborts transactions waiting on a frame whose payload
// failed to decode. Only the raw sequence bytes are available.
func (s *Session) abortCorrelated(sender, receiver uint8, cause error) {
	if err := s.lock.Acquire(s.ctx, s.cfg.LockTimeout); err != nil {
		return
	}
	defer s.lock.Release()

	for _, t := range s.transactions {
		if t.correlatesRaw(sender, receiver) {
			t.Abort(fmt.Errorf("undecodable frame: %w", cause))
			break
		}
	}
	s.pruneLocked()
}

// abortAndRemove aborts one transaction from outside the listen loop.
func (s *Session) abortAndRemove(t Transaction, cause error) {
	if err := s.lock.Acquire(context.Background(), s.cfg.LockTimeout); err != nil {
		return
	}
	defer s.lock.Release()
	t.Abort(cause)
	s.pruneLocked()
}

// timeoutTransaction fires from a transaction's timer.
func (s *Session) timeoutTransaction(t Transaction) {
	if err := s.lock.Acquire(s.ctx, s.cfg.LockTimeout); err != nil {
		if !errors.Is(err, ErrCancelled) {
			s.log.Errorf("%s: %v during timeout handling; terminating", s.id, err)
			s.terminate()
		}
		return
	}
	defer s.lock.Release()

	if t.CanContinue() {
		t.Abort(ErrTimeout)
		s.pruneLocked()
	}
}

// pruneLocked drops transactions that can no longer continue.
func (s *Session) pruneLocked() {
	kept := s.transactions[:0]
	for _, t := range s.transactions {
		if t.CanContinue() {
			kept = append(kept, t)
		}
	}
	s.transactions = kept
}

// noteAbort is called by every transaction abort; the counter keeps
// silent failures impossible.
func (s *Session) noteAbort(name string, err error) {
	s.abortCount.Add(1)
	s.log.Warnf("%s: %s aborted: %v", s.id, name, err)
}

// handshakeComplete flips the session into its steady state and starts
// the heartbeat. Called with the lock held, so side effects that need
// the lock run elsewhere.
func (s *Session) handshakeComplete() {
	s.handshaken.Store(true)
	s.log.Infof("%s: handshake complete, both directions encrypted", s.id)

	if s.cfg.OnHandshake != nil {
		go s.cfg.OnHandshake(s.id)
	}
	if s.heartbeatStarted.CompareAndSwap(false, true) {
		go s.heartbeatLoop()
	}
}

// handshakeFailed disposes crypto and terminates. Called with the lock
// held.
func (s *Session) handshakeFailed() {
	s.inCipher = nil
	s.outCipher = nil
	s.log.Errorf("%s: handshake failed, tearing down", s.id)
	s.terminate()
}

// heartbeatLoop probes the panel's software version once the dust
// settles, then polls until shutdown. Heartbeats are ordinary
// transactions: sequenced, encrypted, and subject to timeouts.
func (s *Session) heartbeatLoop() {
	initial := time.NewTimer(s.cfg.HeartbeatInitialDelay)
	defer initial.Stop()

	select {
	case <-s.ctx.Done():
		return
	case <-initial.C:
	}
	if _, err := s.Send(s.ctx, &message.SoftwareVersionRequest{}); err != nil && !errors.Is(err, ErrCancelled) && !errors.Is(err, ErrClosed) {
		s.log.Warnf("%s: version probe: %v", s.id, err)
	}

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Send(s.ctx, &message.ConnectionPoll{}); err != nil && !errors.Is(err, ErrCancelled) && !errors.Is(err, ErrClosed) {
				s.log.Warnf("%s: poll: %v", s.id, err)
			}
		}
	}
}

// terminate requests shutdown without blocking: the listen loop and
// any waiters unwind through the cancelled context and closed pipe.
func (s *Session) terminate() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
		_ = s.client.Close()
	}
}

// Shutdown stops the session. Safe to call from any goroutine and
// more than once.
func (s *Session) Shutdown() {
	s.terminate()
}

// teardown aborts whatever is still in flight and drops key material.
func (s *Session) teardown() {
	s.terminate()

	if s.lock.TryAcquire() {
		for _, t := range s.transactions {
			t.Abort(ErrCancelled)
		}
		s.transactions = nil
		s.inCipher = nil
		s.outCipher = nil
		s.lock.Release()
	}
}
