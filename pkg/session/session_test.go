package session

import (
	"context"
	"testing"
	"time"

	"github.com/pion/transport/v3/dpipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhumlicek/itv2/pkg/framing"
	"github.com/bhumlicek/itv2/pkg/message"
	"github.com/bhumlicek/itv2/pkg/seckey"
	"github.com/bhumlicek/itv2/pkg/transport"
)

// panelConn drives the panel side of a session by hand: explicit
// sequence numbers, optional ciphers, one frame per call.
type panelConn struct {
	t      *testing.T
	client *transport.Client
	seq    uint8
	appSeq uint8
	enc    *seckey.Cipher // panel to gateway
	dec    *seckey.Cipher // gateway to panel
}

func (p *panelConn) send(msg message.Message, receiver uint8) {
	p.t.Helper()
	p.seq++
	env := &message.Envelope{SenderSeq: p.seq, ReceiverSeq: receiver, Message: msg}
	if cmd := msg.Command(); cmd != message.CommandNone && message.HasAppSequence(cmd) {
		p.appSeq++
		env.HasAppSeq = true
		env.AppSeq = p.appSeq
	}
	body, err := env.Encode()
	require.NoError(p.t, err)
	frame, err := framing.BuildFrame(body)
	require.NoError(p.t, err)
	if p.enc != nil {
		frame = p.enc.Encrypt(frame)
	}
	require.NoError(p.t, p.client.WritePacket(context.Background(), framing.WrapPacket(nil, frame)))
}

// sendAck replies with a bare ack reusing the panel's current sender
// sequence, matching the correlation window of the open transaction.
func (p *panelConn) sendAck(receiver uint8) {
	p.t.Helper()
	env := &message.Envelope{SenderSeq: p.seq, ReceiverSeq: receiver, Message: &message.SimpleAck{}}
	body, err := env.Encode()
	require.NoError(p.t, err)
	frame, err := framing.BuildFrame(body)
	require.NoError(p.t, err)
	if p.enc != nil {
		frame = p.enc.Encrypt(frame)
	}
	require.NoError(p.t, p.client.WritePacket(context.Background(), framing.WrapPacket(nil, frame)))
}

func (p *panelConn) recv() *message.Envelope {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	packet, err := p.client.ReadPacket(ctx)
	require.NoError(p.t, err)
	_, frame, err := framing.UnwrapPacket(packet)
	require.NoError(p.t, err)
	if p.dec != nil {
		frame = p.dec.Decrypt(frame)
	}
	body, err := framing.ParseFrame(frame)
	require.NoError(p.t, err)
	env, err := message.DecodeEnvelope(body)
	require.NoError(p.t, err)
	return env
}

type testRig struct {
	s      *Session
	panel  *panelConn
	notes  chan Notification
	runErr chan error
}

func newTestRig(t *testing.T, mutate func(*Config)) *testRig {
	t.Helper()
	ca, cb := dpipe.Pipe()

	notes := make(chan Notification, 32)
	cfg := Config{
		Client: transport.NewClient(transport.ClientConfig{Conn: ca}),
		Secrets: seckey.Secrets{
			AccessCodeType1:      "12345678",
			IdentificationNumber: "87654321",
			AccessCodeType2:      "000102030405060708090a0b0c0d0e0f",
		},
		OnNotification: func(n Notification) { notes <- n },
		// Heartbeats stay out of the way unless a test opts in.
		HeartbeatInitialDelay: time.Hour,
		HeartbeatInterval:     time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)

	rig := &testRig{
		s:      s,
		panel:  &panelConn{t: t, client: transport.NewClient(transport.ClientConfig{Conn: cb})},
		notes:  notes,
		runErr: make(chan error, 1),
	}
	go func() { rig.runErr <- s.Run(context.Background()) }()

	t.Cleanup(func() {
		s.Shutdown()
		rig.panel.client.Close()
		select {
		case <-rig.runErr:
		case <-time.After(5 * time.Second):
			t.Error("session did not stop")
		}
	})
	return rig
}

func (r *testRig) waitNote(t *testing.T) Notification {
	t.Helper()
	select {
	case n := <-r.notes:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
		return Notification{}
	}
}

func TestInboundSimpleAckPattern(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.panel.send(&message.ZoneStatusNotification{Zone: 5, Status: message.ZoneOpen}, 0x00)

	// The gateway acks immediately.
	env := rig.panel.recv()
	assert.True(t, env.IsAck())
	assert.Equal(t, uint8(0x01), env.SenderSeq)
	assert.Equal(t, rig.panel.seq, env.ReceiverSeq)

	n := rig.waitNote(t)
	zone, ok := n.Message.(*message.ZoneStatusNotification)
	require.True(t, ok)
	assert.Equal(t, uint8(5), zone.Zone)
	assert.Equal(t, rig.s.ID(), n.SessionID)
	assert.WithinDuration(t, time.Now(), n.ReceivedAt, time.Minute)
}

func TestInboundAppSequenceTracksPanel(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.panel.appSeq = 0x41 // next send uses 0x42

	rig.panel.send(&message.PartitionStatusNotification{Partition: 1, Status: message.PartitionReady}, 0x00)
	rig.panel.recv() // ack
	rig.waitNote(t)

	require.True(t, rig.s.lock.TryAcquire())
	defer rig.s.lock.Release()
	assert.Equal(t, uint8(0x42), rig.s.appSeq)
}

func TestInboundCommandResponsePattern(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.panel.send(&message.SoftwareVersionRequest{}, 0x00)

	resp := rig.panel.recv()
	cr, ok := resp.Message.(*message.CommandResponse)
	require.True(t, ok)
	assert.Equal(t, message.ResponseSuccess, cr.Code)

	rig.panel.sendAck(resp.SenderSeq)
	rig.waitNote(t)

	// The transaction drains from the active list.
	require.Eventually(t, func() bool {
		if !rig.s.lock.TryAcquire() {
			return false
		}
		defer rig.s.lock.Release()
		return len(rig.s.transactions) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestOutboundSimpleAckCompletes(t *testing.T) {
	rig := newTestRig(t, nil)

	type sendResult struct {
		res *Result
		err error
	}
	resCh := make(chan sendResult, 1)
	go func() {
		res, err := rig.s.Send(context.Background(), &message.ConnectionPoll{})
		resCh <- sendResult{res, err}
	}()

	env := rig.panel.recv()
	assert.IsType(t, &message.ConnectionPoll{}, env.Message)
	rig.panel.sendAck(env.SenderSeq)

	r := <-resCh
	require.NoError(t, r.err)
	assert.Nil(t, r.res.Nack)
}

func TestOutboundSimpleAckNackSurfaced(t *testing.T) {
	rig := newTestRig(t, nil)

	resCh := make(chan *Result, 1)
	go func() {
		res, err := rig.s.Send(context.Background(), &message.ConnectionPoll{})
		require.NoError(t, err)
		resCh <- res
	}()

	env := rig.panel.recv()
	rig.panel.send(&message.CommandError{Code: message.ErrorNotPermitted}, env.SenderSeq)

	res := <-resCh
	require.NotNil(t, res.Nack)
	assert.Equal(t, message.ErrorNotPermitted, res.Nack.Code)
}

func TestOutboundCommandResponseSurfacesCode(t *testing.T) {
	rig := newTestRig(t, nil)

	resCh := make(chan *Result, 1)
	go func() {
		res, err := rig.s.Send(context.Background(), &message.SoftwareVersionRequest{})
		require.NoError(t, err)
		resCh <- res
	}()

	env := rig.panel.recv()
	assert.IsType(t, &message.SoftwareVersionRequest{}, env.Message)
	assert.True(t, env.HasAppSeq)

	// A non-success response is informational; the gateway still acks.
	rig.panel.send(&message.CommandResponse{Code: message.ResponseNotAuthorized}, env.SenderSeq)

	ack := rig.panel.recv()
	assert.True(t, ack.IsAck())

	res := <-resCh
	assert.True(t, res.HasResponse)
	assert.Equal(t, message.ResponseNotAuthorized, res.Response)
}

func TestPollAnsweredByCommandReentersInboundPath(t *testing.T) {
	rig := newTestRig(t, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := rig.s.Send(context.Background(), &message.ConnectionPoll{})
		errCh <- err
	}()

	env := rig.panel.recv()
	require.IsType(t, &message.ConnectionPoll{}, env.Message)

	// The panel answers with a notification instead of an ack: the
	// poll aborts, but the notification is processed normally.
	rig.panel.send(&message.TroubleStatusNotification{Device: 1, Trouble: 2, Active: true}, env.SenderSeq)

	ack := rig.panel.recv()
	assert.True(t, ack.IsAck())

	assert.ErrorIs(t, <-errCh, ErrUnexpectedResponse)

	n := rig.waitNote(t)
	assert.IsType(t, &message.TroubleStatusNotification{}, n.Message)
	assert.GreaterOrEqual(t, rig.s.AbortCount(), uint64(1))
}

func TestSequenceMonotonicity(t *testing.T) {
	rig := newTestRig(t, nil)

	// Drain everything the gateway emits.
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_, err := rig.panel.client.ReadPacket(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	const n = 258
	require.True(t, rig.s.lock.TryAcquire())
	for i := 0; i < n; i++ {
		_, err := rig.s.sendLocked(&message.SimpleAck{})
		require.NoError(t, err)
	}
	seq := rig.s.localSeq
	rig.s.lock.Release()

	assert.Equal(t, uint8(n%256), seq)
}

func TestAtMostOneCorrelation(t *testing.T) {
	rig := newTestRig(t, nil)

	// Two inbound transactions anchored on the same remote sequence:
	// the first added consumes the frame, the second never sees it.
	go func() {
		// Absorb the two command responses.
		p1, e1 := rig.panel.client.ReadPacket(context.Background())
		t.Logf("DEBUG recv1: %v %v", p1, e1)
		p2, e2 := rig.panel.client.ReadPacket(context.Background())
		t.Logf("DEBUG recv2: %v %v", p2, e2)
	}()

	require.True(t, rig.s.lock.TryAcquire())
	env := &message.Envelope{SenderSeq: 0x09, ReceiverSeq: 0x00, Message: &message.SoftwareVersionRequest{}}
	first, err := beginInboundCommandResponse(rig.s, env)
	t.Logf("DEBUG first err: %v", err)
	require.NoError(t, err)
	second, err := beginInboundCommandResponse(rig.s, env)
	require.NoError(t, err)
	rig.s.transactions = append(rig.s.transactions, first, second)

	ack := &message.Envelope{SenderSeq: 0x09, ReceiverSeq: first.localSeq, Message: &message.SimpleAck{}}
	for _, tr := range rig.s.transactions {
		if tr.TryContinue(ack) {
			break
		}
	}
	rig.s.lock.Release()

	assert.False(t, first.CanContinue())
	assert.True(t, second.CanContinue())
}

func TestIdempotentAbort(t *testing.T) {
	rig := newTestRig(t, nil)

	go rig.panel.recv()

	require.True(t, rig.s.lock.TryAcquire())
	tx, err := beginOutboundSimpleAck(rig.s, &message.ConnectionPoll{})
	require.NoError(t, err)

	tx.Abort(ErrTimeout)
	tx.Abort(ErrUnexpectedResponse) // no-op
	rig.s.lock.Release()

	assert.ErrorIs(t, tx.Err(), ErrTimeout)
	assert.Equal(t, uint64(1), rig.s.AbortCount())
}

func TestTransactionTimeout(t *testing.T) {
	rig := newTestRig(t, func(c *Config) {
		c.TransactionTimeout = 50 * time.Millisecond
	})

	go rig.panel.recv()

	_, err := rig.s.Send(context.Background(), &message.ConnectionPoll{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestShutdownCancelsPendingSend(t *testing.T) {
	rig := newTestRig(t, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := rig.s.Send(context.Background(), &message.ConnectionPoll{})
		errCh <- err
	}()

	rig.panel.recv() // poll is out, no reply
	rig.s.Shutdown()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not unblock")
	}
}

func TestSendAfterShutdown(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.s.Shutdown()
	<-rig.runErr
	rig.runErr <- nil

	_, err := rig.s.Send(context.Background(), &message.ConnectionPoll{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDeadlockTerminatesSession(t *testing.T) {
	rig := newTestRig(t, func(c *Config) {
		c.LockTimeout = 50 * time.Millisecond
	})

	// Wedge the session lock, then deliver a frame.
	require.True(t, rig.s.lock.TryAcquire())
	defer rig.s.lock.Release()

	rig.panel.send(&message.ConnectionPoll{}, 0x00)

	select {
	case err := <-rig.runErr:
		assert.ErrorIs(t, err, ErrDeadlock)
		rig.runErr <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
	}
}

func TestCorruptPacketDropped(t *testing.T) {
	rig := newTestRig(t, nil)

	// CRC damage: drop, log, keep the session alive.
	body := []byte{0x01, 0x00, 0x05, 0x70}
	frame, err := framing.BuildFrame(body)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF
	require.NoError(t, rig.panel.client.WritePacket(context.Background(), framing.WrapPacket(nil, frame)))
	rig.panel.seq = 1

	// The session still handles a healthy frame afterwards.
	rig.panel.send(&message.ConnectionPoll{}, 0x00)
	ack := rig.panel.recv()
	assert.True(t, ack.IsAck())
	assert.Equal(t, uint64(1), rig.s.dropCount.Load())
}
