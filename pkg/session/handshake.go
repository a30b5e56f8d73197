package session

import (
	"fmt"

	"github.com/bhumlicek/itv2/pkg/message"
	"github.com/bhumlicek/itv2/pkg/seckey"
)

type hsState uint8

const (
	hsAwaitAckA hsState = iota // mirrored response sent, awaiting panel ack
	hsAwaitRespB               // gateway OpenSession sent, awaiting response
	hsAwaitAccessC             // awaiting panel's RequestAccess
	hsAwaitAckC                // access response sent, awaiting panel ack
	hsAwaitRespD               // gateway RequestAccess sent, awaiting response
	hsTerminal
)

// HandshakeTransaction is the compound session-open sequence. It runs
// four command/response steps in series:
//
//	A (in):  the panel's OpenSession selects the encryption scheme.
//	B (out): the gateway mirrors its capabilities back.
//	C (in):  the panel's RequestAccess keys the outbound direction.
//	D (out): the gateway's RequestAccess keys the inbound direction.
//
// The inbound cipher activates before the initializer leaves the
// gateway, the outbound cipher the moment the panel's initializer is
// accepted; once D completes, traffic is encrypted both ways and the
// session starts its heartbeat.
type HandshakeTransaction struct {
	txn
	state      hsState
	negotiator seckey.Negotiator
	scheme     seckey.Scheme
}

// beginInboundHandshake handles the panel's OpenSession.
func beginInboundHandshake(s *Session, env *message.Envelope) (*HandshakeTransaction, error) {
	open, ok := env.Message.(*message.OpenSession)
	if !ok {
		return nil, fmt.Errorf("%w: handshake pattern on %v", ErrNotSupported, env.Message.Command())
	}

	t := &HandshakeTransaction{state: hsAwaitAckA, scheme: seckey.Scheme(open.EncryptionType)}
	t.init(s, t, "handshake", false, s.cfg.HandshakeTimeout)
	t.remoteSeq = env.SenderSeq

	neg, err := seckey.NewNegotiator(t.scheme, s.cfg.Secrets)
	if err != nil {
		s.log.Errorf("handshake: %v", err)
		t.Abort(fmt.Errorf("%w: %v", ErrNotSupported, err))
		return t, err
	}
	t.negotiator = neg

	// Phase A reply: accept the panel's session open.
	seq, err := s.sendLocked(&message.CommandResponse{Code: message.ResponseSuccess})
	if err != nil {
		t.Abort(err)
		return t, err
	}
	t.localSeq = seq
	return t, nil
}

// TryContinue implements Transaction.
func (t *HandshakeTransaction) TryContinue(env *message.Envelope) bool {
	if !t.active {
		return false
	}

	switch t.state {
	case hsAwaitAckA:
		if !t.correlates(env) {
			return false
		}
		t.checkReceiverSeq(env)
		if !env.IsAck() {
			return t.fail(env)
		}
		// Phase B: mirror capabilities back.
		mirror := &message.OpenSession{
			DeviceType:      t.s.cfg.DeviceType,
			DeviceID:        t.s.cfg.DeviceID,
			FirmwareVersion: t.s.cfg.SoftwareVersion,
			ProtocolVersion: 0x0200,
			TxBufferSize:    512,
			RxBufferSize:    512,
			EncryptionType:  uint8(t.scheme),
		}
		seq, err := t.s.sendLocked(mirror)
		if err != nil {
			t.Abort(err)
			return true
		}
		t.localSeq = seq
		t.outbound = true
		t.state = hsAwaitRespB
		return true

	case hsAwaitRespB:
		if !t.correlates(env) {
			return false
		}
		if _, ok := env.Message.(*message.CommandResponse); !ok {
			return t.fail(env)
		}
		seq, err := t.s.sendLocked(&message.SimpleAck{})
		if err != nil {
			t.Abort(err)
			return true
		}
		t.localSeq = seq
		t.outbound = false
		t.state = hsAwaitAccessC
		return true

	case hsAwaitAccessC:
		// Phase C opens with a fresh command from the panel; the
		// correlation window re-anchors on its sender sequence.
		access, ok := env.Message.(*message.RequestAccess)
		if !ok {
			return false
		}
		t.remoteSeq = env.SenderSeq

		outKey, err := t.negotiator.RemoteInitializer(access.Initializer)
		if err != nil {
			t.s.log.Errorf("handshake: panel initializer rejected: %v", err)
			t.Abort(err)
			return true
		}
		cipher, err := seckey.NewCipher(outKey)
		if err != nil {
			t.Abort(err)
			return true
		}
		// Outbound encryption starts immediately: the acceptance
		// below is the first encrypted frame.
		t.s.outCipher = cipher

		seq, err := t.s.sendLocked(&message.CommandResponse{Code: message.ResponseSuccess})
		if err != nil {
			t.Abort(err)
			return true
		}
		t.localSeq = seq
		t.state = hsAwaitAckC
		return true

	case hsAwaitAckC:
		if !t.correlates(env) {
			return false
		}
		t.checkReceiverSeq(env)
		if !env.IsAck() {
			return t.fail(env)
		}
		// Phase D: key the inbound direction. The cipher activates
		// before the initializer is on the wire so the panel's reply
		// already decrypts.
		init, inKey, err := t.negotiator.LocalInitializer()
		if err != nil {
			t.Abort(err)
			return true
		}
		cipher, err := seckey.NewCipher(inKey)
		if err != nil {
			t.Abort(err)
			return true
		}
		t.s.inCipher = cipher

		seq, err := t.s.sendLocked(&message.RequestAccess{Initializer: init})
		if err != nil {
			t.Abort(err)
			return true
		}
		t.localSeq = seq
		t.outbound = true
		t.state = hsAwaitRespD
		return true

	case hsAwaitRespD:
		if !t.correlates(env) {
			return false
		}
		if _, ok := env.Message.(*message.CommandResponse); !ok {
			return t.fail(env)
		}
		if _, err := t.s.sendLocked(&message.SimpleAck{}); err != nil {
			t.Abort(err)
			return true
		}
		t.state = hsTerminal
		t.finish(nil)
		t.s.handshakeComplete()
		return true
	}
	return false
}

// fail aborts on a correlated frame of the wrong type. The handshake
// owns the connection at this point, so the frame is consumed.
func (t *HandshakeTransaction) fail(env *message.Envelope) bool {
	t.s.log.Errorf("handshake: unexpected %v in state %d", env.Message.Command(), t.state)
	t.Abort(ErrUnexpectedResponse)
	return true
}

// Abort implements Transaction; a failed handshake also disposes the
// partially keyed crypto state and tears the session down.
func (t *HandshakeTransaction) Abort(err error) {
	if !t.active {
		return
	}
	t.txn.Abort(err)
	t.s.handshakeFailed()
}
