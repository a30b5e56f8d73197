package session

import (
	"fmt"

	"github.com/bhumlicek/itv2/pkg/message"
)

// SimpleAckTransaction is the two-frame pattern: a data message
// answered by a bare ack.
//
// Inbound, it completes within begin: the ack goes out immediately.
// Outbound, it awaits the ack; a CommandError NACK also completes the
// transaction (the error is surfaced, never retried), and anything
// else aborts it while letting the frame re-enter the inbound path.
type SimpleAckTransaction struct {
	txn

	// Nack holds the panel's CommandError when the data message was
	// rejected. Completion with a NACK is not an error.
	Nack *message.CommandError
}

// beginInboundSimpleAck acknowledges the received data message and completes.
func beginInboundSimpleAck(s *Session, env *message.Envelope) (*SimpleAckTransaction, error) {
	t := &SimpleAckTransaction{}
	t.init(s, t, fmt.Sprintf("simpleack[in,%v]", env.Message.Command()), false, s.cfg.TransactionTimeout)
	t.remoteSeq = env.SenderSeq

	seq, err := s.sendLocked(&message.SimpleAck{})
	if err != nil {
		t.Abort(err)
		return t, err
	}
	t.localSeq = seq
	t.finish(nil)
	return t, nil
}

// beginOutboundSimpleAck sends the data message and awaits the panel's ack.
func beginOutboundSimpleAck(s *Session, msg message.Message) (*SimpleAckTransaction, error) {
	t := &SimpleAckTransaction{}
	t.init(s, t, fmt.Sprintf("simpleack[out,%v]", msg.Command()), true, s.cfg.TransactionTimeout)

	seq, err := s.sendLocked(msg)
	if err != nil {
		t.Abort(err)
		return t, err
	}
	t.localSeq = seq
	return t, nil
}

// TryContinue implements Transaction.
func (t *SimpleAckTransaction) TryContinue(env *message.Envelope) bool {
	if !t.active || !t.outbound || !t.correlates(env) {
		return false
	}

	switch m := env.Message.(type) {
	case *message.SimpleAck:
		t.finish(nil)
		return true
	case *message.CommandError:
		t.s.log.Warnf("%s: nacked with %v", t.name, m.Code)
		t.Nack = m
		t.finish(nil)
		return true
	default:
		// A correlated frame of the wrong type ends this transaction,
		// but the frame itself is not consumed: it falls through to
		// the new-inbound path.
		t.s.log.Warnf("%s: unexpected %v", t.name, env.Message.Command())
		t.Abort(ErrUnexpectedResponse)
		return false
	}
}
