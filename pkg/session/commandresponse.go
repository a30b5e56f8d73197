package session

import (
	"fmt"

	"github.com/bhumlicek/itv2/pkg/message"
)

type crState uint8

const (
	crAwaitFinalAck crState = iota // inbound: response sent, awaiting ack
	crAwaitResponse                // outbound: command sent, awaiting response
	crTerminal
)

// CommandResponseTransaction is the three-frame pattern: command,
// command response, final ack.
//
// Inbound: the panel's command is answered with a Success response and
// the transaction waits for the panel's ack. Outbound: the gateway's
// command awaits the panel's response, acks it, and preserves the
// response code for the initiator; a non-Success code is informational
// and still acked.
type CommandResponseTransaction struct {
	txn
	state crState

	// Response holds the panel's response code once received.
	Response    message.ResponseCode
	HasResponse bool
}

func beginInboundCommandResponse(s *Session, env *message.Envelope) (*CommandResponseTransaction, error) {
	t := &CommandResponseTransaction{state: crAwaitFinalAck}
	t.init(s, t, fmt.Sprintf("cmdresp[in,%v]", env.Message.Command()), false, s.cfg.TransactionTimeout)
	t.remoteSeq = env.SenderSeq

	seq, err := s.sendLocked(&message.CommandResponse{Code: message.ResponseSuccess})
	if err != nil {
		t.Abort(err)
		return t, err
	}
	t.localSeq = seq
	return t, nil
}

func beginOutboundCommandResponse(s *Session, msg message.Message) (*CommandResponseTransaction, error) {
	t := &CommandResponseTransaction{state: crAwaitResponse}
	t.init(s, t, fmt.Sprintf("cmdresp[out,%v]", msg.Command()), true, s.cfg.TransactionTimeout)

	seq, err := s.sendLocked(msg)
	if err != nil {
		t.Abort(err)
		return t, err
	}
	t.localSeq = seq
	return t, nil
}

// TryContinue implements Transaction.
func (t *CommandResponseTransaction) TryContinue(env *message.Envelope) bool {
	if !t.active || !t.correlates(env) {
		return false
	}

	switch t.state {
	case crAwaitFinalAck:
		t.checkReceiverSeq(env)
		if !env.IsAck() {
			t.s.log.Warnf("%s: expected ack, got %v", t.name, env.Message.Command())
			t.Abort(ErrUnexpectedResponse)
			return false
		}
		t.state = crTerminal
		t.finish(nil)
		return true

	case crAwaitResponse:
		resp, ok := env.Message.(*message.CommandResponse)
		if !ok {
			t.s.log.Warnf("%s: expected response, got %v", t.name, env.Message.Command())
			t.Abort(ErrUnexpectedResponse)
			return false
		}
		t.Response = resp.Code
		t.HasResponse = true
		if resp.Code != message.ResponseSuccess {
			t.s.log.Infof("%s: panel answered %v", t.name, resp.Code)
		}

		// The protocol requires the final ack regardless of the code.
		seq, err := t.s.sendLocked(&message.SimpleAck{})
		if err != nil {
			t.Abort(err)
			return true
		}
		t.localSeq = seq
		t.state = crTerminal
		t.finish(nil)
		return true
	}
	return false
}
