package session

import (
	"time"

	"github.com/bhumlicek/itv2/pkg/message"
)

// Transaction is a short-lived state machine owning a temporarily
// exclusive correlation window. All methods except Done and Err are
// called with the session lock held.
type Transaction interface {
	// TryContinue offers an inbound envelope. It returns true when the
	// envelope correlated and was consumed; false hands the envelope
	// to the next transaction or the new-inbound path.
	TryContinue(env *message.Envelope) bool

	// CanContinue reports whether the transaction still accepts input.
	// False removes it from the session's active list.
	CanContinue() bool

	// Abort cancels the timeout and discards the transaction.
	// Idempotent.
	Abort(err error)

	// Done is closed when the transaction completes or aborts.
	Done() <-chan struct{}

	// Err returns the abort reason, or nil after clean completion.
	Err() error

	// correlatesRaw applies the correlation predicate to bare sequence
	// bytes, for frames whose payload failed to decode.
	correlatesRaw(sender, receiver uint8) bool
}

// txn carries the state common to every pattern.
type txn struct {
	s    *Session
	name string

	// localSeq is the most recent local sequence sent inside this
	// transaction; remoteSeq is the sender sequence captured at begin.
	localSeq  uint8
	remoteSeq uint8
	outbound  bool

	active bool
	err    error
	done   chan struct{}
	timer  *time.Timer
}

// init arms the transaction. self is the embedding concrete type, so
// the timeout path aborts it rather than the embedded base.
func (t *txn) init(s *Session, self Transaction, name string, outbound bool, timeout time.Duration) {
	t.s = s
	t.name = name
	t.outbound = outbound
	t.active = true
	t.done = make(chan struct{})
	t.timer = time.AfterFunc(timeout, func() {
		s.timeoutTransaction(self)
	})
}

func (t *txn) CanContinue() bool { return t.active }
func (t *txn) Done() <-chan struct{} { return t.done }
func (t *txn) Err() error { return t.err }

// correlates applies the per-direction predicate: an outbound
// transaction owns frames addressed to its last sent sequence, an
// inbound one owns frames from the sender sequence captured at begin.
func (t *txn) correlates(env *message.Envelope) bool {
	return t.correlatesRaw(env.SenderSeq, env.ReceiverSeq)
}

func (t *txn) correlatesRaw(sender, receiver uint8) bool {
	if !t.active {
		return false
	}
	if t.outbound {
		return receiver == t.localSeq
	}
	return sender == t.remoteSeq
}

// checkReceiverSeq logs the lenient sequence invariant: inbound frames
// should acknowledge the sequence last sent in this transaction, but
// panels drift and the violation is not fatal.
func (t *txn) checkReceiverSeq(env *message.Envelope) {
	if env.ReceiverSeq != t.localSeq {
		t.s.log.Warnf("%s: frame acknowledges seq 0x%02X, expected 0x%02X",
			t.name, env.ReceiverSeq, t.localSeq)
	}
}

// finish transitions to a terminal state. Idempotent.
func (t *txn) finish(err error) {
	if !t.active {
		return
	}
	t.active = false
	t.err = err
	t.timer.Stop()
	close(t.done)
}

// Abort implements Transaction.
func (t *txn) Abort(err error) {
	if !t.active {
		return
	}
	t.s.noteAbort(t.name, err)
	t.finish(err)
}
