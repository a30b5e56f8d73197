package message

import (
	"github.com/bhumlicek/itv2/pkg/codec"
)

// Message is a typed panel message. Implementations provide their own
// payload codec; there is no runtime field reflection.
type Message interface {
	// Command returns the wire command code, or CommandNone for the ack.
	Command() Command

	// MarshalPayload encodes the payload bytes after the command word
	// and optional app sequence.
	MarshalPayload() ([]byte, error)

	// UnmarshalPayload decodes the payload bytes.
	UnmarshalPayload(data []byte) error
}

// SimpleAck is the bare acknowledgement. It has no command word on the
// wire and is recognised by absence: a frame body holding only the two
// sequence bytes.
type SimpleAck struct{}

// Command implements Message.
func (*SimpleAck) Command() Command { return CommandNone }

// MarshalPayload implements Message.
func (*SimpleAck) MarshalPayload() ([]byte, error) { return nil, nil }

// UnmarshalPayload implements Message.
func (*SimpleAck) UnmarshalPayload([]byte) error { return nil }

// Default carries an unrecognised command and its raw payload. Receive
// is open-world: unknown codes decode, they are just opaque.
type Default struct {
	Cmd Command
	Raw []byte
}

// Command implements Message.
func (d *Default) Command() Command { return d.Cmd }

// MarshalPayload implements Message.
func (d *Default) MarshalPayload() ([]byte, error) {
	out := make([]byte, len(d.Raw))
	copy(out, d.Raw)
	return out, nil
}

// UnmarshalPayload implements Message.
func (d *Default) UnmarshalPayload(data []byte) error {
	d.Raw = make([]byte, len(data))
	copy(d.Raw, data)
	return nil
}

// Envelope is one decoded frame body: the transport sequences, the
// optional application sequence, and the typed message.
type Envelope struct {
	SenderSeq   uint8
	ReceiverSeq uint8

	// AppSeq is meaningful only when HasAppSeq is set; only commands
	// flagged in the registry carry it.
	HasAppSeq bool
	AppSeq    uint8

	Message Message
}

// IsAck reports whether the envelope is a bare acknowledgement.
func (e *Envelope) IsAck() bool {
	_, ok := e.Message.(*SimpleAck)
	return ok
}

// Encode produces the frame body: sender seq, receiver seq, and for
// everything but the ack the command word, optional app sequence and
// payload.
func (e *Envelope) Encode() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(e.SenderSeq)
	w.Uint8(e.ReceiverSeq)

	if e.IsAck() {
		return w.Bytes()
	}

	cmd := e.Message.Command()
	if cmd == CommandNone {
		return nil, ErrNoCommand
	}
	w.Uint16(uint16(cmd))
	if e.HasAppSeq {
		w.Uint8(e.AppSeq)
	}

	payload, err := e.Message.MarshalPayload()
	if err != nil {
		return nil, err
	}
	w.Raw(payload)
	return w.Bytes()
}

// DecodeEnvelope parses a frame body into an envelope. A body holding
// only the sequence bytes is the ack; otherwise the command word
// selects the payload codec through the registry, and commands flagged
// app-sequenced consume the sequence byte before the payload.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	r := codec.NewReader(body)

	sender, err := r.Uint8("sender_seq")
	if err != nil {
		return nil, ErrBodyTooShort
	}
	receiver, err := r.Uint8("receiver_seq")
	if err != nil {
		return nil, ErrBodyTooShort
	}

	env := &Envelope{SenderSeq: sender, ReceiverSeq: receiver}

	if r.Remaining() == 0 {
		env.Message = &SimpleAck{}
		return env, nil
	}

	rawCmd, err := r.Uint16("command")
	if err != nil {
		return nil, err
	}
	cmd := Command(rawCmd)

	if HasAppSequence(cmd) {
		appSeq, err := r.Uint8("app_seq")
		if err != nil {
			return nil, err
		}
		env.HasAppSeq = true
		env.AppSeq = appSeq
	}

	msg, err := Decode(cmd, r.Rest())
	if err != nil {
		return nil, err
	}
	env.Message = msg
	return env, nil
}
