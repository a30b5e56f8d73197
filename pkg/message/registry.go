package message

import "fmt"

// Pattern names the transaction shape that governs a message type.
type Pattern uint8

const (
	// PatternSimpleAck: a data message answered by a bare ack.
	PatternSimpleAck Pattern = iota

	// PatternCommandResponse: command, command response, final ack.
	PatternCommandResponse

	// PatternHandshake: the compound session-open sequence.
	PatternHandshake
)

// String implements fmt.Stringer.
func (p Pattern) String() string {
	switch p {
	case PatternSimpleAck:
		return "SimpleAck"
	case PatternCommandResponse:
		return "CommandResponse"
	case PatternHandshake:
		return "Handshake"
	default:
		return fmt.Sprintf("Pattern(%d)", uint8(p))
	}
}

// Registration binds a command code to its concrete type, transaction
// pattern, and app-sequence participation.
type Registration struct {
	Command     Command
	New         func() Message
	Pattern     Pattern
	AppSequence bool
}

// The registry is populated by init and read-only afterwards, so
// lookups need no lock.
var registry = map[Command]Registration{}

// register adds a message type. Two types claiming the same command
// code is a programming error and fatal at process start.
func register(reg Registration) {
	if _, dup := registry[reg.Command]; dup {
		panic(fmt.Errorf("%w: %v", ErrDuplicateCommand, reg.Command))
	}
	registry[reg.Command] = reg
}

// Lookup returns the registration for a command code.
func Lookup(cmd Command) (Registration, bool) {
	reg, ok := registry[cmd]
	return reg, ok
}

// HasAppSequence reports whether frames carrying cmd include the
// application sequence byte after the command word. Unknown commands
// do not.
func HasAppSequence(cmd Command) bool {
	reg, ok := registry[cmd]
	return ok && reg.AppSequence
}

// PatternFor returns the transaction pattern registered for cmd.
// Unknown commands fall back to the simple-ack pattern so that
// unrecognised inbound traffic is still acknowledged.
func PatternFor(cmd Command) Pattern {
	if reg, ok := registry[cmd]; ok {
		return reg.Pattern
	}
	return PatternSimpleAck
}

// Decode constructs the typed message for cmd from its payload bytes.
// Unknown commands decode into Default and never fail.
func Decode(cmd Command, payload []byte) (Message, error) {
	reg, ok := registry[cmd]
	if !ok {
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return &Default{Cmd: cmd, Raw: raw}, nil
	}
	msg := reg.New()
	if err := msg.UnmarshalPayload(payload); err != nil {
		return nil, fmt.Errorf("decoding %v: %w", cmd, err)
	}
	return msg, nil
}
