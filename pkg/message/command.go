package message

import "fmt"

// Command identifies a message type on the wire. Commands are 16-bit
// big-endian. An ack frame carries no command word at all; CommandNone
// stands in for it internally and never appears on the wire.
type Command uint16

// Known command codes.
const (
	CommandNone Command = 0xFFFF

	CommandCommandResponse        Command = 0x0002
	CommandSoftwareVersionRequest Command = 0x0205
	CommandSoftwareVersionReply   Command = 0x0206
	CommandCommandError           Command = 0x0501
	CommandConnectionPoll         Command = 0x0570
	CommandOpenSession            Command = 0x060E
	CommandRequestAccess          Command = 0x0660
	CommandPartitionStatus        Command = 0x0811
	CommandTroubleStatus          Command = 0x0821
	CommandSystemTest             Command = 0x0831
	CommandZoneStatus             Command = 0x0841
	CommandEventReport            Command = 0x0851
	CommandTimeDateBroadcast      Command = 0x0861
)

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c {
	case CommandNone:
		return "SimpleAck"
	case CommandCommandResponse:
		return "CommandResponse"
	case CommandSoftwareVersionRequest:
		return "SoftwareVersionRequest"
	case CommandSoftwareVersionReply:
		return "SoftwareVersionReply"
	case CommandCommandError:
		return "CommandError"
	case CommandConnectionPoll:
		return "ConnectionPoll"
	case CommandOpenSession:
		return "OpenSession"
	case CommandRequestAccess:
		return "RequestAccess"
	case CommandPartitionStatus:
		return "PartitionStatus"
	case CommandTroubleStatus:
		return "TroubleStatus"
	case CommandSystemTest:
		return "SystemTest"
	case CommandZoneStatus:
		return "ZoneStatus"
	case CommandEventReport:
		return "EventReport"
	case CommandTimeDateBroadcast:
		return "TimeDateBroadcast"
	default:
		return fmt.Sprintf("Command(0x%04X)", uint16(c))
	}
}
