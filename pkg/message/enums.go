package message

import "fmt"

// ResponseCode is carried by CommandResponse. Non-success codes are
// informational at the transport layer; the transaction still runs to
// completion and the code is surfaced to the initiator.
type ResponseCode uint8

const (
	ResponseSuccess            ResponseCode = 0x00
	ResponseInvalidCommand     ResponseCode = 0x01
	ResponseNotAuthorized      ResponseCode = 0x02
	ResponseBusy               ResponseCode = 0x03
	ResponseUnsupportedVersion ResponseCode = 0x04
	ResponseFailure            ResponseCode = 0xFF
)

// String implements fmt.Stringer.
func (c ResponseCode) String() string {
	switch c {
	case ResponseSuccess:
		return "Success"
	case ResponseInvalidCommand:
		return "InvalidCommand"
	case ResponseNotAuthorized:
		return "NotAuthorized"
	case ResponseBusy:
		return "Busy"
	case ResponseUnsupportedVersion:
		return "UnsupportedVersion"
	case ResponseFailure:
		return "Failure"
	default:
		return fmt.Sprintf("ResponseCode(0x%02X)", uint8(c))
	}
}

// ErrorCode is carried by CommandError, the panel's NACK.
type ErrorCode uint8

const (
	ErrorUnknownCommand ErrorCode = 0x01
	ErrorBadSequence    ErrorCode = 0x02
	ErrorBadChecksum    ErrorCode = 0x03
	ErrorNotPermitted   ErrorCode = 0x04
)

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	switch c {
	case ErrorUnknownCommand:
		return "UnknownCommand"
	case ErrorBadSequence:
		return "BadSequence"
	case ErrorBadChecksum:
		return "BadChecksum"
	case ErrorNotPermitted:
		return "NotPermitted"
	default:
		return fmt.Sprintf("ErrorCode(0x%02X)", uint8(c))
	}
}

// ZoneStatus values reported by zone notifications.
type ZoneStatus uint8

const (
	ZoneRestored ZoneStatus = 0x00
	ZoneOpen     ZoneStatus = 0x01
	ZoneTamper   ZoneStatus = 0x02
	ZoneFault    ZoneStatus = 0x03
)

// PartitionStatus values reported by partition notifications.
type PartitionStatus uint8

const (
	PartitionReady     PartitionStatus = 0x00
	PartitionNotReady  PartitionStatus = 0x01
	PartitionArmedAway PartitionStatus = 0x02
	PartitionArmedStay PartitionStatus = 0x03
	PartitionInAlarm   PartitionStatus = 0x04
	PartitionExitDelay PartitionStatus = 0x05
)
