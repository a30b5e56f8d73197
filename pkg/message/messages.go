package message

import (
	"github.com/bhumlicek/itv2/pkg/codec"
)

func init() {
	register(Registration{Command: CommandCommandResponse, New: func() Message { return &CommandResponse{} }, Pattern: PatternSimpleAck})
	register(Registration{Command: CommandCommandError, New: func() Message { return &CommandError{} }, Pattern: PatternSimpleAck})
	register(Registration{Command: CommandConnectionPoll, New: func() Message { return &ConnectionPoll{} }, Pattern: PatternSimpleAck})
	register(Registration{Command: CommandOpenSession, New: func() Message { return &OpenSession{} }, Pattern: PatternHandshake, AppSequence: true})
	register(Registration{Command: CommandRequestAccess, New: func() Message { return &RequestAccess{} }, Pattern: PatternCommandResponse, AppSequence: true})
	register(Registration{Command: CommandSoftwareVersionRequest, New: func() Message { return &SoftwareVersionRequest{} }, Pattern: PatternCommandResponse, AppSequence: true})
	register(Registration{Command: CommandSoftwareVersionReply, New: func() Message { return &SoftwareVersionReply{} }, Pattern: PatternSimpleAck, AppSequence: true})
	register(Registration{Command: CommandPartitionStatus, New: func() Message { return &PartitionStatusNotification{} }, Pattern: PatternSimpleAck, AppSequence: true})
	register(Registration{Command: CommandZoneStatus, New: func() Message { return &ZoneStatusNotification{} }, Pattern: PatternSimpleAck, AppSequence: true})
	register(Registration{Command: CommandTroubleStatus, New: func() Message { return &TroubleStatusNotification{} }, Pattern: PatternSimpleAck, AppSequence: true})
	register(Registration{Command: CommandSystemTest, New: func() Message { return &SystemTestNotification{} }, Pattern: PatternSimpleAck, AppSequence: true})
	register(Registration{Command: CommandEventReport, New: func() Message { return &EventReportNotification{} }, Pattern: PatternSimpleAck, AppSequence: true})
	register(Registration{Command: CommandTimeDateBroadcast, New: func() Message { return &TimeDateBroadcast{} }, Pattern: PatternSimpleAck, AppSequence: true})
}

// CommandResponse closes the command leg of a command/response
// transaction. The code is preserved for the initiator; anything but
// Success is informational, not fatal.
type CommandResponse struct {
	Code ResponseCode
}

func (*CommandResponse) Command() Command { return CommandCommandResponse }

func (m *CommandResponse) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(uint8(m.Code))
	return w.Bytes()
}

func (m *CommandResponse) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	code, err := r.Uint8("code")
	if err != nil {
		return err
	}
	m.Code = ResponseCode(code)
	return nil
}

// CommandError is the panel's NACK to a message it rejects.
type CommandError struct {
	Code ErrorCode
}

func (*CommandError) Command() Command { return CommandCommandError }

func (m *CommandError) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(uint8(m.Code))
	return w.Bytes()
}

func (m *CommandError) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	code, err := r.Uint8("code")
	if err != nil {
		return err
	}
	m.Code = ErrorCode(code)
	return nil
}

// ConnectionPoll is the empty keep-alive probe.
type ConnectionPoll struct{}

func (*ConnectionPoll) Command() Command { return CommandConnectionPoll }
func (*ConnectionPoll) MarshalPayload() ([]byte, error) { return nil, nil }
func (*ConnectionPoll) UnmarshalPayload([]byte) error { return nil }

// OpenSession opens the handshake. The panel announces its identity
// and the encryption scheme; the gateway mirrors its own capabilities
// back in the second phase.
type OpenSession struct {
	DeviceType      uint8
	DeviceID        uint16
	FirmwareVersion uint16
	ProtocolVersion uint16
	TxBufferSize    uint16
	RxBufferSize    uint16
	EncryptionType  uint8
}

func (*OpenSession) Command() Command { return CommandOpenSession }

func (m *OpenSession) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(m.DeviceType)
	w.Uint16(m.DeviceID)
	w.Uint16(m.FirmwareVersion)
	w.Uint16(m.ProtocolVersion)
	w.Uint16(m.TxBufferSize)
	w.Uint16(m.RxBufferSize)
	w.Uint8(m.EncryptionType)
	return w.Bytes()
}

func (m *OpenSession) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	var err error
	if m.DeviceType, err = r.Uint8("device_type"); err != nil {
		return err
	}
	if m.DeviceID, err = r.Uint16("device_id"); err != nil {
		return err
	}
	if m.FirmwareVersion, err = r.Uint16("firmware_version"); err != nil {
		return err
	}
	if m.ProtocolVersion, err = r.Uint16("protocol_version"); err != nil {
		return err
	}
	if m.TxBufferSize, err = r.Uint16("tx_buffer_size"); err != nil {
		return err
	}
	if m.RxBufferSize, err = r.Uint16("rx_buffer_size"); err != nil {
		return err
	}
	if m.EncryptionType, err = r.Uint8("encryption_type"); err != nil {
		return err
	}
	return nil
}

// RequestAccess carries a keying initializer in either direction.
type RequestAccess struct {
	Initializer []byte
}

func (*RequestAccess) Command() Command { return CommandRequestAccess }

func (m *RequestAccess) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.PrefixedBytes("initializer", m.Initializer, 1)
	return w.Bytes()
}

func (m *RequestAccess) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	init, err := r.PrefixedBytes("initializer", 1)
	if err != nil {
		return err
	}
	m.Initializer = init
	return nil
}

// SoftwareVersionRequest asks the panel for its firmware identity.
// Used as the first heartbeat after the handshake settles.
type SoftwareVersionRequest struct{}

func (*SoftwareVersionRequest) Command() Command { return CommandSoftwareVersionRequest }
func (*SoftwareVersionRequest) MarshalPayload() ([]byte, error) { return nil, nil }
func (*SoftwareVersionRequest) UnmarshalPayload([]byte) error { return nil }

// SoftwareVersionReply is the panel's answer to the version probe.
type SoftwareVersionReply struct {
	Version []byte // fixed 8 bytes
}

func (*SoftwareVersionReply) Command() Command { return CommandSoftwareVersionReply }

func (m *SoftwareVersionReply) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.FixedBytes(m.Version, 8)
	return w.Bytes()
}

func (m *SoftwareVersionReply) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	v, err := r.FixedBytes("version", 8)
	if err != nil {
		return err
	}
	m.Version = v
	return nil
}

// PartitionStatusNotification reports a partition state change.
type PartitionStatusNotification struct {
	Partition uint8 // compact
	Status    PartitionStatus
}

func (*PartitionStatusNotification) Command() Command { return CommandPartitionStatus }

func (m *PartitionStatusNotification) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.CompactUint(m.Partition)
	w.Uint8(uint8(m.Status))
	return w.Bytes()
}

func (m *PartitionStatusNotification) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	p, err := r.CompactUint("partition")
	if err != nil {
		return err
	}
	s, err := r.Uint8("status")
	if err != nil {
		return err
	}
	m.Partition = p
	m.Status = PartitionStatus(s)
	return nil
}

// ZoneStatusNotification reports a zone state change.
type ZoneStatusNotification struct {
	Zone   uint8 // compact
	Status ZoneStatus
}

func (*ZoneStatusNotification) Command() Command { return CommandZoneStatus }

func (m *ZoneStatusNotification) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.CompactUint(m.Zone)
	w.Uint8(uint8(m.Status))
	return w.Bytes()
}

func (m *ZoneStatusNotification) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	z, err := r.CompactUint("zone")
	if err != nil {
		return err
	}
	s, err := r.Uint8("status")
	if err != nil {
		return err
	}
	m.Zone = z
	m.Status = ZoneStatus(s)
	return nil
}

// TroubleStatusNotification reports a trouble condition coming or going.
type TroubleStatusNotification struct {
	Device  uint8
	Trouble uint8
	Active  bool
}

func (*TroubleStatusNotification) Command() Command { return CommandTroubleStatus }

func (m *TroubleStatusNotification) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(m.Device)
	w.Uint8(m.Trouble)
	if m.Active {
		w.Uint8(0x01)
	} else {
		w.Uint8(0x00)
	}
	return w.Bytes()
}

func (m *TroubleStatusNotification) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	d, err := r.Uint8("device")
	if err != nil {
		return err
	}
	tr, err := r.Uint8("trouble")
	if err != nil {
		return err
	}
	a, err := r.Uint8("active")
	if err != nil {
		return err
	}
	m.Device = d
	m.Trouble = tr
	m.Active = a != 0
	return nil
}

// SystemTestNotification reports a panel self-test.
type SystemTestNotification struct {
	TestType uint8
	Result   uint8
}

func (*SystemTestNotification) Command() Command { return CommandSystemTest }

func (m *SystemTestNotification) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(m.TestType)
	w.Uint8(m.Result)
	return w.Bytes()
}

func (m *SystemTestNotification) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	tt, err := r.Uint8("test_type")
	if err != nil {
		return err
	}
	res, err := r.Uint8("result")
	if err != nil {
		return err
	}
	m.TestType = tt
	m.Result = res
	return nil
}

// EventReportNotification is the general event log record pushed by
// the panel.
type EventReportNotification struct {
	Priority  uint8
	Event     uint16
	Partition uint8 // compact
	Zone      uint8 // compact
	Data      []byte
}

func (*EventReportNotification) Command() Command { return CommandEventReport }

func (m *EventReportNotification) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(m.Priority)
	w.Uint16(m.Event)
	w.CompactUint(m.Partition)
	w.CompactUint(m.Zone)
	w.PrefixedBytes("data", m.Data, 1)
	return w.Bytes()
}

func (m *EventReportNotification) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	var err error
	if m.Priority, err = r.Uint8("priority"); err != nil {
		return err
	}
	if m.Event, err = r.Uint16("event"); err != nil {
		return err
	}
	if m.Partition, err = r.CompactUint("partition"); err != nil {
		return err
	}
	if m.Zone, err = r.CompactUint("zone"); err != nil {
		return err
	}
	if m.Data, err = r.PrefixedBytes("data", 1); err != nil {
		return err
	}
	return nil
}

// TimeDateBroadcast is the panel clock broadcast.
type TimeDateBroadcast struct {
	Year   uint8 // years since 2000
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
}

func (*TimeDateBroadcast) Command() Command { return CommandTimeDateBroadcast }

func (m *TimeDateBroadcast) MarshalPayload() ([]byte, error) {
	w := codec.NewWriter()
	w.Uint8(m.Year)
	w.Uint8(m.Month)
	w.Uint8(m.Day)
	w.Uint8(m.Hour)
	w.Uint8(m.Minute)
	return w.Bytes()
}

func (m *TimeDateBroadcast) UnmarshalPayload(data []byte) error {
	r := codec.NewReader(data)
	var err error
	if m.Year, err = r.Uint8("year"); err != nil {
		return err
	}
	if m.Month, err = r.Uint8("month"); err != nil {
		return err
	}
	if m.Day, err = r.Uint8("day"); err != nil {
		return err
	}
	if m.Hour, err = r.Uint8("hour"); err != nil {
		return err
	}
	if m.Minute, err = r.Uint8("minute"); err != nil {
		return err
	}
	return nil
}
