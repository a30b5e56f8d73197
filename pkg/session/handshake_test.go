package session

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhumlicek/itv2/pkg/message"
	"github.com/bhumlicek/itv2/pkg/seckey"
)

// driveHandshakeType2 scripts the panel side of a Type 2 handshake and
// installs the derived ciphers on the panel connection.
func driveHandshakeType2(t *testing.T, rig *testRig) {
	t.Helper()

	iacKey, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	iac, err := seckey.NewCipher(iacKey)
	require.NoError(t, err)

	// Phase A: panel opens the session.
	rig.panel.send(&message.OpenSession{
		DeviceType:      0x01,
		DeviceID:        0xBEEF,
		FirmwareVersion: 0x0104,
		ProtocolVersion: 0x0200,
		TxBufferSize:    256,
		RxBufferSize:    256,
		EncryptionType:  uint8(seckey.SchemeType2),
	}, 0x00)

	resp := rig.panel.recv()
	cr, ok := resp.Message.(*message.CommandResponse)
	require.True(t, ok)
	require.Equal(t, message.ResponseSuccess, cr.Code)
	rig.panel.sendAck(resp.SenderSeq)

	// Phase B: the gateway mirrors its capabilities.
	mirror := rig.panel.recv()
	open, ok := mirror.Message.(*message.OpenSession)
	require.True(t, ok)
	require.Equal(t, uint8(seckey.SchemeType2), open.EncryptionType)
	require.True(t, mirror.HasAppSeq)
	rig.panel.send(&message.CommandResponse{Code: message.ResponseSuccess}, mirror.SenderSeq)
	require.True(t, rig.panel.recv().IsAck())

	// Phase C: panel keys the gateway's outbound direction. The
	// gateway's acceptance is already encrypted under the new key.
	panelInit := make([]byte, seckey.BlockSize)
	for i := range panelInit {
		panelInit[i] = byte(0xA0 + i)
	}
	rig.panel.send(&message.RequestAccess{Initializer: panelInit}, 0x00)

	gwOutKey, err := seckey.NewCipher(iac.Encrypt(panelInit))
	require.NoError(t, err)
	rig.panel.dec = gwOutKey

	resp = rig.panel.recv()
	cr, ok = resp.Message.(*message.CommandResponse)
	require.True(t, ok)
	require.Equal(t, message.ResponseSuccess, cr.Code)
	rig.panel.sendAck(resp.SenderSeq)

	// Phase D: gateway keys its inbound direction; its initializer
	// travels in the clear inside an encrypted frame.
	access := rig.panel.recv()
	ra, ok := access.Message.(*message.RequestAccess)
	require.True(t, ok)
	require.Len(t, ra.Initializer, seckey.BlockSize)

	gwInKey, err := seckey.NewCipher(iac.Encrypt(ra.Initializer))
	require.NoError(t, err)
	rig.panel.enc = gwInKey

	rig.panel.send(&message.CommandResponse{Code: message.ResponseSuccess}, access.SenderSeq)
	require.True(t, rig.panel.recv().IsAck())
}

func TestHandshakeType2(t *testing.T) {
	handshaken := make(chan struct{}, 1)
	rig := newTestRig(t, func(c *Config) {
		c.OnHandshake = func(id uuid.UUID) { handshaken <- struct{}{} }
	})

	driveHandshakeType2(t, rig)

	select {
	case <-handshaken:
	case <-time.After(5 * time.Second):
		t.Fatal("handshake callback not fired")
	}
	assert.True(t, rig.s.Handshaken())

	// Encrypted steady state: a notification round-trips both ciphers.
	rig.panel.send(&message.ZoneStatusNotification{Zone: 9, Status: message.ZoneTamper}, 0x00)
	assert.True(t, rig.panel.recv().IsAck())

	n := rig.waitNote(t)
	// The handshake phases produced notifications too; skip to the zone.
	for {
		if z, ok := n.Message.(*message.ZoneStatusNotification); ok {
			assert.Equal(t, uint8(9), z.Zone)
			return
		}
		n = rig.waitNote(t)
	}
}

func TestHandshakeType1(t *testing.T) {
	rig := newTestRig(t, nil)

	iacKey, err := hex.DecodeString(strings.Repeat("12345678", 4))
	require.NoError(t, err)
	iinKey, err := hex.DecodeString(strings.Repeat("87654321", 4))
	require.NoError(t, err)
	iac, err := seckey.NewCipher(iacKey)
	require.NoError(t, err)
	iin, err := seckey.NewCipher(iinKey)
	require.NoError(t, err)

	rig.panel.send(&message.OpenSession{EncryptionType: uint8(seckey.SchemeType1)}, 0x00)
	resp := rig.panel.recv()
	require.IsType(t, &message.CommandResponse{}, resp.Message)
	rig.panel.sendAck(resp.SenderSeq)

	mirror := rig.panel.recv()
	require.IsType(t, &message.OpenSession{}, mirror.Message)
	rig.panel.send(&message.CommandResponse{Code: message.ResponseSuccess}, mirror.SenderSeq)
	require.True(t, rig.panel.recv().IsAck())

	// Phase C: interleave check bytes with the key bytes the gateway
	// must adopt for its outbound direction, encrypted under the IIN.
	material := make([]byte, 2*seckey.BlockSize)
	for i := range material {
		material[i] = byte(i * 3)
	}
	check := make([]byte, seckey.BlockSize)
	outKey := make([]byte, seckey.BlockSize)
	for i := 0; i < seckey.BlockSize; i++ {
		check[i] = material[2*i]
		outKey[i] = material[2*i+1]
	}
	init := append(append([]byte{}, check...), iin.Encrypt(material)...)
	rig.panel.send(&message.RequestAccess{Initializer: init}, 0x00)

	rig.panel.dec, err = seckey.NewCipher(outKey)
	require.NoError(t, err)

	resp = rig.panel.recv()
	require.IsType(t, &message.CommandResponse{}, resp.Message)
	rig.panel.sendAck(resp.SenderSeq)

	// Phase D: recover the gateway's inbound key from its initializer.
	access := rig.panel.recv()
	ra := access.Message.(*message.RequestAccess)
	require.Len(t, ra.Initializer, 3*seckey.BlockSize)

	gotCheck := ra.Initializer[:seckey.BlockSize]
	plain := iac.Decrypt(ra.Initializer[seckey.BlockSize:])
	inKey := make([]byte, seckey.BlockSize)
	for i := 0; i < seckey.BlockSize; i++ {
		require.Equal(t, gotCheck[i], plain[2*i], "check byte %d", i)
		inKey[i] = plain[2*i+1]
	}
	rig.panel.enc, err = seckey.NewCipher(inKey)
	require.NoError(t, err)

	rig.panel.send(&message.CommandResponse{Code: message.ResponseSuccess}, access.SenderSeq)
	require.True(t, rig.panel.recv().IsAck())

	require.Eventually(t, rig.s.Handshaken, time.Second, 10*time.Millisecond)
}

func TestHandshakeUnknownSchemeAborts(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.panel.send(&message.OpenSession{EncryptionType: 0x07}, 0x00)

	// The session tears down; the panel sees the connection drop.
	select {
	case err := <-rig.runErr:
		assert.NoError(t, err)
		rig.runErr <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
	}
	assert.GreaterOrEqual(t, rig.s.AbortCount(), uint64(1))
}

func TestHeartbeatAfterHandshake(t *testing.T) {
	rig := newTestRig(t, func(c *Config) {
		c.HeartbeatInitialDelay = 30 * time.Millisecond
		c.HeartbeatInterval = 40 * time.Millisecond
	})

	driveHandshakeType2(t, rig)

	// First heartbeat: the version probe, a command/response exchange.
	probe := rig.panel.recv()
	require.IsType(t, &message.SoftwareVersionRequest{}, probe.Message)
	rig.panel.send(&message.CommandResponse{Code: message.ResponseSuccess}, probe.SenderSeq)
	require.True(t, rig.panel.recv().IsAck())

	// Then the poll cadence.
	poll := rig.panel.recv()
	require.IsType(t, &message.ConnectionPoll{}, poll.Message)
	rig.panel.sendAck(poll.SenderSeq)
}
