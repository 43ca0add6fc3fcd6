package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// recordingSender captures sent messages.
type recordingSender struct {
	sent []*protocol.Message
	err  error
}

func (s *recordingSender) Send(msg *protocol.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestManagerCommands(t *testing.T) {
	device, err := protocol.NewDeviceID(15)
	require.NoError(t, err)

	sender := &recordingSender{}
	mgr := NewManager(device, sender)

	at := time.Date(2025, 5, 10, 12, 46, 6, 0, time.UTC)
	require.NoError(t, mgr.SyncClock(at))
	require.NoError(t, mgr.EnrollCard("12345678"))
	require.NoError(t, mgr.RemoveCard("12345678"))
	require.NoError(t, mgr.ClearCards())
	require.NoError(t, mgr.SetDisplayMessage("Bem-vindo"))
	require.NoError(t, mgr.Reset())

	require.Len(t, sender.sent, 6)

	assert.Equal(t, protocol.CommandSetClock, sender.sent[0].Command)
	assert.Equal(t, "10/05/2025 12:46:06", sender.sent[0].Field(0))

	assert.Equal(t, protocol.CommandEnrollCard, sender.sent[1].Command)
	assert.Equal(t, "12345678", sender.sent[1].Field(0))

	assert.Equal(t, protocol.CommandRemoveCard, sender.sent[2].Command)
	assert.Equal(t, protocol.CommandClearCards, sender.sent[3].Command)

	assert.Equal(t, protocol.CommandSetDisplayMessage, sender.sent[4].Command)
	assert.Equal(t, "Bem-vindo", sender.sent[4].Field(0))

	assert.Equal(t, protocol.CommandReset, sender.sent[5].Command)

	for _, msg := range sender.sent {
		assert.Equal(t, device, msg.Device)
		assert.True(t, msg.Command.IsManagement(), "%s should be a management command", msg.Command)
	}
}

func TestManagerRejectsUnsafeField(t *testing.T) {
	device, err := protocol.NewDeviceID(15)
	require.NoError(t, err)

	sender := &recordingSender{}
	mgr := NewManager(device, sender)

	require.Error(t, mgr.SetDisplayMessage("no]brackets"))
	assert.Empty(t, sender.sent)
}
