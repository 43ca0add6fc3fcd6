package service

import (
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// Sender writes a message to one device connection.
type Sender interface {
	Send(msg *protocol.Message) error
}

// Manager issues host-originated management commands to a device.
// Management frames carry no acknowledgement; a nil error means the
// frame was written, not that the device applied it.
type Manager struct {
	device protocol.DeviceID
	sender Sender
}

// NewManager creates a manager for one device connection.
func NewManager(device protocol.DeviceID, sender Sender) *Manager {
	return &Manager{device: device, sender: sender}
}

// SyncClock sets the device clock.
func (m *Manager) SyncClock(at time.Time) error {
	msg, err := protocol.NewSetClock(m.device, at)
	if err != nil {
		return err
	}
	return m.sender.Send(msg)
}

// EnrollCard registers a card in the device's local memory.
func (m *Manager) EnrollCard(card string) error {
	msg, err := protocol.NewEnrollCard(m.device, card)
	if err != nil {
		return err
	}
	return m.sender.Send(msg)
}

// RemoveCard removes a card from the device's local memory.
func (m *Manager) RemoveCard(card string) error {
	msg, err := protocol.NewRemoveCard(m.device, card)
	if err != nil {
		return err
	}
	return m.sender.Send(msg)
}

// ClearCards wipes the device's local card memory.
func (m *Manager) ClearCards() error {
	msg, err := protocol.NewClearCards(m.device)
	if err != nil {
		return err
	}
	return m.sender.Send(msg)
}

// SetDisplayMessage sets the device's idle display text.
func (m *Manager) SetDisplayMessage(text string) error {
	msg, err := protocol.NewSetDisplayMessage(m.device, text)
	if err != nil {
		return err
	}
	return m.sender.Send(msg)
}

// Reset reboots the device.
func (m *Manager) Reset() error {
	msg, err := protocol.NewReset(m.device)
	if err != nil {
		return err
	}
	return m.sender.Send(msg)
}
