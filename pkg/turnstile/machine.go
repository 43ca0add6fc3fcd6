package turnstile

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// DefaultRotationTimeout is the default release window: how long a
// released turnstile waits for the user to push through.
const DefaultRotationTimeout = 5 * time.Second

// ErrInvalidTransition indicates an event that is not legal in the
// device's current state.
var ErrInvalidTransition = errors.New("invalid turnstile transition")

// State represents the rotation cycle state of one turnstile.
type State uint8

const (
	// StateIdle indicates the turnstile is locked and waiting for an
	// access request.
	StateIdle State = iota

	// StateWaitingRotation indicates the turnstile is released and
	// waiting for the user to push through.
	StateWaitingRotation

	// StateRotationCompleted indicates the rotation finished.
	StateRotationCompleted

	// StateRotationTimeout indicates the release window elapsed without
	// a rotation.
	StateRotationTimeout
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaitingRotation:
		return "WAITING_ROTATION"
	case StateRotationCompleted:
		return "ROTATION_COMPLETED"
	case StateRotationTimeout:
		return "ROTATION_TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Event represents a stimulus driving the rotation cycle.
type Event uint8

const (
	// EventGrant is the controller releasing the turnstile.
	EventGrant Event = iota

	// EventWait is the device confirming it is released and waiting.
	// Only a grant opens a rotation cycle; a wait report is a
	// confirmation the session layer tolerates, never a transition.
	EventWait

	// EventComplete is the device reporting a finished rotation.
	EventComplete

	// EventTimeout is the device (or the controller's own timer)
	// reporting that the release window elapsed.
	EventTimeout

	// EventReset returns the device to Idle after a terminal state.
	EventReset
)

// String returns a human-readable event name.
func (e Event) String() string {
	switch e {
	case EventGrant:
		return "GRANT"
	case EventWait:
		return "WAIT"
	case EventComplete:
		return "COMPLETE"
	case EventTimeout:
		return "TIMEOUT"
	case EventReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// EventFromCommand maps a protocol command to its rotation event.
// Returns false for commands that do not drive the rotation cycle.
func EventFromCommand(cmd protocol.Command) (Event, bool) {
	switch {
	case cmd.IsGrant():
		return EventGrant, true
	case cmd == protocol.CommandRotationWait:
		return EventWait, true
	case cmd == protocol.CommandRotationComplete:
		return EventComplete, true
	case cmd == protocol.CommandRotationTimeout:
		return EventTimeout, true
	}
	return 0, false
}

// transitionKey identifies one cell of the transition table.
type transitionKey struct {
	state State
	event Event
}

// transitions is the complete legal transition table. Everything not
// listed here is an invalid transition.
var transitions = map[transitionKey]State{
	{StateIdle, EventGrant}:               StateWaitingRotation,
	{StateWaitingRotation, EventComplete}: StateRotationCompleted,
	{StateWaitingRotation, EventTimeout}:  StateRotationTimeout,
	{StateRotationCompleted, EventReset}:  StateIdle,
	{StateRotationTimeout, EventReset}:    StateIdle,
}

// Transition holds the result of applying one event.
type Transition struct {
	Device protocol.DeviceID
	Event  Event
	From   State
	To     State
}

// Machine tracks the rotation state of every device the server has
// seen. Devices start in Idle. The mutex guards the map only; each
// Apply is a single atomic read-modify-write of one device's state.
type Machine struct {
	mu     sync.RWMutex
	states map[protocol.DeviceID]State

	rotationTimeout time.Duration
	onTransition    func(t Transition)
}

// MachineConfig configures a Machine.
type MachineConfig struct {
	// RotationTimeout is the release window (default: DefaultRotationTimeout).
	RotationTimeout time.Duration

	// OnTransition is called after every successful transition.
	OnTransition func(t Transition)
}

// NewMachine creates a machine with default settings.
func NewMachine() *Machine {
	return NewMachineWithConfig(MachineConfig{})
}

// NewMachineWithConfig creates a machine with custom settings.
func NewMachineWithConfig(cfg MachineConfig) *Machine {
	if cfg.RotationTimeout <= 0 {
		cfg.RotationTimeout = DefaultRotationTimeout
	}
	return &Machine{
		states:          make(map[protocol.DeviceID]State),
		rotationTimeout: cfg.RotationTimeout,
		onTransition:    cfg.OnTransition,
	}
}

// RotationTimeout returns the configured release window.
func (m *Machine) RotationTimeout() time.Duration {
	return m.rotationTimeout
}

// State returns the current state of a device. Unknown devices are Idle.
func (m *Machine) State(device protocol.DeviceID) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[device]
}

// Apply drives one device through one event. On success it returns the
// transition taken; on an illegal event it returns ErrInvalidTransition
// naming the state and event, and the device's state is unchanged.
func (m *Machine) Apply(device protocol.DeviceID, event Event) (Transition, error) {
	m.mu.Lock()

	from := m.states[device]
	to, ok := transitions[transitionKey{from, event}]
	if !ok {
		m.mu.Unlock()
		return Transition{}, fmt.Errorf("%w: %s in %s (device %s)",
			ErrInvalidTransition, event, from, device)
	}

	m.states[device] = to
	onTransition := m.onTransition
	m.mu.Unlock()

	t := Transition{Device: device, Event: event, From: from, To: to}
	if onTransition != nil {
		onTransition(t)
	}
	return t, nil
}

// CanApply reports whether an event is legal in the device's current
// state, without applying it.
func (m *Machine) CanApply(device protocol.DeviceID, event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := transitions[transitionKey{m.states[device], event}]
	return ok
}

// ForceIdle returns a device to Idle regardless of its current state.
// Used when a device reconnects or is administratively reset.
func (m *Machine) ForceIdle(device protocol.DeviceID) {
	m.mu.Lock()
	from := m.states[device]
	m.states[device] = StateIdle
	onTransition := m.onTransition
	m.mu.Unlock()

	if onTransition != nil && from != StateIdle {
		onTransition(Transition{Device: device, Event: EventReset, From: from, To: StateIdle})
	}
}

// Devices returns every device the machine has seen.
func (m *Machine) Devices() []protocol.DeviceID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	devices := make([]protocol.DeviceID, 0, len(m.states))
	for device := range m.states {
		devices = append(devices, device)
	}
	return devices
}
