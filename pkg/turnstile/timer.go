package turnstile

import (
	"sync"
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// Timer arms a per-device deadline covering the release window. Start
// when a grant is issued; Stop when the device reports the rotation
// outcome. If the deadline fires first the OnExpire callback runs and
// the device's pending deadline is cleared.
type Timer struct {
	mu     sync.Mutex
	armed  map[protocol.DeviceID]*time.Timer
	window time.Duration

	onExpire func(device protocol.DeviceID)
}

// TimerConfig configures a Timer.
type TimerConfig struct {
	// Window is the release window (default: DefaultRotationTimeout).
	Window time.Duration

	// OnExpire is called when a device's window elapses without Stop.
	OnExpire func(device protocol.DeviceID)
}

// NewTimer creates a timer with custom settings.
func NewTimer(cfg TimerConfig) *Timer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultRotationTimeout
	}
	return &Timer{
		armed:    make(map[protocol.DeviceID]*time.Timer),
		window:   cfg.Window,
		onExpire: cfg.OnExpire,
	}
}

// Start arms the deadline for a device. An already armed deadline is
// replaced, restarting the window.
func (t *Timer) Start(device protocol.DeviceID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.armed[device]; ok {
		existing.Stop()
	}
	t.armed[device] = time.AfterFunc(t.window, func() {
		t.expire(device)
	})
}

// Stop disarms the deadline for a device. Returns true if a deadline
// was armed.
func (t *Timer) Stop(device protocol.DeviceID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.armed[device]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.armed, device)
	return true
}

// StopAll disarms every deadline.
func (t *Timer) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for device, timer := range t.armed {
		timer.Stop()
		delete(t.armed, device)
	}
}

// Armed returns true if a deadline is armed for the device.
func (t *Timer) Armed(device protocol.DeviceID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.armed[device]
	return ok
}

// expire runs when a device's deadline fires.
func (t *Timer) expire(device protocol.DeviceID) {
	t.mu.Lock()
	_, ok := t.armed[device]
	if ok {
		delete(t.armed, device)
	}
	onExpire := t.onExpire
	t.mu.Unlock()

	// A Stop that raced the firing wins: no callback.
	if ok && onExpire != nil {
		onExpire(device)
	}
}
