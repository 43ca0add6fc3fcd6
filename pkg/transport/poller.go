package transport

import (
	"context"
	"sync"
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// Status polling constants.
const (
	// DefaultPollInterval is the default interval between status queries.
	DefaultPollInterval = 30 * time.Second

	// DefaultReplyTimeout is the default timeout waiting for a status reply.
	DefaultReplyTimeout = 5 * time.Second

	// DefaultMaxMissedReplies is the default number of missed replies
	// before a device is considered unreachable.
	DefaultMaxMissedReplies = 3
)

// StatusPollerConfig configures status polling of a device connection.
type StatusPollerConfig struct {
	// PollInterval is the interval between status queries.
	PollInterval time.Duration

	// ReplyTimeout is the timeout waiting for a status reply.
	ReplyTimeout time.Duration

	// MaxMissedReplies is the number of missed replies before the
	// device is reported unreachable.
	MaxMissedReplies int
}

// DefaultStatusPollerConfig returns the default polling configuration.
func DefaultStatusPollerConfig() StatusPollerConfig {
	return StatusPollerConfig{
		PollInterval:     DefaultPollInterval,
		ReplyTimeout:     DefaultReplyTimeout,
		MaxMissedReplies: DefaultMaxMissedReplies,
	}
}

// DetectionDelay calculates the maximum time to detect a dead device
// for this configuration.
func (c StatusPollerConfig) DetectionDelay() time.Duration {
	return c.PollInterval*time.Duration(c.MaxMissedReplies) + c.ReplyTimeout
}

// StatusPoller monitors a device connection by sending periodic status
// queries and counting missed replies. Any inbound message counts as a
// reply: a turnstile that is busy reporting rotations is alive even if
// it never answers the query itself.
type StatusPoller struct {
	config StatusPollerConfig

	// Callbacks
	sendQuery     func(device protocol.DeviceID) error
	onUnreachable func(device protocol.DeviceID)

	device protocol.DeviceID

	// State
	missedReplies int
	lastQueryTime time.Time
	lastReplyTime time.Time
	pending       bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	replyCh chan struct{}
}

// NewStatusPoller creates a poller for one device connection.
func NewStatusPoller(config StatusPollerConfig, device protocol.DeviceID, sendQuery func(device protocol.DeviceID) error, onUnreachable func(device protocol.DeviceID)) *StatusPoller {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ReplyTimeout == 0 {
		config.ReplyTimeout = DefaultReplyTimeout
	}
	if config.MaxMissedReplies == 0 {
		config.MaxMissedReplies = DefaultMaxMissedReplies
	}

	return &StatusPoller{
		config:        config,
		sendQuery:     sendQuery,
		onUnreachable: onUnreachable,
		device:        device,
		stopCh:        make(chan struct{}),
		replyCh:       make(chan struct{}, 1),
	}
}

// Start begins the polling loop.
func (p *StatusPoller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
}

// Stop stops the polling loop.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.running = false
	close(p.stopCh)
}

// MessageReceived should be called for every inbound message from the
// polled device.
func (p *StatusPoller) MessageReceived() {
	select {
	case p.replyCh <- struct{}{}:
	default:
		// Channel full, drop (a reply is already pending)
	}
}

// IsRunning returns true if polling is active.
func (p *StatusPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats returns current polling statistics.
func (p *StatusPoller) Stats() StatusPollerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return StatusPollerStats{
		LastQueryTime: p.lastQueryTime,
		LastReplyTime: p.lastReplyTime,
		MissedReplies: p.missedReplies,
	}
}

// StatusPollerStats contains polling statistics.
type StatusPollerStats struct {
	LastQueryTime time.Time
	LastReplyTime time.Time
	MissedReplies int
}

// loop is the main polling loop.
func (p *StatusPoller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Send initial query
	p.sendStatusQuery()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.handleTick()
		case <-p.replyCh:
			p.handleReply()
		}
	}
}

// sendStatusQuery sends a status query and records the time.
func (p *StatusPoller) sendStatusQuery() {
	p.mu.Lock()
	p.lastQueryTime = time.Now()
	p.pending = true
	p.mu.Unlock()

	if err := p.sendQuery(p.device); err != nil {
		// Send failed - connection is likely dead
		p.mu.Lock()
		p.pending = false
		p.mu.Unlock()
		// Let the reply timeout handle it
	}
}

// handleTick handles the poll interval tick.
func (p *StatusPoller) handleTick() {
	p.mu.Lock()

	// Check if the last query went unanswered
	if p.pending {
		elapsed := time.Since(p.lastQueryTime)
		if elapsed >= p.config.ReplyTimeout {
			p.missedReplies++
			p.pending = false

			if p.missedReplies >= p.config.MaxMissedReplies {
				// Device considered unreachable
				p.mu.Unlock()
				if p.onUnreachable != nil {
					p.onUnreachable(p.device)
				}
				return
			}
		}
	}

	p.mu.Unlock()

	// Send next query
	p.sendStatusQuery()
}

// handleReply handles inbound traffic from the device.
func (p *StatusPoller) handleReply() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastReplyTime = time.Now()
	p.pending = false
	p.missedReplies = 0
}
