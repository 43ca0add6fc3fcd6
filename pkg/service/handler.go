package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reon-protocol/reon-go/pkg/log"
	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/turnstile"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

// DefaultReleaseSeconds is the release window sent in grant responses,
// in seconds. It mirrors the rotation timeout the controller enforces
// on its own clock.
const DefaultReleaseSeconds = 5

// ErrUnexpectedCommand indicates an inbound command the controller
// never expects from a device (grants, denies, management commands are
// host-to-device only).
var ErrUnexpectedCommand = errors.New("unexpected command from device")

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Validator decides access requests.
	Validator validation.Validator

	// Machine tracks per-device rotation state.
	Machine *turnstile.Machine

	// Timer enforces the release window on the controller side.
	// Optional; without it the controller relies on the device's own
	// rotation-timeout report.
	Timer *turnstile.Timer

	// ReleaseSeconds is the release window sent in grants
	// (default: DefaultReleaseSeconds).
	ReleaseSeconds int

	// Logger for decision and state events (optional).
	Logger log.Logger
}

// Handler turns inbound device messages into state changes and
// responses.
type Handler struct {
	validator      validation.Validator
	machine        *turnstile.Machine
	timer          *turnstile.Timer
	releaseSeconds int
	logger         log.Logger
}

// NewHandler creates a handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if cfg.Machine == nil {
		return nil, fmt.Errorf("state machine is required")
	}
	if cfg.ReleaseSeconds <= 0 {
		cfg.ReleaseSeconds = DefaultReleaseSeconds
	}
	return &Handler{
		validator:      cfg.Validator,
		machine:        cfg.Machine,
		timer:          cfg.Timer,
		releaseSeconds: cfg.ReleaseSeconds,
		logger:         cfg.Logger,
	}, nil
}

// Handle processes one inbound message. The returned message, if any,
// is the response to send to the device. A nil, nil return means the
// message needed no reply.
func (h *Handler) Handle(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	switch {
	case msg.Command == protocol.CommandAccessRequest:
		return h.handleAccessRequest(ctx, msg)
	case msg.Command.IsRotationStatus():
		return nil, h.handleRotationStatus(msg)
	case msg.Command == protocol.CommandStatusQuery:
		// Devices echo status queries back as their liveness reply.
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedCommand, msg.Command)
	}
}

// RotationTimedOut forces a device's cycle closed when the release
// window elapsed without the device reporting an outcome. Wire it to
// the Timer's OnExpire callback.
func (h *Handler) RotationTimedOut(device protocol.DeviceID) {
	tr, err := h.machine.Apply(device, turnstile.EventTimeout)
	if err != nil {
		// The device's own report won the race; nothing left to close.
		h.logError(device, err)
		return
	}
	h.logTransition(device, tr, "release window elapsed")

	tr, err = h.machine.Apply(device, turnstile.EventReset)
	if err != nil {
		h.logError(device, err)
		return
	}
	h.logTransition(device, tr, "")
}

// handleAccessRequest validates one swipe and builds the grant or deny
// response.
func (h *Handler) handleAccessRequest(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	req, err := validation.AccessRequestFromMessage(msg)
	if err != nil {
		return nil, err
	}

	decision, err := h.validator.Validate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	h.logDecision(req, decision)

	if !decision.Granted {
		return protocol.NewDeny(msg.Device, decision.Display)
	}

	// The grant releases the turnstile; track the rotation. A device
	// still mid-rotation cannot be released again: surface the state
	// conflict instead of sending a grant the machine never tracked.
	tr, err := h.machine.Apply(msg.Device, turnstile.EventGrant)
	if err != nil {
		h.logError(msg.Device, err)
		return nil, err
	}
	h.logTransition(msg.Device, tr, "")
	if h.timer != nil {
		h.timer.Start(msg.Device)
	}

	return protocol.NewGrant(msg.Device,
		protocol.GrantForDirection(req.Direction), h.releaseSeconds, decision.Display)
}

// handleRotationStatus applies a device's rotation report.
func (h *Handler) handleRotationStatus(msg *protocol.Message) error {
	event, ok := turnstile.EventFromCommand(msg.Command)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedCommand, msg.Command)
	}

	// A wait report after our own grant is a confirmation, not a new
	// transition.
	if event == turnstile.EventWait &&
		h.machine.State(msg.Device) == turnstile.StateWaitingRotation {
		return nil
	}

	tr, err := h.machine.Apply(msg.Device, event)
	if err != nil {
		return err
	}
	h.logTransition(msg.Device, tr, "")

	// Terminal reports close the cycle: stop the window clock and
	// return the device to idle for the next swipe.
	if event == turnstile.EventComplete || event == turnstile.EventTimeout {
		if h.timer != nil {
			h.timer.Stop(msg.Device)
		}
		if tr, err := h.machine.Apply(msg.Device, turnstile.EventReset); err != nil {
			h.logError(msg.Device, err)
		} else {
			h.logTransition(msg.Device, tr, "")
		}
	}
	return nil
}

// logDecision emits a decision event.
func (h *Handler) logDecision(req *validation.AccessRequest, decision *validation.AccessDecision) {
	if h.logger == nil {
		return
	}
	h.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerService,
		Category:  log.CategoryDecision,
		DeviceID:  req.Device.String(),
		Decision: &log.DecisionEvent{
			Granted:   decision.Granted,
			Display:   decision.Display,
			Card:      req.Card,
			Direction: req.Direction.String(),
			Reader:    req.Reader.String(),
			Strategy:  decision.Strategy,
		},
	})
}

// logError emits a state-error event for the operator.
func (h *Handler) logError(device protocol.DeviceID, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		DeviceID:  device.String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
		},
	})
}

// logTransition emits a turnstile state-change event.
func (h *Handler) logTransition(device protocol.DeviceID, tr turnstile.Transition, reason string) {
	if h.logger == nil {
		return
	}
	h.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		DeviceID:  device.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   "turnstile",
			OldState: tr.From.String(),
			NewState: tr.To.String(),
			Reason:   reason,
		},
	})
}
