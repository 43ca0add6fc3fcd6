package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reon-protocol/reon-go/pkg/log"
	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/turnstile"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

// stubValidator returns a scripted decision.
type stubValidator struct {
	decision *validation.AccessDecision
	err      error
	calls    int
}

func (v *stubValidator) Validate(ctx context.Context, req *validation.AccessRequest) (*validation.AccessDecision, error) {
	v.calls++
	return v.decision, v.err
}

type handlerFixture struct {
	handler   *Handler
	machine   *turnstile.Machine
	timer     *turnstile.Timer
	validator *stubValidator
	device    protocol.DeviceID
}

func newFixture(t *testing.T, decision *validation.AccessDecision) *handlerFixture {
	t.Helper()

	machine := turnstile.NewMachine()
	timer := turnstile.NewTimer(turnstile.TimerConfig{Window: time.Minute})
	validator := &stubValidator{decision: decision}

	handler, err := NewHandler(HandlerConfig{
		Validator: validator,
		Machine:   machine,
		Timer:     timer,
	})
	require.NoError(t, err)

	device, err := protocol.NewDeviceID(15)
	require.NoError(t, err)

	return &handlerFixture{
		handler:   handler,
		machine:   machine,
		timer:     timer,
		validator: validator,
		device:    device,
	}
}

func accessRequestMessage(t *testing.T, direction protocol.Direction) *protocol.Message {
	t.Helper()
	msg, err := protocol.Parse(
		"15+REON+000+0]12345678]10/05/2025 12:46:06]" + direction.Code() + "]0]")
	require.NoError(t, err)
	return msg
}

func rotationMessage(t *testing.T, cmd protocol.Command) *protocol.Message {
	t.Helper()
	device, err := protocol.NewDeviceID(15)
	require.NoError(t, err)
	msg, err := protocol.NewMessage(device, cmd)
	require.NoError(t, err)
	return msg
}

func TestHandleAccessRequestGranted(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	reply, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, protocol.CommandGrantEntry, reply.Command)
	assert.Equal(t, f.device, reply.Device)
	assert.Equal(t, strconv.Itoa(DefaultReleaseSeconds), reply.Field(0))
	assert.Equal(t, validation.DisplayAccessGranted, reply.Field(1))

	assert.Equal(t, turnstile.StateWaitingRotation, f.machine.State(f.device))
	assert.True(t, f.timer.Armed(f.device))
}

func TestHandleAccessRequestExitGrantsExit(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	reply, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionExit))
	require.NoError(t, err)
	assert.Equal(t, protocol.CommandGrantExit, reply.Command)
}

func TestHandleAccessRequestDenied(t *testing.T) {
	f := newFixture(t, validation.Deny(validation.DisplayAntiPassback, validation.StrategyOffline))

	reply, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, protocol.CommandDeny, reply.Command)
	assert.Equal(t, validation.DisplayAntiPassback, reply.Field(0))

	// A deny releases nothing.
	assert.Equal(t, turnstile.StateIdle, f.machine.State(f.device))
	assert.False(t, f.timer.Armed(f.device))
}

func TestHandleRotationCompleteClosesCycle(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	_, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)
	require.True(t, f.timer.Armed(f.device))

	reply, err := f.handler.Handle(context.Background(), rotationMessage(t, protocol.CommandRotationComplete))
	require.NoError(t, err)
	assert.Nil(t, reply)

	assert.Equal(t, turnstile.StateIdle, f.machine.State(f.device))
	assert.False(t, f.timer.Armed(f.device))

	// The lane is free for the next swipe.
	_, err = f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)
}

func TestHandleRotationTimeoutClosesCycle(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	_, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)

	reply, err := f.handler.Handle(context.Background(), rotationMessage(t, protocol.CommandRotationTimeout))
	require.NoError(t, err)
	assert.Nil(t, reply)

	assert.Equal(t, turnstile.StateIdle, f.machine.State(f.device))
	assert.False(t, f.timer.Armed(f.device))
}

func TestHandleRotationWaitAfterGrantIsConfirmation(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	_, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)

	reply, err := f.handler.Handle(context.Background(), rotationMessage(t, protocol.CommandRotationWait))
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, turnstile.StateWaitingRotation, f.machine.State(f.device))
}

func TestHandleRotationCompleteWithoutGrantIsError(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	_, err := f.handler.Handle(context.Background(), rotationMessage(t, protocol.CommandRotationComplete))
	require.ErrorIs(t, err, turnstile.ErrInvalidTransition)
}

func TestHandleUnexpectedCommand(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	_, err := f.handler.Handle(context.Background(), rotationMessage(t, protocol.CommandReset))
	require.ErrorIs(t, err, ErrUnexpectedCommand)
	assert.Equal(t, 0, f.validator.calls)
}

func TestHandleMalformedAccessRequest(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	msg, err := protocol.Parse("15+REON+000+0]12345678]not-a-timestamp]1]0]")
	require.NoError(t, err)

	_, err = f.handler.Handle(context.Background(), msg)
	require.ErrorIs(t, err, validation.ErrInvalidAccessRequest)
	assert.Equal(t, 0, f.validator.calls)
}

func TestHandleValidationFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.validator.err = context.DeadlineExceeded

	_, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.Error(t, err)
	assert.Equal(t, turnstile.StateIdle, f.machine.State(f.device))
}

// eventRecorder captures protocol log events.
type eventRecorder struct {
	events []log.Event
}

func (r *eventRecorder) Log(event log.Event) {
	r.events = append(r.events, event)
}

func (r *eventRecorder) errorCount() int {
	n := 0
	for _, e := range r.events {
		if e.Category == log.CategoryError {
			n++
		}
	}
	return n
}

func TestHandleSecondSwipeMidRotationIsStateError(t *testing.T) {
	machine := turnstile.NewMachine()
	timer := turnstile.NewTimer(turnstile.TimerConfig{Window: time.Minute})
	recorder := &eventRecorder{}

	handler, err := NewHandler(HandlerConfig{
		Validator: &stubValidator{decision: validation.Grant("U100", validation.StrategyOffline)},
		Machine:   machine,
		Timer:     timer,
		Logger:    recorder,
	})
	require.NoError(t, err)

	device, err := protocol.NewDeviceID(15)
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)
	require.Equal(t, turnstile.StateWaitingRotation, machine.State(device))

	// A second swipe before the rotation finishes must not release the
	// turnstile again.
	reply, err := handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.ErrorIs(t, err, turnstile.ErrInvalidTransition)
	assert.Nil(t, reply)
	assert.Equal(t, turnstile.StateWaitingRotation, machine.State(device))
	assert.Equal(t, 1, recorder.errorCount())
}

func TestHandleStrayWaitReportIsError(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	// A wait report with no grant behind it must not open a cycle.
	_, err := f.handler.Handle(context.Background(), rotationMessage(t, protocol.CommandRotationWait))
	require.ErrorIs(t, err, turnstile.ErrInvalidTransition)
	assert.Equal(t, turnstile.StateIdle, f.machine.State(f.device))
}

func TestRotationTimedOutForcesIdle(t *testing.T) {
	f := newFixture(t, validation.Grant("U100", validation.StrategyOffline))

	_, err := f.handler.Handle(context.Background(), accessRequestMessage(t, protocol.DirectionEntry))
	require.NoError(t, err)
	require.Equal(t, turnstile.StateWaitingRotation, f.machine.State(f.device))

	f.handler.RotationTimedOut(f.device)
	assert.Equal(t, turnstile.StateIdle, f.machine.State(f.device))
}
