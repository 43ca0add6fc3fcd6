package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// AccessRequest is one credential presentation, decoded from an
// inbound access-request message. Immutable once built.
type AccessRequest struct {
	Device    protocol.DeviceID
	Card      string
	Timestamp time.Time
	Direction protocol.Direction
	Reader    protocol.ReaderType
}

// AccessRequestFieldCount is the number of fields an access-request
// message carries: card, timestamp, direction, reader type.
const AccessRequestFieldCount = 4

// ErrInvalidAccessRequest indicates an access-request message whose
// fields do not decode.
var ErrInvalidAccessRequest = errors.New("invalid access request")

// AccessRequestFromMessage decodes the four access-request fields.
func AccessRequestFromMessage(msg *protocol.Message) (*AccessRequest, error) {
	if msg.Command != protocol.CommandAccessRequest {
		return nil, fmt.Errorf("%w: command %s", ErrInvalidAccessRequest, msg.Command)
	}
	if len(msg.Fields) != AccessRequestFieldCount {
		return nil, fmt.Errorf("%w: %d fields, want %d",
			ErrInvalidAccessRequest, len(msg.Fields), AccessRequestFieldCount)
	}

	card := msg.Field(0)
	if card == "" {
		return nil, fmt.Errorf("%w: empty card number", ErrInvalidAccessRequest)
	}

	timestamp, err := time.Parse(protocol.TimestampLayout, msg.Field(1))
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrInvalidAccessRequest, msg.Field(1))
	}

	direction, err := protocol.ParseDirection(msg.Field(2))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessRequest, err)
	}

	reader, err := protocol.ParseReaderType(msg.Field(3))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessRequest, err)
	}

	return &AccessRequest{
		Device:    msg.Device,
		Card:      card,
		Timestamp: timestamp,
		Direction: direction,
		Reader:    reader,
	}, nil
}

// AccessDecision is the outcome of validating one access request.
// Deny is a normal decision, not an error; errors are reserved for
// "could not decide" (store or transport failure).
type AccessDecision struct {
	// Granted is the grant/deny verdict.
	Granted bool

	// Display is the text shown on the turnstile LCD.
	Display string

	// UserCode identifies the user, when the pipeline resolved one.
	UserCode string

	// Strategy names the validator that produced the decision
	// ("offline", "online").
	Strategy string
}

// Grant builds a grant decision.
func Grant(userCode, strategy string) *AccessDecision {
	return &AccessDecision{
		Granted:  true,
		Display:  DisplayAccessGranted,
		UserCode: userCode,
		Strategy: strategy,
	}
}

// Deny builds a deny decision with the given display text.
func Deny(display, strategy string) *AccessDecision {
	return &AccessDecision{
		Granted:  false,
		Display:  display,
		Strategy: strategy,
	}
}

// Validator decides access requests. Implementations must be safe for
// concurrent use; each call is independent.
type Validator interface {
	Validate(ctx context.Context, req *AccessRequest) (*AccessDecision, error)
}
