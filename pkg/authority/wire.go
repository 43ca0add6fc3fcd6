package authority

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

// encMode is the CBOR encoder mode for authority messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for authority messages.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Wire message validation errors.
var (
	ErrMissingCard    = errors.New("missing card number")
	ErrMissingDevice  = errors.New("missing device id")
	ErrDisplayTooLong = errors.New("display text too long")
)

// ValidateRequest is the wire form of one access request.
type ValidateRequest struct {
	Device    string    `cbor:"1,keyasint"`
	Card      string    `cbor:"2,keyasint"`
	Timestamp time.Time `cbor:"3,keyasint"`
	Direction string    `cbor:"4,keyasint"`
	Reader    string    `cbor:"5,keyasint"`
}

// Validate checks request invariants.
func (r *ValidateRequest) Validate() error {
	if r.Card == "" {
		return ErrMissingCard
	}
	if r.Device == "" {
		return ErrMissingDevice
	}
	return nil
}

// ValidateResponse is the wire form of one decision.
type ValidateResponse struct {
	Granted  bool   `cbor:"1,keyasint"`
	Display  string `cbor:"2,keyasint"`
	UserCode string `cbor:"3,keyasint,omitempty"`
}

// Validate checks response invariants.
func (r *ValidateResponse) Validate() error {
	if len(r.Display) > validation.MaxDisplayLength {
		return fmt.Errorf("%w: %d > %d", ErrDisplayTooLong,
			len(r.Display), validation.MaxDisplayLength)
	}
	return nil
}

// RequestFromAccess converts a pipeline request to its wire form.
func RequestFromAccess(req *validation.AccessRequest) *ValidateRequest {
	return &ValidateRequest{
		Device:    req.Device.String(),
		Card:      req.Card,
		Timestamp: req.Timestamp,
		Direction: req.Direction.Code(),
		Reader:    req.Reader.Code(),
	}
}

// AccessFromRequest converts a wire request back to a pipeline request.
func AccessFromRequest(req *ValidateRequest) (*validation.AccessRequest, error) {
	device, err := protocol.ParseDeviceID(req.Device)
	if err != nil {
		return nil, err
	}
	direction, err := protocol.ParseDirection(req.Direction)
	if err != nil {
		return nil, err
	}
	reader, err := protocol.ParseReaderType(req.Reader)
	if err != nil {
		return nil, err
	}
	return &validation.AccessRequest{
		Device:    device,
		Card:      req.Card,
		Timestamp: req.Timestamp,
		Direction: direction,
		Reader:    reader,
	}, nil
}

// EncodeRequest encodes a request to CBOR bytes.
func EncodeRequest(req *ValidateRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return encMode.Marshal(req)
}

// DecodeRequest decodes CBOR bytes into a request.
func DecodeRequest(data []byte) (*ValidateRequest, error) {
	var req ValidateRequest
	if err := decMode.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response to CBOR bytes.
func EncodeResponse(resp *ValidateResponse) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return encMode.Marshal(resp)
}

// DecodeResponse decodes CBOR bytes into a response.
func DecodeResponse(data []byte) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := decMode.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &resp, nil
}
