package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the two-digit device id, when known.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"8,keyasint,omitempty"`  // Transport layer
	Message     *MessageEvent     `cbor:"9,keyasint,omitempty"`  // Protocol layer (decoded)
	Decision    *DecisionEvent    `cbor:"10,keyasint,omitempty"` // Access decisions
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Turnstile/connection state
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerProtocol is the message grammar layer (decoded text).
	LayerProtocol Layer = 1
	// LayerService is the application/service layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerProtocol:
		return "PROTOCOL"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a raw frame event.
	CategoryFrame Category = 0
	// CategoryMessage indicates a decoded protocol message.
	CategoryMessage Category = 1
	// CategoryDecision indicates an access grant/deny decision.
	CategoryDecision Category = 2
	// CategoryState indicates a state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryMessage:
		return "MESSAGE"
	case CategoryDecision:
		return "DECISION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (markers and integrity included).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Discarded is the number of bytes dropped during resynchronization
	// before this frame was found.
	Discarded int `cbor:"4,keyasint,omitempty"`
}

// MessageEvent captures a decoded protocol message.
type MessageEvent struct {
	// Command is the command name (e.g. "ACCESS_REQUEST").
	Command string `cbor:"1,keyasint"`

	// Code is the canonical command code (e.g. "000+0").
	Code string `cbor:"2,keyasint,omitempty"`

	// FieldCount is the number of message fields.
	FieldCount int `cbor:"3,keyasint,omitempty"`
}

// DecisionEvent captures an access validation decision.
type DecisionEvent struct {
	// Granted indicates whether access was granted.
	Granted bool `cbor:"1,keyasint"`

	// Display is the display message sent to the device hardware.
	Display string `cbor:"2,keyasint"`

	// Card is the credential that requested access.
	Card string `cbor:"3,keyasint,omitempty"`

	// Direction is the passage direction name.
	Direction string `cbor:"4,keyasint,omitempty"`

	// Reader is the reader type name.
	Reader string `cbor:"5,keyasint,omitempty"`

	// Strategy names the validator that produced the decision
	// ("offline", "online", "online-fallback").
	Strategy string `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures a state transition.
type StateChangeEvent struct {
	// Entity names what changed state ("connection", "turnstile").
	Entity string `cbor:"1,keyasint"`

	// OldState is the state before the transition.
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the state after the transition.
	NewState string `cbor:"3,keyasint"`

	// Reason provides optional context.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context provides additional detail (offending input, limits).
	Context string `cbor:"3,keyasint,omitempty"`
}
