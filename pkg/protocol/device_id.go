package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// Device id bounds.
const (
	// MinDeviceID is the lowest addressable device id.
	MinDeviceID = 1

	// MaxDeviceID is the highest addressable device id.
	MaxDeviceID = 99
)

// ErrInvalidDeviceID indicates a device id outside [MinDeviceID, MaxDeviceID]
// or a textual form that is not a decimal number.
var ErrInvalidDeviceID = errors.New("invalid device id")

// DeviceID identifies one physical turnstile or reader on the wire.
// The canonical textual form is always two zero-padded decimal digits.
type DeviceID uint8

// NewDeviceID creates a device id, failing outside the valid range.
func NewDeviceID(value int) (DeviceID, error) {
	if value < MinDeviceID || value > MaxDeviceID {
		return 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDeviceID, value, MinDeviceID, MaxDeviceID)
	}
	return DeviceID(value), nil
}

// ParseDeviceID parses the textual form of a device id.
func ParseDeviceID(text string) (DeviceID, error) {
	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidDeviceID, text)
	}
	return NewDeviceID(value)
}

// String returns the canonical two-digit zero-padded form.
func (d DeviceID) String() string {
	return fmt.Sprintf("%02d", uint8(d))
}

// IsValid returns true if the device id is within the addressable range.
func (d DeviceID) IsValid() bool {
	return d >= MinDeviceID && d <= MaxDeviceID
}
