package protocol

import (
	"errors"
	"fmt"
)

// Direction indicates the passage direction of an access request.
type Direction uint8

const (
	// DirectionEntry is a passage into the controlled area.
	DirectionEntry Direction = 1

	// DirectionExit is a passage out of the controlled area.
	DirectionExit Direction = 2
)

// ErrInvalidDirection indicates a direction field outside the enumeration.
var ErrInvalidDirection = errors.New("invalid direction")

// ParseDirection parses the wire form of a direction field.
func ParseDirection(text string) (Direction, error) {
	switch text {
	case "1":
		return DirectionEntry, nil
	case "2":
		return DirectionExit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, text)
	}
}

// Code returns the wire form of the direction.
func (d Direction) Code() string {
	switch d {
	case DirectionEntry:
		return "1"
	case DirectionExit:
		return "2"
	default:
		return "?"
	}
}

// IsValid returns true for a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionEntry || d == DirectionExit
}

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionEntry:
		return "ENTRY"
	case DirectionExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// ReaderType indicates which reader captured the credential.
type ReaderType uint8

const (
	// ReaderCard is an RFID/magnetic card reader.
	ReaderCard ReaderType = 0

	// ReaderBiometric is a fingerprint or similar biometric reader.
	ReaderBiometric ReaderType = 1

	// ReaderKeypad is a numeric keypad.
	ReaderKeypad ReaderType = 2
)

// ErrInvalidReaderType indicates a reader type field outside the enumeration.
var ErrInvalidReaderType = errors.New("invalid reader type")

// ParseReaderType parses the wire form of a reader type field.
func ParseReaderType(text string) (ReaderType, error) {
	switch text {
	case "0":
		return ReaderCard, nil
	case "1":
		return ReaderBiometric, nil
	case "2":
		return ReaderKeypad, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidReaderType, text)
	}
}

// Code returns the wire form of the reader type.
func (r ReaderType) Code() string {
	switch r {
	case ReaderCard:
		return "0"
	case ReaderBiometric:
		return "1"
	case ReaderKeypad:
		return "2"
	default:
		return "?"
	}
}

// IsValid returns true for a known reader type.
func (r ReaderType) IsValid() bool {
	return r <= ReaderKeypad
}

// String returns the reader type name.
func (r ReaderType) String() string {
	switch r {
	case ReaderCard:
		return "CARD"
	case ReaderBiometric:
		return "BIOMETRIC"
	case ReaderKeypad:
		return "KEYPAD"
	default:
		return "UNKNOWN"
	}
}
