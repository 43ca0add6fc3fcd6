package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Grammar constants.
const (
	// Identifier is the literal protocol identifier present in every message.
	Identifier = "REON"

	// FieldMarker delimits message fields.
	FieldMarker = ']'

	// ReservedChars must not appear inside field content.
	ReservedChars = "]+["

	// MaxFieldBytes caps the size of a single field.
	MaxFieldBytes = 128

	// MaxFieldCount caps the number of fields in one message.
	MaxFieldCount = 16
)

// Grammar errors.
var (
	// ErrInvalidMessageFormat indicates text that does not match the grammar.
	ErrInvalidMessageFormat = errors.New("invalid message format")

	// ErrInvalidFieldFormat indicates field content containing a reserved character.
	ErrInvalidFieldFormat = errors.New("invalid field format")

	// ErrFieldTooLong indicates a field exceeding MaxFieldBytes.
	ErrFieldTooLong = errors.New("field too long")

	// ErrTooManyFields indicates a message exceeding MaxFieldCount fields.
	ErrTooManyFields = errors.New("too many fields")
)

// Message is the decoded semantic value carried by one frame: a device
// id, a command, and an ordered list of opaque text fields. Interior
// empty fields are meaningful; trailing empty markers are dropped by
// the grammar.
type Message struct {
	Device  DeviceID
	Command Command
	Fields  []string
}

// NewMessage builds a message, validating the device id and each field.
func NewMessage(device DeviceID, command Command, fields ...string) (*Message, error) {
	if !device.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDeviceID, device)
	}
	if !command.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCommandCode, command)
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	return &Message{Device: device, Command: command, Fields: fields}, nil
}

// Format renders the message in its canonical textual form.
func (m *Message) Format() string {
	var b strings.Builder
	b.WriteString(m.Device.String())
	b.WriteByte('+')
	b.WriteString(Identifier)
	b.WriteByte('+')
	b.WriteString(m.Command.Code())
	for _, field := range m.Fields {
		b.WriteByte(FieldMarker)
		b.WriteString(field)
	}
	if len(m.Fields) > 0 {
		b.WriteByte(FieldMarker)
	}
	return b.String()
}

// Field returns the i-th field, or an empty string if absent.
func (m *Message) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}

// String returns a short human-readable description.
func (m *Message) String() string {
	return fmt.Sprintf("%s dev=%s fields=%d", m.Command, m.Device, len(m.Fields))
}

// Parse decodes the textual form of a message. Leading and trailing
// whitespace is trimmed first. Each structural defect produces a
// distinct error: missing device id or protocol identifier yields
// ErrInvalidMessageFormat, an out-of-range device id yields
// ErrInvalidDeviceID, and an unknown command code yields
// ErrInvalidCommandCode.
func Parse(text string) (*Message, error) {
	text = strings.TrimSpace(text)

	plus := strings.IndexByte(text, '+')
	if plus < 0 {
		return nil, fmt.Errorf("%w: missing device id separator", ErrInvalidMessageFormat)
	}
	device, err := ParseDeviceID(text[:plus])
	if err != nil {
		return nil, err
	}

	rest := text[plus+1:]
	if !strings.HasPrefix(rest, Identifier+"+") {
		return nil, fmt.Errorf("%w: missing %q identifier", ErrInvalidMessageFormat, Identifier)
	}
	rest = rest[len(Identifier)+1:]

	// Everything before the first field marker is the command code,
	// even when the code itself contains '+'.
	codeText := rest
	fieldsText := ""
	if marker := strings.IndexByte(rest, FieldMarker); marker >= 0 {
		codeText = rest[:marker]
		fieldsText = rest[marker:]
	}

	command, err := ParseCommand(codeText)
	if err != nil {
		return nil, err
	}

	fields := splitFields(fieldsText)
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	return &Message{Device: device, Command: command, Fields: fields}, nil
}

// splitFields decodes a "]f1]f2]" field list. The segment before the
// leading marker is always empty and one empty trailing segment is the
// closing marker, not a field; interior empty segments are kept.
func splitFields(text string) []string {
	if text == "" {
		return nil
	}
	segments := strings.Split(text, string(FieldMarker))
	segments = segments[1:]
	if n := len(segments); n > 0 && segments[n-1] == "" {
		segments = segments[:n-1]
	}
	if len(segments) == 0 {
		return nil
	}
	return segments
}

// ValidateField checks one field for reserved characters and length.
func ValidateField(field string) error {
	if idx := strings.IndexAny(field, ReservedChars); idx >= 0 {
		return fmt.Errorf("%w: field %q contains reserved character %q",
			ErrInvalidFieldFormat, field, field[idx])
	}
	if len(field) > MaxFieldBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrFieldTooLong, len(field), MaxFieldBytes)
	}
	return nil
}

func validateFields(fields []string) error {
	if len(fields) > MaxFieldCount {
		return fmt.Errorf("%w: %d > %d", ErrTooManyFields, len(fields), MaxFieldCount)
	}
	for _, field := range fields {
		if err := ValidateField(field); err != nil {
			return err
		}
	}
	return nil
}
