package protocol

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantDevice DeviceID
		wantCmd    Command
		wantFields []string
	}{
		{
			name:       "status query no fields",
			text:       "01+REON+RQ",
			wantDevice: 1,
			wantCmd:    CommandStatusQuery,
		},
		{
			name:       "access request",
			text:       "15+REON+000+0]12345678]10/05/2025 12:46:06]1]0]",
			wantDevice: 15,
			wantCmd:    CommandAccessRequest,
			wantFields: []string{"12345678", "10/05/2025 12:46:06", "1", "0"},
		},
		{
			name:       "grant exit response",
			text:       "15+REON+00+6]5]Acesso liberado]",
			wantDevice: 15,
			wantCmd:    CommandGrantExit,
			wantFields: []string{"5", "Acesso liberado"},
		},
		{
			name:       "interior empty field kept",
			text:       "02+REON+ECAR]]12345678]",
			wantDevice: 2,
			wantCmd:    CommandEnrollCard,
			wantFields: []string{"", "12345678"},
		},
		{
			name:       "surrounding whitespace trimmed",
			text:       "  01+REON+RQ \r\n",
			wantDevice: 1,
			wantCmd:    CommandStatusQuery,
		},
		{
			name:       "single digit device id",
			text:       "7+REON+RST",
			wantDevice: 7,
			wantCmd:    CommandReset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if msg.Device != tt.wantDevice {
				t.Errorf("device = %d, want %d", msg.Device, tt.wantDevice)
			}
			if msg.Command != tt.wantCmd {
				t.Errorf("command = %s, want %s", msg.Command, tt.wantCmd)
			}
			if !reflect.DeepEqual(msg.Fields, tt.wantFields) {
				t.Errorf("fields = %q, want %q", msg.Fields, tt.wantFields)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{name: "empty", text: "", wantErr: ErrInvalidMessageFormat},
		{name: "no separator", text: "01REONRQ", wantErr: ErrInvalidMessageFormat},
		{name: "missing identifier", text: "01+NOPE+RQ", wantErr: ErrInvalidMessageFormat},
		{name: "device id not numeric", text: "xx+REON+RQ", wantErr: ErrInvalidDeviceID},
		{name: "device id out of range", text: "00+REON+RQ", wantErr: ErrInvalidDeviceID},
		{name: "unknown command code", text: "01+REON+ZZZZ", wantErr: ErrInvalidCommandCode},
		{name: "unknown command with fields", text: "01+REON+ZZ]a]", wantErr: ErrInvalidCommandCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.text); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) = %v, want %v", tt.text, err, tt.wantErr)
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		device DeviceID
		cmd    Command
		fields []string
	}{
		{name: "no fields", device: 1, cmd: CommandStatusQuery},
		{name: "one field", device: 9, cmd: CommandDeny, fields: []string{"Cartao nao cadastrado"}},
		{name: "many fields", device: 99, cmd: CommandAccessRequest, fields: []string{"87654321", "01/01/2026 00:00:00", "2", "1"}},
		{name: "interior empty field", device: 42, cmd: CommandEnrollCard, fields: []string{"", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.device, tt.cmd, tt.fields...)
			if err != nil {
				t.Fatalf("NewMessage failed: %v", err)
			}
			back, err := Parse(msg.Format())
			if err != nil {
				t.Fatalf("Parse(Format()) failed: %v", err)
			}
			if back.Device != msg.Device || back.Command != msg.Command ||
				!reflect.DeepEqual(back.Fields, msg.Fields) {
				t.Errorf("round trip mismatch: got %+v, want %+v", back, msg)
			}
		})
	}
}

func TestFormatTrailingMarker(t *testing.T) {
	noFields, _ := NewMessage(1, CommandStatusQuery)
	if got := noFields.Format(); strings.ContainsRune(got, rune(FieldMarker)) {
		t.Errorf("zero-field message must not contain %q: %q", FieldMarker, got)
	}

	withFields, _ := NewMessage(1, CommandDeny, "msg")
	if got := withFields.Format(); !strings.HasSuffix(got, string(FieldMarker)) {
		t.Errorf("message with fields must end in %q: %q", FieldMarker, got)
	}
}

func TestValidateField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		wantErr error
	}{
		{name: "plain text ok", field: "Acesso liberado"},
		{name: "empty ok", field: ""},
		{name: "closing bracket", field: "a]b", wantErr: ErrInvalidFieldFormat},
		{name: "plus", field: "a+b", wantErr: ErrInvalidFieldFormat},
		{name: "opening bracket", field: "a[b", wantErr: ErrInvalidFieldFormat},
		{name: "too long", field: strings.Repeat("x", MaxFieldBytes+1), wantErr: ErrFieldTooLong},
		{name: "at limit ok", field: strings.Repeat("x", MaxFieldBytes)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateField(tt.field)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateField(%q) = %v, want nil", tt.field, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateField(%q) = %v, want %v", tt.field, err, tt.wantErr)
			}
		})
	}
}

func TestNewMessageFieldLimits(t *testing.T) {
	fields := make([]string, MaxFieldCount+1)
	if _, err := NewMessage(1, CommandAccessRequest, fields...); !errors.Is(err, ErrTooManyFields) {
		t.Errorf("expected ErrTooManyFields, got %v", err)
	}

	if _, err := NewMessage(1, CommandDeny, "bad]field"); !errors.Is(err, ErrInvalidFieldFormat) {
		t.Errorf("expected ErrInvalidFieldFormat, got %v", err)
	}
}

func TestParseOversizedField(t *testing.T) {
	text := "01+REON+EMSG]" + strings.Repeat("x", MaxFieldBytes+1) + "]"
	if _, err := Parse(text); !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("expected ErrFieldTooLong, got %v", err)
	}
}
