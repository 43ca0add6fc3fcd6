package protocol

import (
	"errors"
	"testing"
)

var allCommands = []Command{
	CommandAccessRequest,
	CommandGrantEntry,
	CommandGrantExit,
	CommandGrantBoth,
	CommandGrantFree,
	CommandDeny,
	CommandRotationWait,
	CommandRotationComplete,
	CommandRotationTimeout,
	CommandSetClock,
	CommandEnrollCard,
	CommandRemoveCard,
	CommandClearCards,
	CommandSetDisplayMessage,
	CommandReset,
	CommandStatusQuery,
}

func TestCommandCodeRoundTrip(t *testing.T) {
	for _, cmd := range allCommands {
		code := cmd.Code()
		if code == "" {
			t.Errorf("%s has no code", cmd)
			continue
		}
		back, err := ParseCommand(code)
		if err != nil {
			t.Errorf("ParseCommand(%q) failed: %v", code, err)
			continue
		}
		if back != cmd {
			t.Errorf("ParseCommand(%q) = %s, want %s", code, back, cmd)
		}
	}
}

func TestParseCommandUnknown(t *testing.T) {
	for _, code := range []string{"", "XX", "000+9", "reon", "00"} {
		if _, err := ParseCommand(code); !errors.Is(err, ErrInvalidCommandCode) {
			t.Errorf("ParseCommand(%q): expected ErrInvalidCommandCode, got %v", code, err)
		}
	}
}

func TestCommandClassification(t *testing.T) {
	grants := 0
	rotations := 0
	management := 0
	for _, cmd := range allCommands {
		if cmd.IsGrant() {
			grants++
		}
		if cmd.IsRotationStatus() {
			rotations++
		}
		if cmd.IsManagement() {
			management++
		}
	}
	if grants != 4 {
		t.Errorf("grant variants = %d, want 4", grants)
	}
	if rotations != 3 {
		t.Errorf("rotation statuses = %d, want 3", rotations)
	}
	if management != 6 {
		t.Errorf("management commands = %d, want 6", management)
	}
}

func TestCommandIsValid(t *testing.T) {
	if Command(0).IsValid() {
		t.Error("Command(0) should not be valid")
	}
	if Command(200).IsValid() {
		t.Error("Command(200) should not be valid")
	}
	for _, cmd := range allCommands {
		if !cmd.IsValid() {
			t.Errorf("%s should be valid", cmd)
		}
	}
}
