package protocol

import (
	"errors"
	"fmt"
)

// Command represents a REON protocol operation.
type Command uint8

const (
	// CommandAccessRequest is sent by the device when a credential is
	// presented (card swipe, biometric match, keypad entry).
	CommandAccessRequest Command = 1

	// CommandGrantEntry releases the turnstile for one entry rotation.
	CommandGrantEntry Command = 2

	// CommandGrantExit releases the turnstile for one exit rotation.
	CommandGrantExit Command = 3

	// CommandGrantBoth releases the turnstile in both directions.
	CommandGrantBoth Command = 4

	// CommandGrantFree releases the turnstile for free passage
	// (no rotation tracking, e.g. evacuation mode).
	CommandGrantFree Command = 5

	// CommandDeny refuses an access request.
	CommandDeny Command = 6

	// CommandRotationWait reports that the turnstile is released and
	// waiting for the user to push through.
	CommandRotationWait Command = 7

	// CommandRotationComplete reports that the rotation finished.
	CommandRotationComplete Command = 8

	// CommandRotationTimeout reports that the release window elapsed
	// without a rotation.
	CommandRotationTimeout Command = 9

	// CommandSetClock sets the device real-time clock.
	CommandSetClock Command = 10

	// CommandEnrollCard stores a card number in the device's local list.
	CommandEnrollCard Command = 11

	// CommandRemoveCard removes a card number from the device's local list.
	CommandRemoveCard Command = 12

	// CommandClearCards erases the device's local card list.
	CommandClearCards Command = 13

	// CommandSetDisplayMessage sets the device's idle display text.
	CommandSetDisplayMessage Command = 14

	// CommandReset restarts the device firmware.
	CommandReset Command = 15

	// CommandStatusQuery polls the device for liveness and status.
	CommandStatusQuery Command = 16
)

// ErrInvalidCommandCode indicates a textual code outside the command table.
var ErrInvalidCommandCode = errors.New("invalid command code")

// commandCodes is the canonical code for each command. The mapping is
// total: every command has exactly one code and every code resolves to
// exactly one command.
var commandCodes = map[Command]string{
	CommandAccessRequest:     "000+0",
	CommandGrantEntry:        "00+1",
	CommandGrantExit:         "00+6",
	CommandGrantBoth:         "00+7",
	CommandGrantFree:         "00+8",
	CommandDeny:              "00+0",
	CommandRotationWait:      "000+1",
	CommandRotationComplete:  "000+5",
	CommandRotationTimeout:   "000+7",
	CommandSetClock:          "EH",
	CommandEnrollCard:        "ECAR",
	CommandRemoveCard:        "RCAR",
	CommandClearCards:        "LCAR",
	CommandSetDisplayMessage: "EMSG",
	CommandReset:             "RST",
	CommandStatusQuery:       "RQ",
}

// commandsByCode is the reverse of commandCodes, built once at startup.
var commandsByCode map[string]Command

func init() {
	commandsByCode = make(map[string]Command, len(commandCodes))
	for cmd, code := range commandCodes {
		if _, dup := commandsByCode[code]; dup {
			panic(fmt.Sprintf("duplicate command code %q", code))
		}
		commandsByCode[code] = cmd
	}
}

// ParseCommand resolves a canonical textual code to its command.
func ParseCommand(code string) (Command, error) {
	cmd, ok := commandsByCode[code]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCommandCode, code)
	}
	return cmd, nil
}

// Code returns the command's canonical textual code.
func (c Command) Code() string {
	return commandCodes[c]
}

// IsValid returns true if the command is part of the command table.
func (c Command) IsValid() bool {
	_, ok := commandCodes[c]
	return ok
}

// IsGrant returns true for the four grant variants.
func (c Command) IsGrant() bool {
	switch c {
	case CommandGrantEntry, CommandGrantExit, CommandGrantBoth, CommandGrantFree:
		return true
	}
	return false
}

// IsRotationStatus returns true for the three rotation status reports.
func (c Command) IsRotationStatus() bool {
	switch c {
	case CommandRotationWait, CommandRotationComplete, CommandRotationTimeout:
		return true
	}
	return false
}

// IsManagement returns true for the management/configuration commands.
func (c Command) IsManagement() bool {
	switch c {
	case CommandSetClock, CommandEnrollCard, CommandRemoveCard,
		CommandClearCards, CommandSetDisplayMessage, CommandReset:
		return true
	}
	return false
}

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CommandAccessRequest:
		return "ACCESS_REQUEST"
	case CommandGrantEntry:
		return "GRANT_ENTRY"
	case CommandGrantExit:
		return "GRANT_EXIT"
	case CommandGrantBoth:
		return "GRANT_BOTH"
	case CommandGrantFree:
		return "GRANT_FREE"
	case CommandDeny:
		return "DENY"
	case CommandRotationWait:
		return "ROTATION_WAIT"
	case CommandRotationComplete:
		return "ROTATION_COMPLETE"
	case CommandRotationTimeout:
		return "ROTATION_TIMEOUT"
	case CommandSetClock:
		return "SET_CLOCK"
	case CommandEnrollCard:
		return "ENROLL_CARD"
	case CommandRemoveCard:
		return "REMOVE_CARD"
	case CommandClearCards:
		return "CLEAR_CARDS"
	case CommandSetDisplayMessage:
		return "SET_DISPLAY_MESSAGE"
	case CommandReset:
		return "RESET"
	case CommandStatusQuery:
		return "STATUS_QUERY"
	default:
		return "UNKNOWN"
	}
}
