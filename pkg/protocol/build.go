package protocol

import (
	"strconv"
	"time"
)

// TimestampLayout is the wire form of timestamps (day first).
const TimestampLayout = "02/01/2006 15:04:05"

// NewAccessRequest builds the message a device sends when a credential
// is presented. Fields: card, timestamp, direction, reader type.
func NewAccessRequest(device DeviceID, card string, at time.Time, direction Direction, reader ReaderType) (*Message, error) {
	return NewMessage(device, CommandAccessRequest,
		card, at.Format(TimestampLayout), direction.Code(), reader.Code())
}

// NewGrant builds a grant response. The grant variant selects which
// direction the turnstile releases; fields carry the release window in
// seconds and the display message.
func NewGrant(device DeviceID, variant Command, releaseSeconds int, display string) (*Message, error) {
	if !variant.IsGrant() {
		return nil, ErrInvalidCommandCode
	}
	return NewMessage(device, variant, strconv.Itoa(releaseSeconds), display)
}

// GrantForDirection maps a passage direction to its grant variant.
func GrantForDirection(direction Direction) Command {
	if direction == DirectionExit {
		return CommandGrantExit
	}
	return CommandGrantEntry
}

// NewDeny builds a deny response carrying the display message.
func NewDeny(device DeviceID, display string) (*Message, error) {
	return NewMessage(device, CommandDeny, display)
}

// NewStatusQuery builds the liveness poll message.
func NewStatusQuery(device DeviceID) (*Message, error) {
	return NewMessage(device, CommandStatusQuery)
}

// NewSetClock builds the clock synchronization message.
func NewSetClock(device DeviceID, at time.Time) (*Message, error) {
	return NewMessage(device, CommandSetClock, at.Format(TimestampLayout))
}

// NewEnrollCard builds the message storing a card in the device's local list.
func NewEnrollCard(device DeviceID, card string) (*Message, error) {
	return NewMessage(device, CommandEnrollCard, card)
}

// NewRemoveCard builds the message removing a card from the device's local list.
func NewRemoveCard(device DeviceID, card string) (*Message, error) {
	return NewMessage(device, CommandRemoveCard, card)
}

// NewClearCards builds the message erasing the device's local card list.
func NewClearCards(device DeviceID) (*Message, error) {
	return NewMessage(device, CommandClearCards)
}

// NewSetDisplayMessage builds the message setting the idle display text.
func NewSetDisplayMessage(device DeviceID, text string) (*Message, error) {
	return NewMessage(device, CommandSetDisplayMessage, text)
}

// NewReset builds the firmware restart message.
func NewReset(device DeviceID) (*Message, error) {
	return NewMessage(device, CommandReset)
}
