package store

import (
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// Credential is a physical access token: a card, an enrolled biometric
// template, or a keypad code. Each credential belongs to one user.
type Credential struct {
	ID uint `gorm:"primaryKey"`

	// Number is the card or template number sent on the wire.
	Number string `gorm:"size:64;uniqueIndex;not null"`

	// KeypadCode is the alternative keypad identity, if any.
	KeypadCode string `gorm:"size:32;index"`

	// UserCode links the credential to its owner.
	UserCode string `gorm:"size:64;index;not null"`

	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidAt returns true if the credential's validity window covers t.
// Open-ended windows (nil bounds) are always satisfied.
func (c *Credential) ValidAt(t time.Time) bool {
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	return true
}

// User is a registered person. A user may hold several credentials.
type User struct {
	ID uint `gorm:"primaryKey"`

	// Code is the user's registry identity.
	Code string `gorm:"size:64;uniqueIndex;not null"`

	Name string `gorm:"size:256"`

	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time

	// Permitted access methods.
	AllowCard      bool
	AllowBiometric bool
	AllowKeypad    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidAt returns true if the user's validity window covers t.
func (u *User) ValidAt(t time.Time) bool {
	if u.ValidFrom != nil && t.Before(*u.ValidFrom) {
		return false
	}
	if u.ValidUntil != nil && t.After(*u.ValidUntil) {
		return false
	}
	return true
}

// Allows returns true if the user may authenticate with the given
// reader type.
func (u *User) Allows(reader protocol.ReaderType) bool {
	switch reader {
	case protocol.ReaderCard:
		return u.AllowCard
	case protocol.ReaderBiometric:
		return u.AllowBiometric
	case protocol.ReaderKeypad:
		return u.AllowKeypad
	}
	return false
}

// AccessEvent is one decided access request. Only granted passages
// matter for anti-passback, but denials are recorded too for auditing.
type AccessEvent struct {
	ID uint `gorm:"primaryKey"`

	UserCode         string `gorm:"size:64;index:idx_access_user_time"`
	CredentialNumber string `gorm:"size:64"`
	DeviceID         string `gorm:"size:8"`

	// Direction and Reader hold the wire codes ("1"/"2", "0"/"1"/"2").
	Direction string `gorm:"size:4"`
	Reader    string `gorm:"size:4"`

	Granted bool
	Display string `gorm:"size:64"`

	OccurredAt time.Time `gorm:"index:idx_access_user_time"`
	CreatedAt  time.Time
}
