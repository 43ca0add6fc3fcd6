package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

func TestAccessRequestFromMessage(t *testing.T) {
	msg, err := protocol.Parse("15+REON+000+0]12345678]10/05/2025 12:46:06]1]0]")
	require.NoError(t, err)

	req, err := AccessRequestFromMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, "15", req.Device.String())
	assert.Equal(t, "12345678", req.Card)
	assert.Equal(t, time.Date(2025, 5, 10, 12, 46, 6, 0, time.UTC), req.Timestamp)
	assert.Equal(t, protocol.DirectionEntry, req.Direction)
	assert.Equal(t, protocol.ReaderCard, req.Reader)
}

func TestAccessRequestFromMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"wrong command", "01+REON+RQ"},
		{"missing fields", "15+REON+000+0]12345678]10/05/2025 12:46:06]1]"},
		{"empty card", "15+REON+000+0]]10/05/2025 12:46:06]1]0]"},
		{"bad timestamp", "15+REON+000+0]12345678]2025-05-10T12:46:06]1]0]"},
		{"bad direction", "15+REON+000+0]12345678]10/05/2025 12:46:06]9]0]"},
		{"bad reader type", "15+REON+000+0]12345678]10/05/2025 12:46:06]1]7]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := protocol.Parse(tt.text)
			require.NoError(t, err)

			_, err = AccessRequestFromMessage(msg)
			assert.ErrorIs(t, err, ErrInvalidAccessRequest)
		})
	}
}

func TestDisplayStringsFitHardware(t *testing.T) {
	displays := []string{
		DisplayCardNotFound,
		DisplayCardInactive,
		DisplayCardExpired,
		DisplayUserNotFound,
		DisplayUserInactive,
		DisplayUserExpired,
		DisplayMethodNotAllowed,
		DisplayAntiPassback,
		DisplayAccessGranted,
	}

	for _, d := range displays {
		assert.LessOrEqual(t, len(d), MaxDisplayLength, "display %q", d)
		for _, r := range d {
			assert.Less(t, r, rune(128), "display %q must be ASCII", d)
		}
	}
}
