package authority

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

func TestRequestRoundTrip(t *testing.T) {
	device, err := protocol.NewDeviceID(15)
	require.NoError(t, err)

	req := &validation.AccessRequest{
		Device:    device,
		Card:      "12345678",
		Timestamp: time.Date(2025, 5, 10, 12, 46, 6, 0, time.UTC),
		Direction: protocol.DirectionEntry,
		Reader:    protocol.ReaderCard,
	}

	data, err := EncodeRequest(RequestFromAccess(req))
	require.NoError(t, err)

	wireReq, err := DecodeRequest(data)
	require.NoError(t, err)

	back, err := AccessFromRequest(wireReq)
	require.NoError(t, err)

	assert.Equal(t, req.Device, back.Device)
	assert.Equal(t, req.Card, back.Card)
	assert.Equal(t, req.Timestamp.Unix(), back.Timestamp.Unix())
	assert.Equal(t, req.Direction, back.Direction)
	assert.Equal(t, req.Reader, back.Reader)
}

func TestRequestValidation(t *testing.T) {
	_, err := EncodeRequest(&ValidateRequest{Device: "01"})
	assert.ErrorIs(t, err, ErrMissingCard)

	_, err = EncodeRequest(&ValidateRequest{Card: "12345678"})
	assert.ErrorIs(t, err, ErrMissingDevice)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &ValidateResponse{
		Granted:  true,
		Display:  validation.DisplayAccessGranted,
		UserCode: "U100",
	}

	data, err := EncodeResponse(resp)
	require.NoError(t, err)

	back, err := DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, resp, back)
}

func TestResponseDisplayTooLong(t *testing.T) {
	long := bytes.Repeat([]byte("x"), validation.MaxDisplayLength+1)
	_, err := EncodeResponse(&ValidateResponse{Display: string(long)})
	assert.ErrorIs(t, err, ErrDisplayTooLong)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("authority payload")

	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrameErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteFrame(&buf, nil), ErrMessageEmpty)

	// Truncated payload
	buf.Reset()
	buf.Write([]byte{0, 0, 0, 10, 'a', 'b'})
	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrFrameTruncated)

	// Oversized declared length
	buf.Reset()
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	// Clean EOF between frames
	buf.Reset()
	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}
