package transport

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/reon-protocol/reon-go/pkg/log"
	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// Framing constants.
const (
	// StartMarker opens every frame.
	StartMarker byte = 0x02

	// EndMarker closes every frame.
	EndMarker byte = 0x03

	// DefaultMaxFrameSize is the default maximum frame size in bytes,
	// markers and integrity value included. REON payloads are short;
	// anything larger is hostile or corrupt.
	DefaultMaxFrameSize = 2048

	// MaxLogFrameDataSize is the maximum frame data size to include in
	// log events.
	MaxLogFrameDataSize = 512
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates a frame exceeding the maximum size.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameTooShort indicates a frame too small to hold an integrity value.
	ErrFrameTooShort = errors.New("frame too short")

	// ErrChecksumMismatch indicates the integrity value did not match the payload.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Encoder serializes messages into framed bytes.
type Encoder struct {
	checksum     Checksum
	maxFrameSize int
}

// EncoderConfig configures an Encoder.
type EncoderConfig struct {
	// Checksum computes the integrity value (default: XOR8).
	Checksum Checksum

	// MaxFrameSize caps the encoded frame size (default: DefaultMaxFrameSize).
	MaxFrameSize int
}

// NewEncoder creates an encoder with default settings.
func NewEncoder() *Encoder {
	return NewEncoderWithConfig(EncoderConfig{})
}

// NewEncoderWithConfig creates an encoder with custom settings.
func NewEncoderWithConfig(cfg EncoderConfig) *Encoder {
	if cfg.Checksum == nil {
		cfg.Checksum = XOR8{}
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	return &Encoder{
		checksum:     cfg.Checksum,
		maxFrameSize: cfg.MaxFrameSize,
	}
}

// Encode frames one message: start marker, payload, integrity value,
// end marker.
func (e *Encoder) Encode(msg *protocol.Message) ([]byte, error) {
	payload := []byte(msg.Format())

	frameSize := 2 + len(payload) + e.checksum.Size()
	if frameSize > e.maxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, frameSize, e.maxFrameSize)
	}

	frame := make([]byte, 0, frameSize)
	frame = append(frame, StartMarker)
	frame = append(frame, payload...)
	frame = append(frame, e.checksum.Sum(payload)...)
	frame = append(frame, EndMarker)
	return frame, nil
}

// Decoder turns a fragmented byte stream back into messages. It owns
// the byte accumulator: feed stream chunks with Push, then drain
// completed frames with Next. Each Decoder belongs to one connection;
// instances share no state.
type Decoder struct {
	buf          []byte
	checksum     Checksum
	maxFrameSize int
	discarded    uint64

	// Logging support (optional)
	logger log.Logger
	connID string
}

// DecoderConfig configures a Decoder.
type DecoderConfig struct {
	// Checksum verifies the integrity value (default: XOR8).
	Checksum Checksum

	// MaxFrameSize caps the accepted frame size (default: DefaultMaxFrameSize).
	MaxFrameSize int
}

// NewDecoder creates a decoder with default settings.
func NewDecoder() *Decoder {
	return NewDecoderWithConfig(DecoderConfig{})
}

// NewDecoderWithConfig creates a decoder with custom settings.
func NewDecoderWithConfig(cfg DecoderConfig) *Decoder {
	if cfg.Checksum == nil {
		cfg.Checksum = XOR8{}
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	return &Decoder{
		checksum:     cfg.Checksum,
		maxFrameSize: cfg.MaxFrameSize,
	}
}

// SetLogger configures logging for this decoder.
// Pass nil to disable logging.
func (d *Decoder) SetLogger(logger log.Logger, connID string) {
	d.logger = logger
	d.connID = connID
}

// Push appends stream bytes to the accumulator.
func (d *Decoder) Push(data []byte) {
	d.buf = append(d.buf, data...)
}

// Buffered returns the number of accumulated bytes not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Discarded returns the total number of bytes dropped during
// resynchronization since the decoder was created.
func (d *Decoder) Discarded() uint64 {
	return d.discarded
}

// Next extracts at most one frame from the accumulator.
//
// Returns (nil, nil) when no complete frame is buffered yet. On
// success it consumes exactly the bytes of one frame and returns the
// decoded message; remaining bytes stay buffered, so callers loop
// until (nil, nil) to drain a burst. Integrity and format errors
// consume the bad frame and resynchronize; they are recoverable and
// the next call continues with the following frame.
func (d *Decoder) Next() (*protocol.Message, error) {
	discarded := d.resync()

	start := bytes.IndexByte(d.buf, StartMarker)
	if start != 0 {
		// No start marker buffered; resync dropped everything.
		return nil, nil
	}

	end := bytes.IndexByte(d.buf, EndMarker)
	if end < 0 {
		if len(d.buf) > d.maxFrameSize {
			// Unterminated frame past the size limit. Drop its start
			// marker and resynchronize on the next one.
			size := len(d.buf)
			d.buf = d.buf[1:]
			d.resync()
			return nil, fmt.Errorf("%w: %d bytes without end marker (limit %d)",
				ErrFrameTooLarge, size, d.maxFrameSize)
		}
		return nil, nil
	}

	frame := d.buf[:end+1]
	frameSize := len(frame)
	if frameSize > d.maxFrameSize {
		d.consume(frameSize)
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, frameSize, d.maxFrameSize)
	}

	csSize := d.checksum.Size()
	interior := frame[1 : frameSize-1]
	if len(interior) < csSize {
		d.consume(frameSize)
		return nil, fmt.Errorf("%w: %d bytes cannot hold a %d-byte integrity value",
			ErrFrameTooShort, len(interior), csSize)
	}

	payload := interior[:len(interior)-csSize]
	got := interior[len(interior)-csSize:]
	want := d.checksum.Sum(payload)
	if !bytes.Equal(got, want) {
		err := fmt.Errorf("%w: expected %q, got %q", ErrChecksumMismatch, want, got)
		d.logFrame(frame, discarded)
		d.consume(frameSize)
		return nil, err
	}

	msg, err := protocol.Parse(string(payload))
	d.logFrame(frame, discarded)
	d.consume(frameSize)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// resync drops bytes preceding the next start marker and returns how
// many were dropped. The loss is a recoverable warning, not an error.
func (d *Decoder) resync() int {
	if len(d.buf) == 0 {
		return 0
	}
	start := bytes.IndexByte(d.buf, StartMarker)
	if start == 0 {
		return 0
	}

	dropped := start
	if start < 0 {
		dropped = len(d.buf)
	}
	d.buf = d.buf[dropped:]
	d.discarded += uint64(dropped)

	if d.logger != nil {
		d.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: d.connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: "discarded bytes before start marker",
				Context: fmt.Sprintf("%d bytes", dropped),
			},
		})
	}
	return dropped
}

// consume removes n bytes from the front of the accumulator.
func (d *Decoder) consume(n int) {
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
}

// logFrame emits a frame event for a completed (good or bad) frame.
func (d *Decoder) logFrame(frame []byte, discarded int) {
	if d.logger == nil {
		return
	}

	data := frame
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}

	d.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: d.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryFrame,
		Frame: &log.FrameEvent{
			Size:      len(frame),
			Data:      append([]byte(nil), data...),
			Truncated: truncated,
			Discarded: discarded,
		},
	})
}
