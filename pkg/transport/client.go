package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// ErrConnectionClosed is returned when using a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// ClientConfig configures a REON client. The client plays the device
// side of the protocol: it dials the controller and exchanges framed
// messages over a plain TCP stream.
type ClientConfig struct {
	// MaxFrameSize is the maximum accepted frame size (default: DefaultMaxFrameSize).
	MaxFrameSize int

	// Checksum is the frame integrity function (default: XOR8).
	Checksum Checksum

	// ConnectTimeout is the connection timeout (default: 30s).
	ConnectTimeout time.Duration
}

// Client dials REON controllers.
type Client struct {
	config ClientConfig
}

// NewClient creates a new REON client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.Checksum == nil {
		config.Checksum = XOR8{}
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	return &Client{config: config}, nil
}

// Connect establishes a connection to the specified address.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	return &ClientConn{
		conn: conn,
		encoder: NewEncoderWithConfig(EncoderConfig{
			Checksum:     c.config.Checksum,
			MaxFrameSize: c.config.MaxFrameSize,
		}),
		decoder: NewDecoderWithConfig(DecoderConfig{
			Checksum:     c.config.Checksum,
			MaxFrameSize: c.config.MaxFrameSize,
		}),
		closeCh: make(chan struct{}),
	}, nil
}

// ClientConn represents a connection from a device to the controller.
type ClientConn struct {
	conn    net.Conn
	encoder *Encoder
	decoder *Decoder
	closeCh chan struct{}

	closeOnce sync.Once
	writeMu   sync.Mutex
	readMu    sync.Mutex
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send frames and writes a message to the controller.
func (c *ClientConn) Send(msg *protocol.Message) error {
	frame, err := c.encoder.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Receive reads the next message from the controller. A zero timeout
// blocks until a frame arrives or the connection drops. Decode errors
// for bad frames are returned but recoverable: call Receive again.
func (c *ClientConn) Receive(timeout time.Duration) (*protocol.Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, readBufferSize)
	for {
		msg, err := c.decoder.Next()
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.decoder.Push(buf[:n])
		}
		if err != nil && n == 0 {
			return nil, err
		}
	}
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
