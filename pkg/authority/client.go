package authority

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/reon-protocol/reon-go/pkg/validation"
)

// Client calls a remote authority over TCP. It keeps one connection
// and runs one request/response exchange at a time. Any error or
// timeout closes the connection: the next call dials fresh, so a stale
// reply left in the socket can never be read as a later call's answer.
type Client struct {
	address string
	dialer  net.Dialer

	mu   sync.Mutex
	conn net.Conn
}

// NewClient creates a client for the authority at address.
func NewClient(address string) *Client {
	return &Client{address: address}
}

// Validate sends one access request and waits for the decision. The
// context bounds the whole exchange including dialing.
func (c *Client) Validate(ctx context.Context, req *validation.AccessRequest) (*validation.AccessDecision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connLocked(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	data, err := EncodeRequest(RequestFromAccess(req))
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, data); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	payload, err := ReadFrame(conn)
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("failed to read decision: %w", err)
	}

	resp, err := DecodeResponse(payload)
	if err != nil {
		c.dropLocked()
		return nil, err
	}

	return &validation.AccessDecision{
		Granted:  resp.Granted,
		Display:  resp.Display,
		UserCode: resp.UserCode,
	}, nil
}

// Close closes the client's connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// connLocked returns the live connection, dialing if needed.
func (c *Client) connLocked(ctx context.Context) (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial authority: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// dropLocked closes and forgets the connection.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Compile-time interface satisfaction check.
var _ validation.AuthorityClient = (*Client)(nil)
