package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/reon-protocol/reon-go/pkg/log"
	"github.com/reon-protocol/reon-go/pkg/protocol"
)

// DefaultPort is the TCP port REON devices dial.
const DefaultPort = 7030

// readBufferSize is the per-connection read chunk size.
const readBufferSize = 512

// ServerConfig configures a REON server.
type ServerConfig struct {
	// Address to listen on (e.g., ":7030" or "127.0.0.1:7030").
	Address string

	// MaxFrameSize is the maximum accepted frame size (default: DefaultMaxFrameSize).
	MaxFrameSize int

	// Checksum is the frame integrity function (default: XOR8).
	Checksum Checksum

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnMessage is called when a frame is decoded into a message.
	OnMessage func(conn *ServerConn, msg *protocol.Message)

	// OnError is called for connection and decode errors. Decode
	// errors are recoverable: the read loop keeps going.
	OnError func(conn *ServerConn, err error)
}

// Server is a TCP server accepting connections from REON devices.
type Server struct {
	config   ServerConfig
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new REON server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.Checksum == nil {
		config.Checksum = XOR8{}
	}

	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// Connections returns a snapshot of the active connections.
func (s *Server) Connections() []*ServerConn {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	conns := make([]*ServerConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	return conns
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				if s.config.OnError != nil {
					s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
				}
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single device connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()

	decoder := NewDecoderWithConfig(DecoderConfig{
		Checksum:     s.config.Checksum,
		MaxFrameSize: s.config.MaxFrameSize,
	})
	if s.config.Logger != nil {
		decoder.SetLogger(s.config.Logger, connID)
	}

	sconn := &ServerConn{
		conn:    conn,
		decoder: decoder,
		encoder: NewEncoderWithConfig(EncoderConfig{
			Checksum:     s.config.Checksum,
			MaxFrameSize: s.config.MaxFrameSize,
		}),
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.logConnState(sconn, "", "CONNECTED")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logConnState(sconn, "CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// logConnState logs a connection state change.
func (s *Server) logConnState(conn *ServerConn, oldState, newState string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   conn.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   "connection",
			OldState: oldState,
			NewState: newState,
		},
	})
}

// ServerConn represents a device connection to the server.
type ServerConn struct {
	conn       net.Conn
	decoder    *Decoder
	encoder    *Encoder
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string

	// Device id observed on the last inbound message; zero until the
	// device has spoken.
	deviceID atomic.Uint32

	// Synchronization
	writeMu sync.Mutex
}

// RemoteAddr returns the remote address of the device.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// DeviceID returns the device id seen on the last inbound message,
// or false if the device has not sent anything yet.
func (c *ServerConn) DeviceID() (protocol.DeviceID, bool) {
	id := c.deviceID.Load()
	if id == 0 {
		return 0, false
	}
	return protocol.DeviceID(id), true
}

// Send frames and writes a message to the device.
func (c *ServerConn) Send(msg *protocol.Message) error {
	frame, err := c.encoder.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	c.logMessage(msg, log.DirectionOut)
	return nil
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// readLoop reads stream bytes and dispatches decoded messages.
func (c *ServerConn) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.decoder.Push(buf[:n])
			c.drain()
		}
		if err != nil {
			// Connection closed or read error
			if c.server.config.OnError != nil && c.server.running.Load() {
				select {
				case <-c.closeCh:
					// Already closing, don't report
				default:
					c.server.config.OnError(c, err)
				}
			}
			return
		}
	}
}

// drain decodes every completed frame currently buffered.
func (c *ServerConn) drain() {
	for {
		msg, err := c.decoder.Next()
		if err != nil {
			// Recoverable: bad frame consumed, keep decoding.
			if c.server.config.OnError != nil {
				c.server.config.OnError(c, err)
			}
			continue
		}
		if msg == nil {
			return
		}

		c.deviceID.Store(uint32(msg.Device))
		c.logMessage(msg, log.DirectionIn)

		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, msg)
		}
	}
}

// logMessage logs a decoded message event.
func (c *ServerConn) logMessage(msg *protocol.Message, direction log.Direction) {
	if c.server.config.Logger == nil {
		return
	}
	c.server.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    direction,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.remoteAddr.String(),
		DeviceID:     msg.Device.String(),
		Message: &log.MessageEvent{
			Command:    msg.Command.String(),
			Code:       msg.Command.Code(),
			FieldCount: len(msg.Fields),
		},
	})
}
