package authority

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/reon-protocol/reon-go/pkg/log"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

// DefaultPort is the TCP port the authority listens on.
const DefaultPort = 7031

// ServerConfig configures an authority server.
type ServerConfig struct {
	// Address to listen on (e.g., ":7031").
	Address string

	// Validator decides the forwarded requests.
	Validator validation.Validator

	// DecisionTimeout bounds one validation (default: 10s).
	DecisionTimeout time.Duration

	// Logger for decision logging (optional).
	Logger log.Logger
}

// Server answers validation requests from controllers.
type Server struct {
	config   ServerConfig
	listener net.Listener

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new authority server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.DecisionTimeout <= 0 {
		config.DecisionTimeout = 10 * time.Second
	}
	return &Server{config: config}, nil
}

// Start starts the server.
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

// Stop stops the server.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
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

// acceptLoop accepts controller connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection answers requests on one controller connection until
// it closes.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connID := uuid.New().String()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		payload, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.config.Logger != nil {
				s.logError(connID, conn, err)
			}
			return
		}

		wireReq, err := DecodeRequest(payload)
		if err != nil {
			if s.config.Logger != nil {
				s.logError(connID, conn, err)
			}
			return
		}

		resp := s.decide(wireReq, connID, conn)

		data, err := EncodeResponse(resp)
		if err != nil {
			return
		}
		if err := WriteFrame(conn, data); err != nil {
			return
		}
	}
}

// decide runs one validation. Failures decide nothing at this layer:
// the controller's own retry and offline fallback handle them, so the
// server reports a deny with no display rather than inventing one.
func (s *Server) decide(wireReq *ValidateRequest, connID string, conn net.Conn) *ValidateResponse {
	req, err := AccessFromRequest(wireReq)
	if err != nil {
		return &ValidateResponse{Granted: false}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.DecisionTimeout)
	defer cancel()

	decision, err := s.config.Validator.Validate(ctx, req)
	if err != nil {
		if s.config.Logger != nil {
			s.logError(connID, conn, err)
		}
		return &ValidateResponse{Granted: false}
	}

	if s.config.Logger != nil {
		s.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Direction:    log.DirectionOut,
			Layer:        log.LayerService,
			Category:     log.CategoryDecision,
			RemoteAddr:   conn.RemoteAddr().String(),
			DeviceID:     wireReq.Device,
			Decision: &log.DecisionEvent{
				Granted:   decision.Granted,
				Display:   decision.Display,
				Card:      wireReq.Card,
				Direction: wireReq.Direction,
				Reader:    wireReq.Reader,
				Strategy:  decision.Strategy,
			},
		})
	}

	return &ValidateResponse{
		Granted:  decision.Granted,
		Display:  decision.Display,
		UserCode: decision.UserCode,
	}
}

// logError emits an error event.
func (s *Server) logError(connID string, conn net.Conn, err error) {
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerService,
		Category:     log.CategoryError,
		RemoteAddr:   conn.RemoteAddr().String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
		},
	})
}
