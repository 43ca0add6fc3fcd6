// Command reon-server is the REON turnstile access controller.
//
// It listens for turnstile connections, validates access requests
// against the local credential database (or a remote authority), and
// drives each device's rotation cycle.
//
// Usage:
//
//	reon-server [flags]
//
// Flags:
//
//	-config string   Configuration file path (YAML)
//	-address string  Listen address (overrides config)
//	-db string       Credential database path (overrides config)
//
// Examples:
//
//	# Start with defaults (offline validation, reon.db, port 7030)
//	reon-server
//
//	# Start with a configuration file
//	reon-server -config /etc/reon/config.yaml
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/reon-protocol/reon-go/config"
	"github.com/reon-protocol/reon-go/internal/db"
	"github.com/reon-protocol/reon-go/pkg/authority"
	reonlog "github.com/reon-protocol/reon-go/pkg/log"
	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/service"
	"github.com/reon-protocol/reon-go/pkg/store"
	"github.com/reon-protocol/reon-go/pkg/transport"
	"github.com/reon-protocol/reon-go/pkg/turnstile"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

var (
	configFile = flag.String("config", "", "Configuration file path (YAML)")
	address    = flag.String("address", "", "Listen address (overrides config)")
	dbPath     = flag.String("db", "", "Credential database path (overrides config)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLogger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLogger()

	log.Println("REON Access Controller")
	log.Printf("Listen address: %s", cfg.Server.Address)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Validation strategy: %s", cfg.Validation.Strategy)

	gormDB, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	validator, closeValidator, err := buildValidator(cfg, store.NewGormStore(gormDB))
	if err != nil {
		log.Fatalf("Failed to build validator: %v", err)
	}
	defer closeValidator()

	machine := turnstile.NewMachineWithConfig(turnstile.MachineConfig{
		RotationTimeout: cfg.Turnstile.RotationTimeout,
	})

	// The timer's expiry callback needs the handler, which needs the
	// timer. The closure resolves the cycle.
	var handler *service.Handler
	timer := turnstile.NewTimer(turnstile.TimerConfig{
		Window: cfg.Turnstile.RotationTimeout,
		OnExpire: func(device protocol.DeviceID) {
			log.Printf("Device %s: rotation window elapsed without a report", device)
			handler.RotationTimedOut(device)
		},
	})
	defer timer.StopAll()

	handler, err = service.NewHandler(service.HandlerConfig{
		Validator:      validator,
		Machine:        machine,
		Timer:          timer,
		ReleaseSeconds: cfg.Server.ReleaseSeconds,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("Failed to create handler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollers := newPollerSet(transport.StatusPollerConfig{
		PollInterval:     cfg.Server.PollInterval,
		ReplyTimeout:     cfg.Server.ReplyTimeout,
		MaxMissedReplies: cfg.Server.MaxMissedReplies,
	})

	server, err := transport.NewServer(transport.ServerConfig{
		Address:      cfg.Server.Address,
		MaxFrameSize: cfg.Server.MaxFrameSize,
		Logger:       logger,
		OnConnect: func(conn *transport.ServerConn) {
			log.Printf("Device connected from %s", conn.RemoteAddr())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			log.Printf("Device disconnected from %s", conn.RemoteAddr())
			pollers.remove(conn)
		},
		OnMessage: func(conn *transport.ServerConn, msg *protocol.Message) {
			if first := pollers.observe(ctx, conn, msg.Device); first {
				// Align the device clock on first contact so its
				// timestamps match the controller's.
				if err := service.NewManager(msg.Device, conn).SyncClock(time.Now()); err != nil {
					log.Printf("Device %s: clock sync failed: %v", msg.Device, err)
				}
			}

			reply, err := handler.Handle(ctx, msg)
			if err != nil {
				log.Printf("Device %s: %v", msg.Device, err)
				return
			}
			if reply == nil {
				return
			}
			if err := conn.Send(reply); err != nil {
				log.Printf("Device %s: send failed: %v", msg.Device, err)
			}
		},
		OnError: func(conn *transport.ServerConn, err error) {
			if conn != nil {
				log.Printf("Connection %s: %v", conn.RemoteAddr(), err)
			} else {
				log.Printf("Server error: %v", err)
			}
		},
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Listening on %s", server.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	log.Println("Shutting down...")
	cancel()
	pollers.stopAll()
	if err := server.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	return cfg, nil
}

// buildLogger assembles the protocol event logger: console via slog,
// plus the CBOR event file when configured.
func buildLogger(cfg *config.Config) (reonlog.Logger, func(), error) {
	console := reonlog.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: consoleLevel(cfg.Log.ConsoleLevel)})))

	if cfg.Log.File == "" {
		return console, func() {}, nil
	}

	file, err := reonlog.NewFileLogger(cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	return reonlog.NewMultiLogger(console, file), func() { file.Close() }, nil
}

func consoleLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildValidator wires the validation pipeline for the configured
// strategy. The returned closer releases the authority connection,
// if any.
func buildValidator(cfg *config.Config, s store.Store) (validation.Validator, func(), error) {
	offline := validation.NewOfflineValidatorWithConfig(s, validation.OfflineConfig{
		AntiPassbackWindow: cfg.Validation.AntiPassbackWindow,
	})
	if cfg.Validation.Strategy == config.StrategyOffline {
		return offline, func() {}, nil
	}

	client := authority.NewClient(cfg.Validation.AuthorityAddress)
	online, err := validation.NewOnlineValidatorWithConfig(client, offline, validation.OnlineConfig{
		Timeout: cfg.Validation.RemoteTimeout,
		Retries: cfg.Validation.RemoteRetries,
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return online, func() { client.Close() }, nil
}

// pollerSet tracks one status poller per live connection. A poller
// starts on the first message, once the device has identified itself.
type pollerSet struct {
	config transport.StatusPollerConfig

	mu      sync.Mutex
	pollers map[*transport.ServerConn]*transport.StatusPoller
}

func newPollerSet(config transport.StatusPollerConfig) *pollerSet {
	return &pollerSet{
		config:  config,
		pollers: make(map[*transport.ServerConn]*transport.StatusPoller),
	}
}

// observe records inbound traffic for a connection, starting its
// poller on first contact. It reports whether this was first contact.
func (s *pollerSet) observe(ctx context.Context, conn *transport.ServerConn, device protocol.DeviceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if poller, ok := s.pollers[conn]; ok {
		poller.MessageReceived()
		return false
	}

	poller := transport.NewStatusPoller(s.config, device,
		func(device protocol.DeviceID) error {
			query, err := protocol.NewStatusQuery(device)
			if err != nil {
				return err
			}
			return conn.Send(query)
		},
		func(device protocol.DeviceID) {
			log.Printf("Device %s unreachable, closing connection", device)
			conn.Close()
		})
	s.pollers[conn] = poller
	poller.Start(ctx)
	poller.MessageReceived()
	return true
}

func (s *pollerSet) remove(conn *transport.ServerConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if poller, ok := s.pollers[conn]; ok {
		poller.Stop()
		delete(s.pollers, conn)
	}
}

func (s *pollerSet) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn, poller := range s.pollers {
		poller.Stop()
		delete(s.pollers, conn)
	}
}
