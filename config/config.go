// Package config loads the controller configuration from a YAML file
// and applies defaults and bounds for every section.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reon-protocol/reon-go/pkg/transport"
	"github.com/reon-protocol/reon-go/pkg/turnstile"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

// Validation strategies.
const (
	StrategyOffline = "offline"
	StrategyOnline  = "online"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Validation ValidationConfig `yaml:"validation"`
	Turnstile  TurnstileConfig  `yaml:"turnstile"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the device-facing listener configuration.
type ServerConfig struct {
	Address          string `yaml:"address"`
	MaxFrameSize     int    `yaml:"max_frame_size"`
	ReleaseSeconds   int    `yaml:"release_seconds"`
	PollSeconds      int    `yaml:"poll_interval_seconds"`
	ReplySeconds     int    `yaml:"reply_timeout_seconds"`
	MaxMissedReplies int    `yaml:"max_missed_replies"`

	PollInterval time.Duration `yaml:"-"`
	ReplyTimeout time.Duration `yaml:"-"`
}

// DatabaseConfig holds the local credential database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ValidationConfig selects and tunes the access-validation strategy.
type ValidationConfig struct {
	Strategy            string `yaml:"strategy"`
	AuthorityAddress    string `yaml:"authority_address"`
	RemoteTimeoutMs     int    `yaml:"remote_timeout_ms"`
	RemoteRetries       int    `yaml:"remote_retries"`
	AntiPassbackMinutes int    `yaml:"anti_passback_minutes"`

	RemoteTimeout      time.Duration `yaml:"-"`
	AntiPassbackWindow time.Duration `yaml:"-"`
}

// TurnstileConfig tunes the rotation state machine.
type TurnstileConfig struct {
	RotationTimeoutSeconds int `yaml:"rotation_timeout_seconds"`

	RotationTimeout time.Duration `yaml:"-"`
}

// LogConfig holds the event log configuration.
type LogConfig struct {
	File         string `yaml:"file"`
	ConsoleLevel string `yaml:"console_level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// -1 marks the key absent, so an explicit "remote_retries: 0"
	// (single attempt) survives defaulting.
	var cfg Config
	cfg.Validation.RemoteRetries = -1

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Validation.RemoteRetries = -1
	_ = cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() error {
	if c.Server.Address == "" {
		c.Server.Address = fmt.Sprintf(":%d", transport.DefaultPort)
	}
	if c.Server.MaxFrameSize <= 0 {
		c.Server.MaxFrameSize = transport.DefaultMaxFrameSize
	}
	if c.Server.ReleaseSeconds <= 0 {
		c.Server.ReleaseSeconds = int(turnstile.DefaultRotationTimeout / time.Second)
	}
	if c.Server.PollSeconds <= 0 {
		c.Server.PollSeconds = int(transport.DefaultPollInterval / time.Second)
	}
	if c.Server.ReplySeconds <= 0 {
		c.Server.ReplySeconds = int(transport.DefaultReplyTimeout / time.Second)
	}
	if c.Server.MaxMissedReplies <= 0 {
		c.Server.MaxMissedReplies = transport.DefaultMaxMissedReplies
	}
	c.Server.PollInterval = time.Duration(c.Server.PollSeconds) * time.Second
	c.Server.ReplyTimeout = time.Duration(c.Server.ReplySeconds) * time.Second

	if c.Database.Path == "" {
		c.Database.Path = "reon.db"
	}

	switch c.Validation.Strategy {
	case "":
		c.Validation.Strategy = StrategyOffline
	case StrategyOffline, StrategyOnline:
	default:
		return fmt.Errorf("unknown validation strategy %q", c.Validation.Strategy)
	}
	if c.Validation.Strategy == StrategyOnline && c.Validation.AuthorityAddress == "" {
		return fmt.Errorf("validation strategy %q requires authority_address", StrategyOnline)
	}

	timeout := time.Duration(c.Validation.RemoteTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = validation.DefaultRemoteTimeout
	}
	if timeout < validation.MinRemoteTimeout {
		timeout = validation.MinRemoteTimeout
	}
	if timeout > validation.MaxRemoteTimeout {
		timeout = validation.MaxRemoteTimeout
	}
	c.Validation.RemoteTimeout = timeout

	// Negative means the key was absent; explicit zero is a single
	// attempt.
	if c.Validation.RemoteRetries < 0 {
		c.Validation.RemoteRetries = validation.DefaultRemoteRetries
	}

	if c.Validation.AntiPassbackMinutes <= 0 {
		c.Validation.AntiPassbackWindow = validation.DefaultAntiPassbackWindow
	} else {
		c.Validation.AntiPassbackWindow = time.Duration(c.Validation.AntiPassbackMinutes) * time.Minute
	}

	if c.Turnstile.RotationTimeoutSeconds <= 0 {
		c.Turnstile.RotationTimeout = turnstile.DefaultRotationTimeout
	} else {
		c.Turnstile.RotationTimeout = time.Duration(c.Turnstile.RotationTimeoutSeconds) * time.Second
	}

	if c.Log.ConsoleLevel == "" {
		c.Log.ConsoleLevel = "info"
	}
	return nil
}
