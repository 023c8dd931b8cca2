package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/gear6io/shuttle/pkg/errors"
	"gopkg.in/yaml.v3"
)

// frameHeaderSize mirrors the codec's length prefix; batch buffers smaller
// than one header can never make progress.
const frameHeaderSize = 4

// Config represents the full shuttle configuration
type Config struct {
	Listen  string  `yaml:"listen" env:"LISTEN"`
	Engine  Engine  `yaml:"engine" envPrefix:"ENGINE_"`
	Session Session `yaml:"session" envPrefix:"SESSION_"`
	Log     Log     `yaml:"log" envPrefix:"LOG_"`
}

// Engine holds the immutable engine configuration captured at construction
type Engine struct {
	InBatchSize    int `yaml:"in_batch_size" env:"IN_BATCH_SIZE"`       // decoder scratch buffer size
	OutBatchSize   int `yaml:"out_batch_size" env:"OUT_BATCH_SIZE"`     // encoder batch buffer size
	MaxMessageSize int `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"` // 0 = decoder default limit (64 MiB)
	SendBuffer     int `yaml:"send_buffer" env:"SEND_BUFFER"`           // SO_SNDBUF, 0 = kernel default
	RecvBuffer     int `yaml:"recv_buffer" env:"RECV_BUFFER"`           // SO_RCVBUF, 0 = kernel default
}

// Session holds the message queue bounds
type Session struct {
	InQueueSize  int `yaml:"in_queue_size" env:"IN_QUEUE_SIZE"`
	OutQueueSize int `yaml:"out_queue_size" env:"OUT_QUEUE_SIZE"`
}

// Log represents logging configuration
type Log struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Format  string `yaml:"format" env:"FORMAT"`   // "json" or "console"
	Enabled bool   `yaml:"enabled" env:"ENABLED"` // false silences all output regardless of format
}

// LoadDefaultConfig returns a default configuration
func LoadDefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:7711",
		Engine: Engine{
			InBatchSize:    8192,
			OutBatchSize:   8192,
			MaxMessageSize: 0,
			SendBuffer:     0,
			RecvBuffer:     0,
		},
		Session: Session{
			InQueueSize:  128,
			OutQueueSize: 128,
		},
		Log: Log{
			Level:   "info",
			Format:  "console",
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(ErrFileReadFailed, err, "failed to read config file")
	}

	config := LoadDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(ErrFileParseFailed, err, "failed to parse config file")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(ErrValidationFailed, err, "configuration validation failed")
	}

	return config, nil
}

// ApplyEnv overrides the configuration from SHUTTLE_* environment variables
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: "SHUTTLE_"}); err != nil {
		return errors.Wrap(ErrEnvParseFailed, err, "failed to parse environment overrides")
	}
	return nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Validate checks the engine configuration
func (e Engine) Validate() error {
	if e.InBatchSize < frameHeaderSize {
		return errors.Newf(ErrInvalidBatchSize, "in_batch_size must be at least %d, got %d", frameHeaderSize, e.InBatchSize)
	}
	if e.OutBatchSize < frameHeaderSize {
		return errors.Newf(ErrInvalidBatchSize, "out_batch_size must be at least %d, got %d", frameHeaderSize, e.OutBatchSize)
	}
	if e.MaxMessageSize < 0 {
		return errors.Newf(ErrInvalidMessageSize, "max_message_size must not be negative, got %d", e.MaxMessageSize)
	}
	if e.SendBuffer < 0 || e.RecvBuffer < 0 {
		return errors.New(ErrValidationFailed, "socket buffer sizes must not be negative")
	}
	return nil
}

// Validate checks the session queue bounds
func (s Session) Validate() error {
	if s.InQueueSize < 1 {
		return errors.Newf(ErrInvalidQueueSize, "in_queue_size must be at least 1, got %d", s.InQueueSize)
	}
	if s.OutQueueSize < 1 {
		return errors.Newf(ErrInvalidQueueSize, "out_queue_size must be at least 1, got %d", s.OutQueueSize)
	}
	return nil
}

// Validate checks the logging configuration
func (l Log) Validate() error {
	switch l.Format {
	case "json", "console":
	default:
		return errors.Newf(ErrInvalidLogFormat, "log format must be 'json' or 'console', got '%s'", l.Format)
	}
	if _, err := parseLevel(l.Level); err != nil {
		return err
	}
	return nil
}
