// Package config loads the client's YAML configuration: which lock to talk
// to, its device secret, and how to log.
package config

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/backkem/sesame/pkg/device"
	"github.com/backkem/sesame/pkg/message"
	"github.com/backkem/sesame/pkg/session"
	"github.com/google/uuid"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// DefaultCommandTimeout bounds a single command round trip.
const DefaultCommandTimeout = 5 * time.Second

type Config struct {
	Device DeviceConfig `yaml:"device"`
	Link   LinkConfig   `yaml:"link"`
	Log    LogConfig    `yaml:"log"`
}

type DeviceConfig struct {
	UUID          string `yaml:"uuid"`
	Name          string `yaml:"name"`
	SecretHex     string `yaml:"secret_hex"`
	SecretHexFile string `yaml:"secret_hex_file"`
	PublicKeyHex  string `yaml:"public_key_hex"`
	DefaultTag    string `yaml:"default_tag"`
}

type LinkConfig struct {
	SegmentSize    *int          `yaml:"segment_size"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

type LogConfig struct {
	Level  string            `yaml:"level"`
	Scopes map[string]string `yaml:"scopes"`
}

func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(content, filepath.Dir(path))
}

// Parse decodes content; relative file paths are resolved against baseDir.
func Parse(content []byte, baseDir string) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device.UUID) == "" {
		return fmt.Errorf("config.device.uuid is required")
	}
	if _, err := uuid.Parse(c.Device.UUID); err != nil {
		return fmt.Errorf("config.device.uuid is invalid: %w", err)
	}

	if c.Device.SecretHex != "" && c.Device.SecretHexFile != "" {
		return fmt.Errorf("config.device.secret_hex and config.device.secret_hex_file are mutually exclusive")
	}
	if c.Device.SecretHex != "" {
		if _, err := decodeKey(c.Device.SecretHex, session.SecretSize); err != nil {
			return fmt.Errorf("config.device.secret_hex: %w", err)
		}
	}
	if c.Device.SecretHexFile != "" {
		if err := validateReadableFile(c.Device.SecretHexFile, "config.device.secret_hex_file"); err != nil {
			return err
		}
	}
	if c.Device.PublicKeyHex != "" {
		if _, err := decodeKey(c.Device.PublicKeyHex, device.PublicKeySize); err != nil {
			return fmt.Errorf("config.device.public_key_hex: %w", err)
		}
	}
	if len(c.Device.DefaultTag) > message.MaxTagSize {
		return fmt.Errorf("config.device.default_tag must be at most %d bytes", message.MaxTagSize)
	}

	if c.Link.SegmentSize != nil && (*c.Link.SegmentSize < 1 || *c.Link.SegmentSize > message.MaxBodySize) {
		return fmt.Errorf("config.link.segment_size must be 1..%d", message.MaxBodySize)
	}
	if c.Link.CommandTimeout < 0 {
		return fmt.Errorf("config.link.command_timeout must be >= 0")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	for scope, level := range c.Log.Scopes {
		if _, err := parseLevel(level); err != nil {
			return fmt.Errorf("config.log.scopes.%s: %w", scope, err)
		}
	}
	return nil
}

// Identity builds the lock identity, reading the secret file if one is set.
func (c *Config) Identity() (device.Identity, error) {
	var id device.Identity

	u, err := uuid.Parse(c.Device.UUID)
	if err != nil {
		return id, fmt.Errorf("config.device.uuid is invalid: %w", err)
	}
	id.UUID = u

	secretHex := c.Device.SecretHex
	if c.Device.SecretHexFile != "" {
		content, err := os.ReadFile(c.Device.SecretHexFile)
		if err != nil {
			return id, fmt.Errorf("read secret: %w", err)
		}
		secretHex = string(content)
	}
	if secretHex != "" {
		secret, err := decodeKey(secretHex, session.SecretSize)
		if err != nil {
			return id, fmt.Errorf("device secret: %w", err)
		}
		id.Secret = secret
	}

	if c.Device.PublicKeyHex != "" {
		pub, err := decodeKey(c.Device.PublicKeyHex, device.PublicKeySize)
		if err != nil {
			return id, fmt.Errorf("public key: %w", err)
		}
		copy(id.PublicKey[:], pub)
	}
	return id, nil
}

// DefaultTag returns the configured history tag, or nil for the built-in one.
func (c *Config) DefaultTag() []byte {
	if c.Device.DefaultTag == "" {
		return nil
	}
	return []byte(c.Device.DefaultTag)
}

// SegmentSize returns the configured segment size, or 0 for the default.
func (c *Config) SegmentSize() int {
	if c.Link.SegmentSize == nil {
		return 0
	}
	return *c.Link.SegmentSize
}

// CommandTimeout returns the per-command timeout.
func (c *Config) CommandTimeout() time.Duration {
	if c.Link.CommandTimeout == 0 {
		return DefaultCommandTimeout
	}
	return c.Link.CommandTimeout
}

// LoggerFactory returns a pion logger factory at the configured levels.
func (c *Config) LoggerFactory() *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	if level, err := parseLevel(c.Log.Level); err == nil && c.Log.Level != "" {
		f.DefaultLogLevel = level
	}
	for scope, name := range c.Log.Scopes {
		if level, err := parseLevel(name); err == nil {
			f.ScopeLevels[scope] = level
		}
	}
	return f
}

func parseLevel(name string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return logging.LogLevelInfo, nil
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", name)
	}
}

func decodeKey(s string, size int) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("must be %d bytes, got %d", size, len(b))
	}
	return b, nil
}

func (c *Config) resolvePaths(baseDir string) {
	c.Device.SecretHexFile = resolvePath(baseDir, c.Device.SecretHexFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path string, field string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}
