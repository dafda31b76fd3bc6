// sesame-cli is an interactive client for a simulated Sesame lock.
//
// The lock runs in-process behind an in-memory BLE-like link. The client
// receives its challenge, logs in with the device secret and accepts
// lock/unlock commands from the prompt.
//
// Usage:
//
//	sesame-cli [options]
//
// Options:
//
//	-config     YAML configuration file
//	-uuid       Lock UUID (default: random)
//	-secret     Device secret, 32 hex chars (default: random)
//	-tag        Default history tag (default: "SESAME ESP32")
//	-log-level  disabled, error, warn, info, debug, trace (default: info)
//
// Example:
//
//	sesame-cli -secret 4bb273935ab602eace93a26db6ef0fde -log-level debug
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/sesame/cmd/sesame-cli/interactive"
	"github.com/backkem/sesame/internal/config"
	"github.com/backkem/sesame/internal/simlock"
	"github.com/backkem/sesame/pkg/message"
	"github.com/google/uuid"
)

type options struct {
	ConfigFile string
	UUID       string
	Secret     string
	Tag        string
	LogLevel   string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&o.UUID, "uuid", "", "Lock UUID (default: random)")
	flag.StringVar(&o.Secret, "secret", "", "Device secret, 32 hex chars (default: random)")
	flag.StringVar(&o.Tag, "tag", "", "Default history tag")
	flag.StringVar(&o.LogLevel, "log-level", "", "Log level: disabled, error, warn, info, debug, trace")
	flag.Parse()
	return o
}

// loadConfig reads the config file if given, then applies flag overrides.
func loadConfig(o options) (*config.Config, error) {
	cfg := &config.Config{}
	if o.ConfigFile != "" {
		loaded, err := config.Load(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if o.UUID != "" {
		cfg.Device.UUID = o.UUID
	}
	if cfg.Device.UUID == "" {
		cfg.Device.UUID = uuid.NewString()
	}
	if o.Secret != "" {
		cfg.Device.SecretHex = o.Secret
		cfg.Device.SecretHexFile = ""
	}
	if cfg.Device.SecretHex == "" && cfg.Device.SecretHexFile == "" {
		secret := make([]byte, 16)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		cfg.Device.SecretHex = hex.EncodeToString(secret)
	}
	if o.Tag != "" {
		cfg.Device.DefaultTag = o.Tag
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	opts := parseFlags()

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	identity, err := cfg.Identity()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	console, err := interactive.New(cfg.CommandTimeout())
	if err != nil {
		log.Fatalf("Failed to start console: %v", err)
	}

	loggerFactory := cfg.LoggerFactory()
	loggerFactory.Writer = console.Stderr()

	pair, err := simlock.NewPair(simlock.PairConfig{
		Identity:      identity,
		Mech:          message.MechStatus{Battery: 3000, UnlockRange: true},
		DefaultTag:    cfg.DefaultTag(),
		SegmentSize:   cfg.SegmentSize(),
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		log.Fatalf("Failed to create lock: %v", err)
	}
	defer pair.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console.Attach(pair)

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.CommandTimeout())
	err = pair.Connect(connectCtx)
	connectCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
	}

	console.Run(ctx, cancel)
}
