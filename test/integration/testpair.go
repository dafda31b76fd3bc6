// Package integration provides end-to-end tests of the lock client against
// the simulated lock over the in-memory link.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/backkem/sesame/internal/simlock"
	"github.com/backkem/sesame/pkg/device"
	"github.com/backkem/sesame/pkg/message"
	"github.com/backkem/sesame/pkg/transport"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// TestPair holds a connected client session and simulated lock.
//
// Example usage:
//
//	pair := NewTestPair(t, DefaultTestPairConfig())
//	if err := pair.Session.Lock(pair.Context(), nil); err != nil { ... }
type TestPair struct {
	*simlock.Pair

	// Events are the session's status transitions, oldest first.
	Events *EventLog

	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc
}

// TestPairConfig configures the test pair creation.
type TestPairConfig struct {
	// Secret is the device secret shared by client and lock.
	Secret []byte

	// LockSecret overrides the lock's secret. Defaults to Secret.
	LockSecret []byte

	// Mech is the lock's initial mechanism status.
	Mech message.MechStatus

	// SegmentSize applies to both ends. 0 uses the protocol default.
	SegmentSize int

	// Pipe configures the link. If nil, the default auto-processing pipe.
	Pipe *transport.PipeConfig

	// Timeout bounds the whole test's protocol exchanges.
	// Defaults to 5 seconds.
	Timeout time.Duration

	// SkipConnect leaves the pair unconnected.
	SkipConnect bool

	// LoggerFactory for logging. If nil, uses DefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory
}

// DefaultTestPairConfig returns default configuration for test pairs.
func DefaultTestPairConfig() TestPairConfig {
	return TestPairConfig{
		Secret:  []byte{0x4b, 0xb2, 0x73, 0x93, 0x5a, 0xb6, 0x02, 0xea, 0xce, 0x93, 0xa2, 0x6d, 0xb6, 0xef, 0x0f, 0xde},
		Mech:    message.MechStatus{Battery: 3000, UnlockRange: true},
		Timeout: 5 * time.Second,
	}
}

// NewTestPair creates a pair and, unless SkipConnect is set, connects it
// and waits for login. The pair is closed when the test ends.
func NewTestPair(t *testing.T, config TestPairConfig) *TestPair {
	t.Helper()

	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	p, err := simlock.NewPair(simlock.PairConfig{
		Identity:      device.Identity{UUID: uuid.New(), Secret: config.Secret},
		LockSecret:    config.LockSecret,
		Pipe:          config.Pipe,
		Mech:          config.Mech,
		SegmentSize:   config.SegmentSize,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		t.Fatalf("Failed to create pair: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	tp := &TestPair{
		Pair:   p,
		Events: &EventLog{},
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
	p.Session.Subscribe(tp.Events)
	t.Cleanup(tp.Close)

	if !config.SkipConnect {
		if err := p.Connect(ctx); err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
	}
	return tp
}

// Context returns the pair's deadline-bound context.
func (p *TestPair) Context() context.Context {
	return p.ctx
}

// WaitFor blocks until the session reaches status.
func (p *TestPair) WaitFor(status device.Status) {
	p.t.Helper()
	if err := p.WaitStatus(p.ctx, func(s device.Status) bool { return s == status }); err != nil {
		p.t.Fatalf("waiting for %v (at %v): %v", status, p.Session.Status(), err)
	}
}

// Close tears the pair down.
func (p *TestPair) Close() {
	p.cancel()
	if err := p.Pair.Close(); err != nil {
		p.t.Logf("close: %v", err)
	}
}

// EventLog records status events.
type EventLog struct {
	mu     sync.Mutex
	events []device.StatusEvent
}

// OnStatusChange implements device.Observer.
func (l *EventLog) OnStatusChange(e device.StatusEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Statuses returns the New status of every event.
func (l *EventLog) Statuses() []device.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]device.Status, len(l.events))
	for i, e := range l.events {
		out[i] = e.New
	}
	return out
}
