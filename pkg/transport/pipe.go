package transport

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures radio behavior simulation.
type NetworkCondition struct {
	// DropRate is the probability of dropping a segment (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each segment.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each segment.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of duplicating a segment (0.0 - 1.0).
	DuplicateRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic segment delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for segments.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory stand-in for a BLE connection between a client
// (endpoint 0, the central) and a lock (endpoint 1, the peripheral).
// It wraps pion's test.Bridge and adds condition simulation.
//
// By default, Pipe delivers segments in a background goroutine.
// Use NewPipeWithConfig with AutoProcess false and call Tick/Process for
// deterministic tests.
type Pipe struct {
	bridge *test.Bridge
	conn0  *PipeConn
	conn1  *PipeConn

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	p.conn0 = &PipeConn{Conn: p.bridge.GetConn0(), pipe: p}
	p.conn1 = &PipeConn{Conn: p.bridge.GetConn1(), pipe: p}

	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	if p.autoProcess {
		p.startAutoProcess()
	}

	return p
}

// startAutoProcess starts the background delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures condition simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Central returns the client endpoint.
func (p *Pipe) Central() net.Conn {
	return p.conn0
}

// Peripheral returns the lock endpoint.
func (p *Pipe) Peripheral() net.Conn {
	return p.conn1
}

// Tick delivers one segment in each direction (if available).
// Returns the number of segments delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued segments.
// Returns the number of segments delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	// Wait for goroutine outside lock
	p.wg.Wait()

	var errs []error
	if err := p.bridge.GetConn0().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.bridge.GetConn1().Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// PipeConn is one endpoint of a Pipe. Writes are subject to the pipe's
// NetworkCondition.
type PipeConn struct {
	net.Conn
	pipe *Pipe
}

// Write sends one segment to the peer.
func (c *PipeConn) Write(b []byte) (int, error) {
	drop, delay, dup := c.pipe.roll()

	if drop {
		return len(b), nil // Silently drop
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if dup {
		if _, err := c.Conn.Write(b); err != nil {
			return 0, err
		}
	}

	return c.Conn.Write(b)
}

// roll draws the condition outcome for one segment.
func (p *Pipe) roll() (drop bool, delay time.Duration, dup bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cond := p.condition
	if cond.DropRate > 0 && p.rng.Float64() < cond.DropRate {
		return true, 0, false
	}
	if cond.DelayMax > 0 {
		delay = cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
	}
	dup = cond.DuplicateRate > 0 && p.rng.Float64() < cond.DuplicateRate
	return false, delay, dup
}

// Verify PipeConn implements net.Conn.
var _ net.Conn = (*PipeConn)(nil)
