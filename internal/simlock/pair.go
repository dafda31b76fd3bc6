package simlock

import (
	"context"
	"errors"

	"github.com/backkem/sesame/pkg/device"
	"github.com/backkem/sesame/pkg/message"
	"github.com/backkem/sesame/pkg/transport"
	"github.com/pion/logging"
)

// PairConfig configures a client session wired to a simulated lock.
type PairConfig struct {
	// Identity is the client's view of the lock. Its secret is used for
	// login.
	Identity device.Identity

	// LockSecret is the secret the lock checks proofs against.
	// Default: Identity.Secret
	LockSecret []byte

	// Pipe configures the in-memory link.
	// Default: transport.DefaultPipeConfig()
	Pipe *transport.PipeConfig

	// Mech is the lock's initial mechanism status.
	Mech message.MechStatus

	// DefaultTag is passed to the client session.
	DefaultTag []byte

	// SegmentSize applies to both ends of the link.
	// Default: message.SegmentPayloadSize
	SegmentSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Pair is a client Session and a simulated Lock joined by a Pipe.
type Pair struct {
	Pipe    *transport.Pipe
	Lock    *Lock
	Link    *transport.Link
	Session *device.Session

	hasSecret bool
	log       logging.LeveledLogger
}

// NewPair builds both ends. Nothing flows until Connect.
func NewPair(config PairConfig) (*Pair, error) {
	lockSecret := config.LockSecret
	if len(lockSecret) == 0 {
		lockSecret = config.Identity.Secret
	}

	pipeConfig := transport.DefaultPipeConfig()
	if config.Pipe != nil {
		pipeConfig = *config.Pipe
	}

	p := &Pair{
		Pipe:      transport.NewPipeWithConfig(pipeConfig),
		hasSecret: config.Identity.HasSecret(),
	}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("simlock")
	}

	lock, err := New(Config{
		Conn:          p.Pipe.Peripheral(),
		Secret:        lockSecret,
		Mech:          config.Mech,
		SegmentSize:   config.SegmentSize,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		_ = p.Pipe.Close()
		return nil, err
	}
	p.Lock = lock

	link, err := transport.NewLink(transport.LinkConfig{
		Conn:          p.Pipe.Central(),
		Handler:       p.receive,
		SegmentSize:   config.SegmentSize,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		_ = p.Pipe.Close()
		return nil, err
	}
	p.Link = link

	sess, err := device.NewSession(device.SessionConfig{
		Identity:      config.Identity,
		Transmitter:   link,
		DefaultTag:    config.DefaultTag,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		_ = p.Pipe.Close()
		return nil, err
	}
	p.Session = sess

	return p, nil
}

// receive feeds reassembled bodies to the session.
func (p *Pair) receive(rb *transport.ReceivedBody) {
	if err := p.Session.Receive(rb.Parsing, rb.Data); err != nil && p.log != nil {
		p.log.Warnf("session rejected %v body: %v", rb.Parsing, err)
	}
}

// Connect brings the link up and lets the lock publish its challenge.
// With a secret, it waits until the session is logged in.
func (p *Pair) Connect(ctx context.Context) error {
	if err := p.Session.SetLinkStatus(device.StatusConnecting); err != nil {
		return err
	}
	if err := p.Link.Start(); err != nil {
		return err
	}
	if err := p.Session.SetLinkStatus(device.StatusConnected); err != nil {
		return err
	}
	if err := p.Lock.Start(); err != nil {
		return err
	}

	if !p.hasSecret {
		return nil
	}
	return p.WaitStatus(ctx, device.Status.IsLoggedIn)
}

// WaitStatus blocks until the session status satisfies cond.
func (p *Pair) WaitStatus(ctx context.Context, cond func(device.Status) bool) error {
	changed := make(chan struct{}, 1)
	unsubscribe := p.Session.Subscribe(device.ObserverFunc(func(device.StatusEvent) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	defer unsubscribe()

	for {
		if cond(p.Session.Status()) {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops both ends and marks the session disconnected. The pipe
// goes first so no segment is delivered to a closed endpoint.
func (p *Pair) Close() error {
	var errs []error
	_ = p.Pipe.Close()
	if err := p.Lock.Stop(); err != nil && !errors.Is(err, transport.ErrClosed) {
		errs = append(errs, err)
	}
	if err := p.Link.Stop(); err != nil && !errors.Is(err, transport.ErrClosed) {
		errs = append(errs, err)
	}
	if err := p.Session.SetLinkStatus(device.StatusDisconnected); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
