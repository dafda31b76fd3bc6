package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/sesame/pkg/message"
	"github.com/pion/logging"
)

// readBufferSize covers one segment at any plausible ATT MTU.
const readBufferSize = 512

// Link frames lock protocol bodies over a packet connection.
// Outbound bodies are segmented; inbound segments are reassembled and
// dispatched to the configured PacketHandler from a single read loop.
type Link struct {
	conn        net.Conn
	handler     PacketHandler
	segmentSize int
	reassembler message.Reassembler
	closeCh     chan struct{}
	wg          sync.WaitGroup
	log         logging.LeveledLogger

	writeMu sync.Mutex // Keeps the segments of one body contiguous

	mu      sync.RWMutex
	started bool
	closed  bool
}

// LinkConfig configures a Link.
type LinkConfig struct {
	// Conn is the packet connection. Each Write is one segment.
	// Required.
	Conn net.Conn

	// Handler is called for each reassembled body.
	// Required.
	Handler PacketHandler

	// SegmentSize is the number of body bytes per segment.
	// Default: message.SegmentPayloadSize
	SegmentSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewLink creates a new link with the given configuration.
func NewLink(config LinkConfig) (*Link, error) {
	if config.Conn == nil {
		return nil, ErrNoConn
	}
	if config.Handler == nil {
		return nil, ErrNoHandler
	}

	l := &Link{
		conn:        config.Conn,
		handler:     config.Handler,
		segmentSize: config.SegmentSize,
		closeCh:     make(chan struct{}),
	}
	if l.segmentSize <= 0 {
		l.segmentSize = message.SegmentPayloadSize
	}

	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport-link")
	}

	return l, nil
}

// Start begins the read loop.
func (l *Link) Start() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("starting link, %d-byte segments", l.segmentSize)
	}

	l.wg.Add(1)
	go l.readLoop()

	return nil
}

// Stop closes the link and waits for the read loop to exit.
func (l *Link) Stop() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Info("stopping link")
	}

	close(l.closeCh)

	// Set a short deadline to unblock any pending reads
	_ = l.conn.SetReadDeadline(time.Now())
	_ = l.conn.Close()
	l.wg.Wait()

	return nil
}

// Transmit segments body and writes every segment in order.
// The parsing type goes on the final segment.
func (l *Link) Transmit(parsing message.ParsingType, body []byte) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	l.mu.RUnlock()

	if len(body) > message.MaxBodySize {
		return ErrMessageTooLarge
	}

	segments := message.Segment(parsing, body, l.segmentSize)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.log != nil {
		l.log.Debugf("sending %d-byte %v body in %d segment(s)", len(body), parsing, len(segments))
	}

	for _, seg := range segments {
		if _, err := l.conn.Write(seg); err != nil {
			if l.log != nil {
				l.log.Warnf("send failed: %v", err)
			}
			return err
		}
	}
	return nil
}

// readLoop reads segments, reassembles bodies and dispatches them.
func (l *Link) readLoop() {
	defer l.wg.Done()

	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-l.closeCh:
			return
		default:
		}

		n, err := l.conn.Read(buf)
		if err != nil {
			// Check if we're shutting down
			select {
			case <-l.closeCh:
				return
			default:
				if l.log != nil {
					l.log.Warnf("link read error: %v", err)
				}
				// A closed peer never recovers
				if isClosedErr(err) {
					return
				}
				continue
			}
		}

		if n == 0 {
			continue
		}

		body, parsing, done, err := l.reassembler.Push(buf[:n])
		if err != nil {
			if l.log != nil {
				l.log.Warnf("dropping segment: %v", err)
			}
			continue
		}
		if !done {
			continue
		}

		if l.log != nil {
			l.log.Debugf("received %d-byte %v body", len(body), parsing)
		}

		l.handler(&ReceivedBody{Parsing: parsing, Data: body})
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
