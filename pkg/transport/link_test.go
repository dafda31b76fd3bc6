package transport

import (
	"bytes"
	"testing"
	"time"

	"github.com/backkem/sesame/pkg/message"
	"github.com/pion/logging"
)

func newLinkPair(t *testing.T, segmentSize int) (*Pipe, *Link, *Link, chan *ReceivedBody, chan *ReceivedBody) {
	t.Helper()

	p := NewPipe()
	centralCh := make(chan *ReceivedBody, 8)
	peripheralCh := make(chan *ReceivedBody, 8)
	lf := logging.NewDefaultLoggerFactory()

	central, err := NewLink(LinkConfig{
		Conn:          p.Central(),
		Handler:       func(b *ReceivedBody) { centralCh <- b },
		SegmentSize:   segmentSize,
		LoggerFactory: lf,
	})
	if err != nil {
		t.Fatalf("NewLink central: %v", err)
	}
	peripheral, err := NewLink(LinkConfig{
		Conn:        p.Peripheral(),
		Handler:     func(b *ReceivedBody) { peripheralCh <- b },
		SegmentSize: segmentSize,
	})
	if err != nil {
		t.Fatalf("NewLink peripheral: %v", err)
	}

	if err := central.Start(); err != nil {
		t.Fatalf("central Start: %v", err)
	}
	if err := peripheral.Start(); err != nil {
		t.Fatalf("peripheral Start: %v", err)
	}

	t.Cleanup(func() {
		p.Close()
		central.Stop()
		peripheral.Stop()
	})
	return p, central, peripheral, centralCh, peripheralCh
}

func waitBody(t *testing.T, ch chan *ReceivedBody) *ReceivedBody {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for body")
		return nil
	}
}

func TestNewLinkValidation(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	if _, err := NewLink(LinkConfig{Handler: func(*ReceivedBody) {}}); err != ErrNoConn {
		t.Errorf("no conn: got %v, want ErrNoConn", err)
	}
	if _, err := NewLink(LinkConfig{Conn: p.Central()}); err != ErrNoHandler {
		t.Errorf("no handler: got %v, want ErrNoHandler", err)
	}
}

func TestLink_SingleSegment(t *testing.T) {
	_, central, _, _, peripheralCh := newLinkPair(t, 0)

	body := []byte{0x02, 0xa2, 0xe2, 0x6d, 0x6e}
	if err := central.Transmit(message.ParsingPlaintext, body); err != nil {
		t.Fatalf("Transmit failed: %v", err)
	}

	got := waitBody(t, peripheralCh)
	if got.Parsing != message.ParsingPlaintext {
		t.Errorf("parsing = %v, want Plaintext", got.Parsing)
	}
	if !bytes.Equal(got.Data, body) {
		t.Errorf("data = %x, want %x", got.Data, body)
	}
}

func TestLink_MultiSegmentBothWays(t *testing.T) {
	_, central, peripheral, centralCh, peripheralCh := newLinkPair(t, 5)

	body := make([]byte, 47)
	for i := range body {
		body[i] = byte(i * 3)
	}

	if err := central.Transmit(message.ParsingCiphertext, body); err != nil {
		t.Fatalf("central Transmit: %v", err)
	}
	got := waitBody(t, peripheralCh)
	if got.Parsing != message.ParsingCiphertext || !bytes.Equal(got.Data, body) {
		t.Errorf("peripheral got %v %x", got.Parsing, got.Data)
	}

	if err := peripheral.Transmit(message.ParsingPlaintext, body[:9]); err != nil {
		t.Fatalf("peripheral Transmit: %v", err)
	}
	got = waitBody(t, centralCh)
	if got.Parsing != message.ParsingPlaintext || !bytes.Equal(got.Data, body[:9]) {
		t.Errorf("central got %v %x", got.Parsing, got.Data)
	}
}

func TestLink_TooLarge(t *testing.T) {
	_, central, _, _, _ := newLinkPair(t, 0)
	if err := central.Transmit(message.ParsingCiphertext, make([]byte, message.MaxBodySize+1)); err != ErrMessageTooLarge {
		t.Errorf("got %v, want ErrMessageTooLarge", err)
	}
}

func TestLink_Lifecycle(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	l, err := NewLink(LinkConfig{Conn: p.Central(), Handler: func(*ReceivedBody) {}})
	if err != nil {
		t.Fatalf("NewLink: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start: got %v, want ErrAlreadyStarted", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := l.Stop(); err != ErrClosed {
		t.Errorf("second Stop: got %v, want ErrClosed", err)
	}
	if err := l.Transmit(message.ParsingPlaintext, []byte{0x01}); err != ErrClosed {
		t.Errorf("Transmit after Stop: got %v, want ErrClosed", err)
	}
	if err := l.Start(); err != ErrClosed {
		t.Errorf("Start after Stop: got %v, want ErrClosed", err)
	}
}
