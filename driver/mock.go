package driver

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// MockPort simulates the device end of the serial link for tests. Reads pull
// from an internal buffer that test code (or a Responder) feeds; writes are
// recorded both as one continuous log and per Write call, so tests can check
// exact wire framing.
type MockPort struct {
	mu       sync.Mutex
	readBuf  bytes.Buffer
	writeLog bytes.Buffer
	writes   [][]byte
	closed   bool

	// Responder, when set, is invoked with the bytes of each Write call.
	// It runs without the port lock held, so it may call Feed directly.
	Responder func(p []byte)
}

var _ Port = (*MockPort)(nil)

func NewMockPort() *MockPort {
	return &MockPort{}
}

func (m *MockPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.EOF
	}
	if m.readBuf.Len() == 0 {
		return 0, nil // nothing pending; mirrors a timed-out serial read
	}
	return m.readBuf.Read(p)
}

func (m *MockPort) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	m.writeLog.Write(p)
	m.writes = append(m.writes, append([]byte(nil), p...))
	responder := m.Responder
	m.mu.Unlock()

	if responder != nil {
		responder(p)
	}
	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Reset()
	return nil
}

// Feed queues bytes for the harness to read.
func (m *MockPort) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Write(p)
}

// FeedAfter queues bytes after a delay, simulating a response that trickles
// in while the drain loop is still polling.
func (m *MockPort) FeedAfter(d time.Duration, p []byte) {
	go func() {
		time.Sleep(d)
		m.Feed(p)
	}()
}

// Written returns everything the harness has written, concatenated.
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.writeLog.Bytes()...)
}

// Writes returns the individual Write calls in order.
func (m *MockPort) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}
