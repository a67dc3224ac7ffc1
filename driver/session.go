package driver

import (
	"fmt"
	"io"
	"time"

	"rp6502-attest/protocol"
)

// Direction markers used in the printed transcript.
const (
	DirSent = ">>>"
	DirRecv = "<<<"
)

// TraceFunc receives every line of traffic: commands on the way out, decoded
// responses on the way in. The transcript is the harness's entire report.
type TraceFunc func(direction, text string)

// DefaultWait is the post-send settle time when a step does not specify one.
const DefaultWait = 500 * time.Millisecond

// Session drives a scripted AT conversation over a Port. Strictly
// sequential: one command at a time, paced by explicit waits, with a
// deadline-bounded drain after each command. No response is ever parsed for
// control flow; a human reads the transcript.
type Session struct {
	port  Port
	trace TraceFunc

	pollInterval time.Duration // sleep between drain polls
	quiescence   time.Duration // idle time on the line that ends a drain
	drainLimit   time.Duration // hard cap on a single drain
}

func NewSession(port Port, trace TraceFunc) *Session {
	if trace == nil {
		trace = func(string, string) {}
	}
	return &Session{
		port:         port,
		trace:        trace,
		pollInterval: 50 * time.Millisecond,
		quiescence:   150 * time.Millisecond,
		drainLimit:   2 * time.Second,
	}
}

// SendCommand writes the command with a single trailing carriage return (no
// line feed), waits for the device to act, then drains and returns whatever
// arrived, decoded permissively as ASCII.
func (s *Session) SendCommand(cmd string, wait time.Duration) (string, error) {
	if wait <= 0 {
		wait = DefaultWait
	}

	if _, err := s.port.Write([]byte(cmd + protocol.CR)); err != nil {
		return "", fmt.Errorf("write %q: %v", cmd, err)
	}
	s.trace(DirSent, cmd)

	time.Sleep(wait)

	raw, err := s.drain()
	decoded := protocol.DecodeASCII(raw)
	s.trace(DirRecv, decoded)
	if err != nil {
		return decoded, fmt.Errorf("read after %q: %v", cmd, err)
	}
	return decoded, nil
}

// RawWrite pushes payload bytes exactly as given, with no carriage-return
// framing and no read-back. Used once per session, right after a
// length-prompt CIPSEND, to supply the promised byte count.
func (s *Session) RawWrite(payload []byte) error {
	if _, err := s.port.Write(payload); err != nil {
		return fmt.Errorf("raw write: %v", err)
	}
	s.trace(DirSent, protocol.DecodeASCII(payload))
	return nil
}

// PollDrain surfaces whatever is immediately pending, tracing each burst as
// it is read, and stops at the first empty poll. Used to show the device's
// prompt echo right after the raw payload write, ahead of the scripted
// settle wait for the full round trip.
func (s *Session) PollDrain() error {
	buf := make([]byte, 512)
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			s.trace(DirRecv, protocol.DecodeASCII(buf[:n]))
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("poll drain: %v", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// drain reads until the line has been idle for the quiescence interval or
// the overall drain limit elapses. A line with nothing pending at all ends
// the drain immediately. Bursts that trickle in within the polling window
// are concatenated into one response.
func (s *Session) drain() ([]byte, error) {
	var out []byte
	buf := make([]byte, 512)
	deadline := time.Now().Add(s.drainLimit)
	lastData := time.Now()

	for time.Now().Before(deadline) {
		n, err := s.port.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			lastData = time.Now()
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return out, err
		}
		if n == 0 {
			if len(out) == 0 {
				break // nothing pending at all
			}
			if time.Since(lastData) >= s.quiescence {
				break
			}
		}
		time.Sleep(s.pollInterval)
	}
	return out, nil
}
