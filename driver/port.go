package driver

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go.bug.st/serial"

	"rp6502-attest/logger"
)

// ReadTimeout bounds how long a single Read may block. It governs only the
// individual read call, not step pacing, which is driven by explicit waits.
const ReadTimeout = 1 * time.Second

// Port is the byte-stream handle the session driver runs over. Exactly one
// owner for the process lifetime; opened once, closed once.
type Port interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
	ResetInputBuffer() error
}

// ============================================================================
// Serial Port (Physical UART, e.g. the RP6502 USB CDC device)
// ============================================================================

// SerialPort wraps go.bug.st/serial for the physical device link.
type SerialPort struct {
	serial.Port
	portName string
}

var _ Port = (*SerialPort)(nil)

func openSerialPort(portName string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %v", err)
	}

	logger.Info("Serial port %s opened at %d bps (8N1)", portName, baudRate)
	return &SerialPort{Port: port, portName: portName}, nil
}

func (p *SerialPort) GetPortName() string {
	return p.portName
}

// ============================================================================
// TCP Port (mock-device simulator or serial-over-TCP bridges)
// ============================================================================

// TCPPort wraps a TCP connection as a Port.
type TCPPort struct {
	conn    net.Conn
	address string
}

var _ Port = (*TCPPort)(nil)

func openTCPPort(address string) (Port, error) {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", address, err)
	}

	logger.Info("Connected to %s (TCP)", address)
	return &TCPPort{conn: conn, address: address}, nil
}

func (t *TCPPort) Read(p []byte) (n int, err error) {
	t.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	n, err = t.conn.Read(p)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return n, nil // Timeout is expected
	}
	return n, err
}

func (t *TCPPort) Write(p []byte) (n int, err error) {
	return t.conn.Write(p)
}

func (t *TCPPort) Close() error {
	return t.conn.Close()
}

func (t *TCPPort) ResetInputBuffer() error {
	buf := make([]byte, 1024)
	t.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	for {
		n, _ := t.conn.Read(buf)
		if n == 0 {
			break
		}
	}
	return nil
}

func (t *TCPPort) GetAddress() string {
	return t.address
}

// ============================================================================
// Unified Open Function
// ============================================================================

// OpenPort opens a device path - either a physical serial port or a TCP
// endpoint in the form "tcp://host:port" (used to drive the mock-device
// simulator without hardware).
func OpenPort(path string, baudRate int) (Port, error) {
	if strings.HasPrefix(path, "tcp://") {
		addr := strings.TrimPrefix(path, "tcp://")
		return openTCPPort(addr)
	}
	return openSerialPort(path, baudRate)
}
