package driver

import (
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"

	"rp6502-attest/logger"
	"rp6502-attest/protocol"
)

// Scanner probes candidate serial ports for a device that answers a bare AT
// liveness command. Convenience for developers who do not know which device
// node the RP6502 enumerated as.
type Scanner struct {
	BaudRate int
}

func NewScanner(baudRate int) *Scanner {
	return &Scanner{BaudRate: baudRate}
}

// Scan probes each candidate port in turn and returns the first one that
// answered, or ok=false when nothing responded.
func (s *Scanner) Scan() (portName string, ok bool) {
	ports := s.Discover()
	if len(ports) == 0 {
		logger.Info("No candidate ports found")
		return "", false
	}

	logger.Debug("Found %d candidate ports: %v", len(ports), ports)

	for _, name := range ports {
		logger.Debug("Probing port: %s", name)
		if s.Probe(name) {
			logger.Info("Device found on %s", name)
			return name, true
		}
	}

	logger.Info("No device answered in this scan")
	return "", false
}

// Discover lists candidate ports: hardware serial ports plus the
// mock-device simulator's default TCP endpoint.
func (s *Scanner) Discover() []string {
	var ports []string

	hwPorts, err := serial.GetPortsList()
	if err != nil {
		logger.Error("Failed to list serial ports: %v", err)
	} else {
		ports = append(ports, hwPorts...)
	}

	ports = append(ports, "tcp://localhost:6502")

	return filterPorts(ports)
}

// filterPorts filters candidates by OS naming conventions. The RP6502
// enumerates as a USB CDC device (ttyACM on Linux).
func filterPorts(ports []string) []string {
	var filtered []string
	seen := make(map[string]bool)

	for _, port := range ports {
		if seen[port] {
			continue
		}
		seen[port] = true

		if strings.HasPrefix(port, "tcp://") {
			filtered = append(filtered, port)
			continue
		}

		if runtime.GOOS == "windows" {
			if strings.HasPrefix(strings.ToUpper(port), "COM") {
				filtered = append(filtered, port)
			}
			continue
		}

		lower := strings.ToLower(port)
		if strings.Contains(lower, "bluetooth") {
			continue
		}

		if strings.Contains(lower, "ttyacm") ||
			strings.Contains(lower, "ttyusb") ||
			strings.Contains(lower, "usbmodem") ||
			strings.Contains(lower, "usbserial") ||
			strings.Contains(lower, "cu.") {
			filtered = append(filtered, port)
		}
	}

	return filtered
}

// Probe opens a port, sends a bare AT, and reports whether anything that
// looks like a final OK came back.
func (s *Scanner) Probe(portName string) bool {
	port, err := OpenPort(portName, s.BaudRate)
	if err != nil {
		logger.Debug("Failed to open %s: %v", portName, err)
		return false
	}
	defer port.Close()

	port.ResetInputBuffer()

	sess := NewSession(port, func(dir, text string) {
		logger.Debug("probe %s %s", dir, strings.TrimSpace(text))
	})

	resp, err := sess.SendCommand(protocol.CmdLiveness, 300*time.Millisecond)
	if err != nil {
		logger.Debug("Probe failed on %s: %v", portName, err)
		return false
	}

	return protocol.Classify(resp) == "ok"
}
