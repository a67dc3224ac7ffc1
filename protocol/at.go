package protocol

import (
	"fmt"
	"strings"
	"unicode"
)

// Line discipline: the RIA accepts commands terminated by a bare carriage
// return. No line feed is sent. Responses come back CRLF-terminated.
const (
	CR = "\r"
	LF = "\n"
)

// Final result codes and status values the firmware reports. The harness
// never branches on these; they exist for display labeling only.
const (
	RespOK    = "OK"
	RespError = "ERROR"

	StatusOnHook    = "ON_HOOK"
	StatusConnected = "CONNECTED"
)

// Fixed commands (no parameters)
const (
	CmdLiveness    = "AT"
	CmdEchoOff     = "ATE0"
	CmdQueryIP     = "AT+CIFSR"
	CmdQueryStatus = "AT+CIPSTATUS?"
	CmdClose       = "AT+CIPCLOSE"
)

// ============================================================================
// Command Builders
// ============================================================================

// SetWifiMode builds AT+CWMODE. Mode 3 = station + AP.
func SetWifiMode(mode int) string {
	return fmt.Sprintf("AT+CWMODE=%d", mode)
}

// JoinAP builds AT+CWJAP with quoted SSID and password.
func JoinAP(ssid, password string) string {
	return fmt.Sprintf(`AT+CWJAP="%s","%s"`, ssid, password)
}

// SetMux builds AT+CIPMUX. The harness always runs single-connection (0).
func SetMux(enabled bool) string {
	return fmt.Sprintf("AT+CIPMUX=%d", boolInt(enabled))
}

// SetTransparent builds AT+CIPMODE. 0 = normal transmission mode.
func SetTransparent(enabled bool) string {
	return fmt.Sprintf("AT+CIPMODE=%d", boolInt(enabled))
}

// Start builds the short CIPSTART form: AT+CIPSTART="host",port
func Start(host string, port int) string {
	return fmt.Sprintf(`AT+CIPSTART="%s",%d`, host, port)
}

// StartTCP builds the explicit-protocol CIPSTART form:
// AT+CIPSTART="TCP","host",port
func StartTCP(host string, port int) string {
	return fmt.Sprintf(`AT+CIPSTART="TCP","%s",%d`, host, port)
}

// SendQuoted builds the quoted-string send form. The text is passed through
// verbatim; escape sequences like \n are interpreted by the firmware, so the
// caller supplies them as literal backslash sequences.
func SendQuoted(text string) string {
	return fmt.Sprintf(`AT+CIPSEND="%s"`, text)
}

// SendLength builds the length-prompt send form. The firmware then expects
// exactly n raw payload bytes to follow.
func SendLength(n int) string {
	return fmt.Sprintf("AT+CIPSEND=%d", n)
}

// RecvData builds AT+CIPRECVDATA, requesting up to max buffered bytes.
func RecvData(max int) string {
	return fmt.Sprintf("AT+CIPRECVDATA=%d", max)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// Response Handling
// ============================================================================

// DecodeASCII decodes a raw response buffer as 7-bit ASCII, substituting the
// Unicode replacement character for any byte outside the ASCII range. It
// never fails on malformed input.
func DecodeASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
		} else {
			sb.WriteRune(unicode.ReplacementChar)
		}
	}
	return sb.String()
}

// Classify returns a short human label for a decoded response, or "" when
// nothing recognizable is present. Labeling only — the session driver never
// consults it to decide what to do next.
func Classify(resp string) string {
	switch {
	case strings.Contains(resp, StatusConnected):
		return "status: connected"
	case strings.Contains(resp, StatusOnHook):
		return "status: on-hook"
	case strings.Contains(resp, RespError):
		return "error"
	case strings.Contains(resp, RespOK):
		return "ok"
	}
	return ""
}
