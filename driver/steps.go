package driver

import (
	"fmt"
	"time"

	"rp6502-attest/protocol"
)

// Step is one entry in the scripted session: a command with its settle wait,
// an optional raw payload that follows it, or a bare pause. Steps are fixed
// data; nothing mutates them after construction.
type Step struct {
	Command string        // AT command without trailing CR; "" for a bare pause
	Wait    time.Duration // settle time after sending Command (0 = DefaultWait)

	Payload     []byte        // raw bytes written after the command (length-prompt send)
	PayloadWait time.Duration // settle time after the payload write
	PollEcho    bool          // poll-drain an immediate echo after the payload

	Pause time.Duration // bare wait with no command (echo round-trip window)
}

// Run executes the steps strictly in order. No step starts until the
// previous step's drain, including its wait, has completed.
func (s *Session) Run(steps []Step) error {
	for i, st := range steps {
		if st.Command != "" {
			if _, err := s.SendCommand(st.Command, st.Wait); err != nil {
				return fmt.Errorf("step %d: %v", i+1, err)
			}
		}
		if len(st.Payload) > 0 {
			if err := s.RawWrite(st.Payload); err != nil {
				return fmt.Errorf("step %d: %v", i+1, err)
			}
			wait := st.PayloadWait
			if wait <= 0 {
				wait = DefaultWait
			}
			time.Sleep(wait)
			if st.PollEcho {
				if err := s.PollDrain(); err != nil {
					return fmt.Errorf("step %d: %v", i+1, err)
				}
			}
		}
		if st.Pause > 0 {
			time.Sleep(st.Pause)
		}
	}
	return nil
}

// ScriptParams carries the substitutable parts of a session script. Network
// credentials and the target endpoint come from configuration, never from
// literals embedded in the script builders.
type ScriptParams struct {
	SSID     string
	Password string
	Host     string
	Port     int

	SendText string // quoted-mode payload, escapes left for the firmware
	Payload  []byte // length-prompt payload, sent byte-for-byte
	RecvCap  int    // byte cap for CIPRECVDATA
}

// PublicEchoScript is the "public" preset: liveness check, then straight to
// a TCP echo service (e.g. tcpbin.com:4242) using the short CIPSTART form.
// Wi-Fi is assumed to be already configured on the device.
func PublicEchoScript(p ScriptParams) []Step {
	steps := []Step{
		{Command: protocol.CmdLiveness},
		{Command: protocol.CmdQueryStatus}, // expected: ON_HOOK
		{Command: protocol.Start(p.Host, p.Port), Wait: 3 * time.Second},
	}
	return append(steps, echoTail(p)...)
}

// LocalEchoScript is the "local" preset: disable echo, join the configured
// wireless network, then connect to a TCP server on the local segment using
// the explicit-protocol CIPSTART form.
func LocalEchoScript(p ScriptParams) []Step {
	steps := []Step{
		{Command: protocol.CmdLiveness},
		{Command: protocol.CmdEchoOff},
		{Command: protocol.SetWifiMode(3)},
		{Command: protocol.JoinAP(p.SSID, p.Password)},
		{Command: protocol.CmdQueryIP},
		{Command: protocol.SetMux(false)},
		{Command: protocol.SetTransparent(false)},
		{Command: protocol.StartTCP(p.Host, p.Port), Wait: 3 * time.Second},
		{Command: protocol.CmdQueryStatus},
	}
	return append(steps, echoTail(p)...)
}

// echoTail is the shared back half of both presets, from the post-connect
// status check through teardown.
func echoTail(p ScriptParams) []Step {
	return []Step{
		{Command: protocol.CmdQueryStatus}, // expected: CONNECTED
		{Command: protocol.SendQuoted(p.SendText)},
		{
			Command:  protocol.SendLength(len(p.Payload)),
			Wait:     200 * time.Millisecond,
			Payload:  p.Payload,
			PollEcho: true,
		},
		{Pause: 1500 * time.Millisecond}, // allow the remote echo to round-trip
		{Command: protocol.RecvData(p.RecvCap)},
		{Command: protocol.CmdClose, Wait: 1 * time.Second},
		{Command: protocol.CmdQueryStatus}, // expected: back to ON_HOOK
	}
}
