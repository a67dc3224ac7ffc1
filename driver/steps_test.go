package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() ScriptParams {
	return ScriptParams{
		SSID:     "lab",
		Password: "secret",
		Host:     "192.0.2.10",
		Port:     8080,
		SendText: `Hello from RP6502\n`,
		Payload:  []byte("TEST12345\n"),
		RecvCap:  50,
	}
}

func commandsOf(steps []Step) []string {
	var cmds []string
	for _, st := range steps {
		if st.Command != "" {
			cmds = append(cmds, st.Command)
		}
	}
	return cmds
}

func TestPublicEchoScriptSequence(t *testing.T) {
	steps := PublicEchoScript(testParams())

	assert.Equal(t, []string{
		"AT",
		"AT+CIPSTATUS?",
		`AT+CIPSTART="192.0.2.10",8080`,
		"AT+CIPSTATUS?",
		`AT+CIPSEND="Hello from RP6502\n"`,
		"AT+CIPSEND=10",
		"AT+CIPRECVDATA=50",
		"AT+CIPCLOSE",
		"AT+CIPSTATUS?",
	}, commandsOf(steps))
}

func TestLocalEchoScriptSequence(t *testing.T) {
	steps := LocalEchoScript(testParams())

	assert.Equal(t, []string{
		"AT",
		"ATE0",
		"AT+CWMODE=3",
		`AT+CWJAP="lab","secret"`,
		"AT+CIFSR",
		"AT+CIPMUX=0",
		"AT+CIPMODE=0",
		`AT+CIPSTART="TCP","192.0.2.10",8080`,
		"AT+CIPSTATUS?",
		"AT+CIPSTATUS?",
		`AT+CIPSEND="Hello from RP6502\n"`,
		"AT+CIPSEND=10",
		"AT+CIPRECVDATA=50",
		"AT+CIPCLOSE",
		"AT+CIPSTATUS?",
	}, commandsOf(steps))
}

func TestScriptTimingAndPayload(t *testing.T) {
	steps := PublicEchoScript(testParams())

	var connect, lengthSend, closeStep *Step
	var pause *Step
	for i := range steps {
		st := &steps[i]
		switch {
		case st.Command == `AT+CIPSTART="192.0.2.10",8080`:
			connect = st
		case st.Command == "AT+CIPSEND=10":
			lengthSend = st
		case st.Command == "AT+CIPCLOSE":
			closeStep = st
		case st.Command == "" && st.Pause > 0:
			pause = st
		}
	}

	require.NotNil(t, connect)
	assert.Equal(t, 3*time.Second, connect.Wait, "network connect gets the long wait")

	require.NotNil(t, lengthSend)
	assert.Equal(t, 200*time.Millisecond, lengthSend.Wait)
	assert.Equal(t, []byte("TEST12345\n"), lengthSend.Payload)
	assert.True(t, lengthSend.PollEcho)
	assert.Equal(t, 10, len(lengthSend.Payload),
		"declared byte count must match the payload exactly")

	require.NotNil(t, pause)
	assert.Equal(t, 1500*time.Millisecond, pause.Pause, "echo round-trip window")

	require.NotNil(t, closeStep)
	assert.Equal(t, 1*time.Second, closeStep.Wait)
}

func TestScriptsShareTheSameTail(t *testing.T) {
	public := commandsOf(PublicEchoScript(testParams()))
	local := commandsOf(LocalEchoScript(testParams()))

	// Everything from the post-connect status check onward is identical.
	tail := public[len(public)-6:]
	assert.Equal(t, tail, local[len(local)-6:])
}
