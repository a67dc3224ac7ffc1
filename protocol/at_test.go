package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandBuilders(t *testing.T) {
	assert.Equal(t, "AT+CWMODE=3", SetWifiMode(3))
	assert.Equal(t, `AT+CWJAP="lab","secret"`, JoinAP("lab", "secret"))
	assert.Equal(t, "AT+CIPMUX=0", SetMux(false))
	assert.Equal(t, "AT+CIPMUX=1", SetMux(true))
	assert.Equal(t, "AT+CIPMODE=0", SetTransparent(false))
	assert.Equal(t, `AT+CIPSTART="tcpbin.com",4242`, Start("tcpbin.com", 4242))
	assert.Equal(t, `AT+CIPSTART="TCP","192.168.10.250",8080`, StartTCP("192.168.10.250", 8080))
	assert.Equal(t, `AT+CIPSEND="Hello from RP6502\n"`, SendQuoted(`Hello from RP6502\n`))
	assert.Equal(t, "AT+CIPSEND=10", SendLength(10))
	assert.Equal(t, "AT+CIPRECVDATA=50", RecvData(50))
}

func TestDecodeASCIIPassthrough(t *testing.T) {
	assert.Equal(t, "OK\r\n", DecodeASCII([]byte("OK\r\n")))
	assert.Equal(t, "", DecodeASCII(nil))
}

func TestDecodeASCIINeverFailsOnNonASCII(t *testing.T) {
	got := DecodeASCII([]byte{'O', 'K', 0xFF, '\r', '\n'})
	assert.Equal(t, "OK�\r\n", got,
		"a non-ASCII byte becomes a placeholder in place, never an error")

	got = DecodeASCII([]byte{0x80, 0xFE, 0xFF})
	assert.Equal(t, "���", got)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "ok", Classify("OK\r\n"))
	assert.Equal(t, "error", Classify("ERROR\r\n"))
	assert.Equal(t, "status: on-hook", Classify("STATUS: ON_HOOK\r\n\r\nOK\r\n"))
	assert.Equal(t, "status: connected", Classify("STATUS: CONNECTED\r\n\r\nOK\r\n"))
	assert.Equal(t, "", Classify("garbage"))
	assert.Equal(t, "", Classify(""))
}
