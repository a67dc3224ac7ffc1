// Mock RP6502 AT firmware. Listens on TCP so the harness can run against
// tcp://localhost:6502 with no hardware attached. Implements the TCP-client
// AT command set: CIPSTART performs a real outbound dial, CIPSEND forwards
// in both quoted and length-prompt modes, received bytes are buffered for
// CIPRECVDATA.
package main

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const listenAddr = ":6502"

func main() {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		fmt.Println("Failed to start mock device:", err)
		return
	}
	defer listener.Close()

	fmt.Println("=== Mock RP6502 AT Device ===")
	fmt.Println("Listening on TCP", listenAddr)
	fmt.Println("Point the harness at tcp://localhost:6502")

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Println("Accept error:", err)
			continue
		}
		fmt.Println("[MockDev] Harness connected:", conn.RemoteAddr())
		go handleConnection(conn)
	}
}

// device holds the simulated firmware state for one harness connection.
type device struct {
	conn net.Conn // the "serial" side

	mu         sync.Mutex
	echo       bool
	wifiJoined bool
	ssid       string

	tcp        net.Conn // the outbound socket opened by CIPSTART
	recvBuf    bytes.Buffer
	pendingLen int // >0: raw payload bytes still expected after CIPSEND=<n>
	pending    []byte
}

func handleConnection(conn net.Conn) {
	defer conn.Close()

	d := &device{conn: conn, echo: true}
	defer d.closeSocket()

	buf := make([]byte, 1024)
	var accumulator []byte

	for {
		n, err := conn.Read(buf)
		if err != nil {
			fmt.Println("[MockDev] Harness disconnected")
			return
		}

		accumulator = append(accumulator, buf[:n]...)
		accumulator = d.consume(accumulator)
	}
}

// consume processes buffered input: raw payload bytes first when a
// length-prompt send is pending, then CR-terminated commands. Returns the
// unconsumed remainder.
func (d *device) consume(in []byte) []byte {
	for {
		d.mu.Lock()
		pending := d.pendingLen
		d.mu.Unlock()

		if pending > 0 {
			take := pending
			if take > len(in) {
				take = len(in)
			}
			d.mu.Lock()
			d.pending = append(d.pending, in[:take]...)
			d.pendingLen -= take
			done := d.pendingLen == 0
			payload := d.pending
			d.mu.Unlock()
			in = in[take:]

			if done {
				d.finishRawSend(payload)
				d.mu.Lock()
				d.pending = nil
				d.mu.Unlock()
				continue
			}
			return in // need more payload bytes
		}

		// Commands end with CR; tolerate a stray LF after it
		idx := bytes.IndexByte(in, '\r')
		if idx < 0 {
			return in
		}
		cmd := string(in[:idx])
		in = in[idx+1:]
		if len(in) > 0 && in[0] == '\n' {
			in = in[1:]
		}

		if d.echo {
			d.reply(cmd + "\r\n")
		}
		d.dispatch(strings.TrimSpace(cmd))
	}
}

func (d *device) dispatch(cmd string) {
	if cmd == "" {
		return
	}
	fmt.Println("[MockDev] <-", cmd)

	switch {
	case cmd == "AT":
		d.replyOK()
	case cmd == "ATE0":
		d.echo = false
		d.replyOK()
	case cmd == "ATE1":
		d.echo = true
		d.replyOK()
	case strings.HasPrefix(cmd, "AT+CWMODE="):
		d.replyOK()
	case strings.HasPrefix(cmd, "AT+CWJAP="):
		d.handleJoin(cmd)
	case cmd == "AT+CIFSR":
		d.reply("+CIFSR:STAIP,\"192.168.10.77\"\r\n")
		d.replyOK()
	case strings.HasPrefix(cmd, "AT+CIPMUX="),
		strings.HasPrefix(cmd, "AT+CIPMODE="):
		d.replyOK()
	case strings.HasPrefix(cmd, "AT+CIPSTART="):
		d.handleStart(strings.TrimPrefix(cmd, "AT+CIPSTART="))
	case cmd == "AT+CIPSTATUS?":
		d.handleStatus()
	case strings.HasPrefix(cmd, "AT+CIPSEND=\""):
		d.handleQuotedSend(strings.TrimPrefix(cmd, "AT+CIPSEND="))
	case strings.HasPrefix(cmd, "AT+CIPSEND="):
		d.handleLengthSend(strings.TrimPrefix(cmd, "AT+CIPSEND="))
	case strings.HasPrefix(cmd, "AT+CIPRECVDATA="):
		d.handleRecvData(strings.TrimPrefix(cmd, "AT+CIPRECVDATA="))
	case cmd == "AT+CIPCLOSE":
		d.closeSocket()
		d.reply("CLOSED\r\n")
		d.replyOK()
	default:
		d.replyError()
	}
}

func (d *device) handleJoin(cmd string) {
	args := strings.TrimPrefix(cmd, "AT+CWJAP=")
	parts := splitQuoted(args)
	if len(parts) < 2 {
		d.replyError()
		return
	}
	d.mu.Lock()
	d.ssid = parts[0]
	d.wifiJoined = true
	d.mu.Unlock()

	time.Sleep(200 * time.Millisecond) // joining takes a moment
	d.reply("WIFI CONNECTED\r\nWIFI GOT IP\r\n")
	d.replyOK()
}

// handleStart accepts both CIPSTART forms:
//
//	"host",port
//	"TCP","host",port
func (d *device) handleStart(args string) {
	parts := splitQuoted(args)
	var host, portStr string
	switch len(parts) {
	case 2:
		host, portStr = parts[0], parts[1]
	case 3:
		if !strings.EqualFold(parts[0], "TCP") {
			d.replyError()
			return
		}
		host, portStr = parts[1], parts[2]
	default:
		d.replyError()
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		d.replyError()
		return
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 5*time.Second)
	if err != nil {
		fmt.Println("[MockDev] Dial failed:", err)
		d.replyError()
		return
	}

	d.mu.Lock()
	if d.tcp != nil {
		d.tcp.Close()
	}
	d.tcp = conn
	d.recvBuf.Reset()
	d.mu.Unlock()

	go d.pump(conn)

	d.reply("CONNECT\r\n")
	d.replyOK()
}

// pump buffers everything the remote peer sends until the socket closes.
func (d *device) pump(conn net.Conn) {
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			d.mu.Lock()
			d.recvBuf.Write(buf[:n])
			d.mu.Unlock()
		}
		if err != nil {
			d.mu.Lock()
			if d.tcp == conn {
				d.tcp = nil
			}
			d.mu.Unlock()
			return
		}
	}
}

func (d *device) handleStatus() {
	d.mu.Lock()
	connected := d.tcp != nil
	d.mu.Unlock()

	if connected {
		d.reply("STATUS: CONNECTED\r\n")
	} else {
		d.reply("STATUS: ON_HOOK\r\n")
	}
	d.replyOK()
}

func (d *device) handleQuotedSend(arg string) {
	if len(arg) < 2 || arg[0] != '"' || arg[len(arg)-1] != '"' {
		d.replyError()
		return
	}
	payload := unescape(arg[1 : len(arg)-1])
	d.forward([]byte(payload))
}

func (d *device) handleLengthSend(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		d.replyError()
		return
	}
	d.mu.Lock()
	d.pendingLen = n
	d.pending = nil
	d.mu.Unlock()
	d.reply("> ")
}

func (d *device) finishRawSend(payload []byte) {
	d.forward(payload)
}

func (d *device) forward(payload []byte) {
	d.mu.Lock()
	conn := d.tcp
	d.mu.Unlock()

	if conn == nil {
		d.replyError()
		return
	}
	if _, err := conn.Write(payload); err != nil {
		d.replyError()
		return
	}
	d.replyOK()
}

func (d *device) handleRecvData(arg string) {
	max, err := strconv.Atoi(arg)
	if err != nil || max <= 0 {
		d.replyError()
		return
	}

	d.mu.Lock()
	n := d.recvBuf.Len()
	if n > max {
		n = max
	}
	data := make([]byte, n)
	d.recvBuf.Read(data)
	d.mu.Unlock()

	d.reply(fmt.Sprintf("+CIPRECVDATA:%d,%s\r\n", n, data))
	d.replyOK()
}

func (d *device) closeSocket() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tcp != nil {
		d.tcp.Close()
		d.tcp = nil
	}
}

func (d *device) reply(s string) {
	d.conn.Write([]byte(s))
}

func (d *device) replyOK() {
	d.reply("\r\nOK\r\n")
}

func (d *device) replyError() {
	d.reply("\r\nERROR\r\n")
}

// splitQuoted splits comma-separated arguments, stripping surrounding
// quotes: `"TCP","host",80` -> [TCP host 80].
func splitQuoted(args string) []string {
	parts := strings.Split(args, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}

// unescape interprets the backslash sequences allowed in quoted sends.
func unescape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(s[i])
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
