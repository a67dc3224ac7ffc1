package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// Presets name the two session scripts. "public" goes straight to a public
// TCP echo service; "local" joins a wireless network first and targets a
// server on the local segment.
const (
	PresetPublic = "public"
	PresetLocal  = "local"
)

// Session payload defaults. SendText is the quoted-mode payload: the \n is a
// literal backslash sequence on the wire, interpreted by the firmware.
// Payload is the length-prompt payload, sent byte-for-byte.
const (
	DefaultSendText = `Hello from RP6502\n`
	DefaultPayload  = "TEST12345\n"
	DefaultRecvCap  = 50
)

// Config is everything the session driver needs. Credentials and the TCP
// target live here, never as literals inside the script builders.
type Config struct {
	Port     string // serial device path or tcp://host:port
	BaudRate int
	Preset   string

	SSID     string
	Password string

	Host       string // TCP target host
	TargetPort int    // TCP target port

	SendText string
	Payload  []byte
	RecvCap  int

	WSAddr string // live trace monitor address, "" = disabled
	Scan   bool   // probe candidate ports and exit
}

// FromPreset returns the defaults for a named preset.
func FromPreset(name string) (*Config, error) {
	cfg := &Config{
		BaudRate: 115200,
		Preset:   name,
		SendText: DefaultSendText,
		Payload:  []byte(DefaultPayload),
		RecvCap:  DefaultRecvCap,
	}

	switch name {
	case PresetPublic:
		cfg.Host = "tcpbin.com"
		cfg.TargetPort = 4242
	case PresetLocal:
		cfg.Port = "/dev/ttyACM0"
		cfg.Host = "192.168.10.250"
		cfg.TargetPort = 8080
	default:
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	return cfg, nil
}

// Load builds the configuration from flags, an optional INI file, the
// environment and the positional serial port argument, in that order of
// increasing precedence.
func Load() (*Config, error) {
	preset := flag.String("preset", PresetPublic, `session preset: "public" or "local"`)
	iniPath := flag.String("config", "", "INI file with serial, wifi and target settings")
	baud := flag.Int("baud", 115200, "serial baud rate")
	target := flag.String("target", "", "override the TCP target as host:port")
	ssid := flag.String("ssid", "", "wireless network name (local preset)")
	password := flag.String("password", "", "wireless network credential (local preset)")
	recvCap := flag.Int("recv-cap", DefaultRecvCap, "byte cap for AT+CIPRECVDATA")
	wsAddr := flag.String("ws", "", "serve the live trace monitor on this address (e.g. :8989)")
	scan := flag.Bool("scan", false, "probe candidate serial ports for the device and exit")
	flag.Usage = Usage
	flag.Parse()

	cfg, err := FromPreset(*preset)
	if err != nil {
		return nil, err
	}
	cfg.BaudRate = *baud
	cfg.RecvCap = *recvCap
	cfg.WSAddr = *wsAddr
	cfg.Scan = *scan

	if *iniPath != "" {
		if err := cfg.MergeINI(*iniPath); err != nil {
			return nil, err
		}
	}

	if *ssid != "" {
		cfg.SSID = *ssid
	}
	if *password != "" {
		cfg.Password = *password
	}
	if *target != "" {
		if err := cfg.setTarget(*target); err != nil {
			return nil, err
		}
	}

	// Environment override, then the positional argument wins
	if envPort := os.Getenv("RP6502_SERIAL_PORT"); envPort != "" {
		cfg.Port = envPort
	}
	if flag.NArg() > 0 {
		cfg.Port = flag.Arg(0)
	}

	return cfg, nil
}

// MergeINI overlays settings from an INI file. Missing sections and keys
// leave the current values untouched.
func (c *Config) MergeINI(path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %v", path, err)
	}

	serial := f.Section("serial")
	if v := serial.Key("port").String(); v != "" {
		c.Port = v
	}
	c.BaudRate = serial.Key("baud").MustInt(c.BaudRate)

	wifi := f.Section("wifi")
	if v := wifi.Key("ssid").String(); v != "" {
		c.SSID = v
	}
	if v := wifi.Key("password").String(); v != "" {
		c.Password = v
	}

	target := f.Section("target")
	if v := target.Key("host").String(); v != "" {
		c.Host = v
	}
	c.TargetPort = target.Key("port").MustInt(c.TargetPort)

	session := f.Section("session")
	if v := session.Key("send_text").String(); v != "" {
		c.SendText = v
	}
	c.RecvCap = session.Key("recv_cap").MustInt(c.RecvCap)

	return nil
}

func (c *Config) setTarget(hostport string) error {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return fmt.Errorf("bad -target %q: %v", hostport, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("bad -target port %q: %v", portStr, err)
	}
	c.Host = host
	c.TargetPort = port
	return nil
}

// Validate checks that the configuration is runnable. A missing serial port
// is the one user-facing failure: main prints usage and exits non-zero
// without opening anything.
func (c *Config) Validate() error {
	if c.Scan {
		return nil
	}
	if c.Port == "" {
		return errors.New("no serial port given")
	}
	if c.Preset == PresetLocal && c.SSID == "" {
		return errors.New(`the "local" preset needs a wifi ssid (-ssid or config file)`)
	}
	return nil
}

// Usage prints the CLI usage to standard output.
func Usage() {
	fmt.Printf("Usage: %s [options] <serial-port>\n", os.Args[0])
	fmt.Println("Example: attest -preset public /dev/ttyACM0")
	fmt.Println()
	fmt.Println("Options:")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}
