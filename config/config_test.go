package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPresetPublic(t *testing.T) {
	cfg, err := FromPreset(PresetPublic)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Port, "public preset takes the port from the CLI")
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, "tcpbin.com", cfg.Host)
	assert.Equal(t, 4242, cfg.TargetPort)
	assert.Equal(t, []byte("TEST12345\n"), cfg.Payload)
	assert.Equal(t, DefaultRecvCap, cfg.RecvCap)
}

func TestFromPresetLocal(t *testing.T) {
	cfg, err := FromPreset(PresetLocal)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Port, "local preset carries a default device path")
	assert.Equal(t, "192.168.10.250", cfg.Host)
	assert.Equal(t, 8080, cfg.TargetPort)
}

func TestFromPresetUnknown(t *testing.T) {
	_, err := FromPreset("bogus")
	assert.Error(t, err)
}

func TestValidateRequiresPort(t *testing.T) {
	cfg, err := FromPreset(PresetPublic)
	require.NoError(t, err)

	// No port: the run must fail before any connection is attempted.
	assert.Error(t, cfg.Validate())

	cfg.Port = "/dev/ttyACM0"
	assert.NoError(t, cfg.Validate())
}

func TestValidateLocalNeedsSSID(t *testing.T) {
	cfg, err := FromPreset(PresetLocal)
	require.NoError(t, err)

	assert.Error(t, cfg.Validate())

	cfg.SSID = "lab"
	assert.NoError(t, cfg.Validate())
}

func TestValidateScanSkipsPortCheck(t *testing.T) {
	cfg, err := FromPreset(PresetPublic)
	require.NoError(t, err)
	cfg.Scan = true

	assert.NoError(t, cfg.Validate())
}

func TestMergeINI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attest.ini")
	content := `[serial]
port = /dev/ttyACM1
baud = 230400

[wifi]
ssid = lab
password = hunter2

[target]
host = 192.0.2.7
port = 9000

[session]
recv_cap = 128
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := FromPreset(PresetLocal)
	require.NoError(t, err)
	require.NoError(t, cfg.MergeINI(path))

	assert.Equal(t, "/dev/ttyACM1", cfg.Port)
	assert.Equal(t, 230400, cfg.BaudRate)
	assert.Equal(t, "lab", cfg.SSID)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "192.0.2.7", cfg.Host)
	assert.Equal(t, 9000, cfg.TargetPort)
	assert.Equal(t, 128, cfg.RecvCap)
}

func TestMergeINIPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attest.ini")
	require.NoError(t, os.WriteFile(path, []byte("[wifi]\nssid = lab\n"), 0644))

	cfg, err := FromPreset(PresetLocal)
	require.NoError(t, err)
	require.NoError(t, cfg.MergeINI(path))

	assert.Equal(t, "lab", cfg.SSID)
	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 8080, cfg.TargetPort)
}

func TestMergeINIMissingFile(t *testing.T) {
	cfg, err := FromPreset(PresetPublic)
	require.NoError(t, err)
	assert.Error(t, cfg.MergeINI("/nonexistent/attest.ini"))
}

func TestSetTarget(t *testing.T) {
	cfg, err := FromPreset(PresetPublic)
	require.NoError(t, err)

	require.NoError(t, cfg.setTarget("example.com:4242"))
	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 4242, cfg.TargetPort)

	assert.Error(t, cfg.setTarget("no-port-here"))
}
