package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REQPAD_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8199", cfg.BindAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 300, cfg.CacheTTLSeconds)
	assert.Equal(t, 100, cfg.CacheCapacity)
	assert.Equal(t, []int{80, 443}, cfg.AllowedPorts)
	assert.Equal(t, int64(2*1024*1024), cfg.PreviewCapBytes)
	assert.Equal(t, float64(0), cfg.SendRPS)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.HistoryPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REQPAD_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yml"))
	t.Setenv("REQPAD_BIND_ADDR", "0.0.0.0:9000")
	t.Setenv("REQPAD_LOG_LEVEL", "DEBUG")
	t.Setenv("REQPAD_ALLOWED_PORTS", "80, 443, 8443")
	t.Setenv("REQPAD_SEND_RPS", "2.5")
	t.Setenv("REQPAD_CACHE_CAPACITY", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.BindAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []int{80, 443, 8443}, cfg.AllowedPorts)
	assert.Equal(t, 2.5, cfg.SendRPS)
	assert.Equal(t, 10, cfg.CacheCapacity)
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reqpad.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"bind_addr: 127.0.0.1:7777\nallowed_ports: [80, 443, 9090]\nmax_upload_mb: 5\n",
	), 0o644))

	t.Setenv("REQPAD_CONFIG_FILE", path)
	t.Setenv("REQPAD_BIND_ADDR", "127.0.0.1:8199")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7777", cfg.BindAddr)
	assert.Equal(t, []int{80, 443, 9090}, cfg.AllowedPorts)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadBytes)
	// Settings absent from the file keep their env/default values.
	assert.Equal(t, 300, cfg.CacheTTLSeconds)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reqpad.yml")
	require.NoError(t, os.WriteFile(path, []byte("allowed_ports: {broken"), 0o644))

	t.Setenv("REQPAD_CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
}

func TestParsePorts(t *testing.T) {
	assert.Equal(t, []int{80, 443}, parsePorts("80,443"))
	assert.Equal(t, []int{8080}, parsePorts(" 8080 , junk, -1, 70000"))
	assert.Nil(t, parsePorts(""))
}

func TestWatch_ReloadsPorts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reqpad.yml")
	require.NoError(t, os.WriteFile(path, []byte("allowed_ports: [80, 443]\n"), 0o644))

	got := make(chan []int, 1)
	stop, err := Watch(path, func(ports []int) {
		got <- ports
	})
	require.NoError(t, err)
	defer func() { _ = stop() }()

	require.NoError(t, os.WriteFile(path, []byte("allowed_ports: [80, 443, 8443]\n"), 0o644))

	select {
	case ports := <-got:
		assert.Equal(t, []int{80, 443, 8443}, ports)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload was not observed")
	}
}
