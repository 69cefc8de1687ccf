package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/beaver-engine/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ParsesDurationStrings(t *testing.T) {
	path := writeConfig(t, `
profile:
  startup_timeout: "5s"
  heartbeat_timeout: "1m30s"
signing:
  token_ttl: "2h"
relinker:
  interval: "45s"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, time.Duration(cfg.Profile.StartupTimeout))
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Profile.HeartbeatTimeout))
	assert.Equal(t, 2*time.Hour, time.Duration(cfg.Signing.TokenTTL))
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Relinker.Interval))
}

func TestLoad_MissingDurationDefaultsToZero(t *testing.T) {
	path := writeConfig(t, "manifest:\n  name: app\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), time.Duration(cfg.Profile.StartupTimeout))
}

func TestLoad_RejectsUnparsableDuration(t *testing.T) {
	path := writeConfig(t, "profile:\n  startup_timeout: \"soon\"\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_ParsesResourceLimits(t *testing.T) {
	path := writeConfig(t, "profile:\n  limits:\n    memory_mb: 128\n    cpu_shares: 256\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Profile.Limits.MemoryMB)
	assert.Equal(t, 256, cfg.Profile.Limits.CPUShares)
}
