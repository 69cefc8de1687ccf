package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/beaver-engine/internal/config"
)

const sampleConfig = `
net:
  listen: "127.0.0.1:9700"
  publish: "127.0.0.1:9701"
  watermark: 64
core:
  protocol: 2
  history_depth: 32
manifest:
  name: sample-app
profile:
  pool_ceiling: 4
  startup_timeout: "5s"
  heartbeat_timeout: "1m30s"
signing:
  token_ttl: "60s"
relinker:
  interval: "10s"
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))
	return path
}

func TestBuildCLI_CommandTree(t *testing.T) {
	root := BuildCLI()
	assert.Equal(t, "enginehostd", root.Use)
	assert.Equal(t, "1.0.0", root.Version)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["status"])
	assert.True(t, names["reload"])
	assert.True(t, names["purge"])

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "configs/default.yaml", flag.DefValue)
}

func TestStatusCommand_RendersLiveCounters(t *testing.T) {
	configFile = writeSampleConfig(t)
	defer func() { configFile = "configs/default.yaml" }()

	origFetch := fetchStats
	fetchStats = func(cfg *config.Config) (map[string]interface{}, error) {
		return map[string]interface{}{
			"engines":  map[string]interface{}{"total": 3, "alive": 1},
			"threads":  map[string]interface{}{"total": 7, "alive": 2},
			"requests": map[string]interface{}{"total": 40, "alive": 0},
		}, nil
	}
	defer func() { fetchStats = origFetch }()

	root := BuildCLI()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"status", "-c", configFile})
	require.NoError(t, root.Execute())

	g := goldie.New(t)
	g.Assert(t, "status_output", buf.Bytes())
}

func TestStatusCommand_ReportsUnreachableEngineHost(t *testing.T) {
	configFile = writeSampleConfig(t)
	defer func() { configFile = "configs/default.yaml" }()

	root := BuildCLI()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"status", "-c", configFile})
	require.NoError(t, root.Execute())

	assert.Contains(t, buf.String(), "not reachable")
}

func TestReloadCommand_SignalsPidInFile(t *testing.T) {
	path := writeSampleConfig(t)
	configFile = path
	defer func() { configFile = "configs/default.yaml" }()

	origPidFile := pidFilePath
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	pidFilePath = func(*config.Config) string { return pidPath }
	defer func() { pidFilePath = origPidFile }()

	require.NoError(t, os.WriteFile(pidPath, []byte("999999999"), 0o644))

	root := BuildCLI()
	root.SetArgs([]string{"reload", "-c", configFile})
	err := root.Execute()
	require.Error(t, err, "signalling a nonexistent pid should surface an error, not panic")
}

func TestConfigLoad_ViaConfigPackage(t *testing.T) {
	path := writeSampleConfig(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9700", cfg.Net.Listen)
	assert.Equal(t, 4, cfg.Profile.PoolCeiling)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Profile.StartupTimeout))
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Profile.HeartbeatTimeout))
	assert.Equal(t, 60*time.Second, time.Duration(cfg.Signing.TokenTTL))
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Relinker.Interval))
}

func TestConfigLoad_RejectsMalformedDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile:\n  startup_timeout: \"not-a-duration\"\n"), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}
