package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, "http://localhost:4040", cfg.Telemetry.Profiling.Endpoint)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)

	assert.Equal(t, []string{"./templates"}, cfg.Templates.Paths)
	assert.Equal(t, []string{".html", ".tmpl"}, cfg.Templates.Extensions)
	assert.True(t, cfg.Templates.WatchEnabled())
	assert.Equal(t, 100*time.Millisecond, cfg.Templates.CoalesceWindow)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
server:
  port: 9000
templates:
  paths:
    - /srv/kiln/templates
    - /srv/kiln/overrides
  watch: false
  coalesce_window: 250ms
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Explicit values win, and level is normalized
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"/srv/kiln/templates", "/srv/kiln/overrides"}, cfg.Templates.Paths)
	assert.False(t, cfg.Templates.WatchEnabled())
	assert.Equal(t, 250*time.Millisecond, cfg.Templates.CoalesceWindow)
	assert.True(t, cfg.Metrics.Enabled)

	// Unspecified values fall back to defaults
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)
	t.Setenv("KILN_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadRejectsInvalidLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: TRACE
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRejectsInvalidSampleRate(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  sample_rate: 1.5
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 70000
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiln", "config.yaml")

	original := GetDefaultConfig()
	original.Server.Port = 9999
	require.NoError(t, SaveConfig(original, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
	assert.Equal(t, original.Templates.Paths, loaded.Templates.Paths)
}

func TestMustLoadMissingExplicitFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kiln init")
}

func TestWatchEnabled(t *testing.T) {
	var cfg TemplatesConfig
	assert.True(t, cfg.WatchEnabled())

	off := false
	cfg.Watch = &off
	assert.False(t, cfg.WatchEnabled())

	on := true
	cfg.Watch = &on
	assert.True(t, cfg.WatchEnabled())
}
