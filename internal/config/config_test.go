// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestLoader(path string) *Loader {
	l := NewLoader(path, "test")
	l.numCPU = func() int { return 8 }
	return l
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := newTestLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultWatchdogTimeout, cfg.Pipeline.WatchdogTimeout)
	assert.Equal(t, DefaultPollInterval, cfg.Pipeline.PollInterval)
	assert.Equal(t, DefaultHangPolls, cfg.Pipeline.HangPolls)
	assert.Equal(t, 8, cfg.Pipeline.CPUCount)
	assert.Equal(t, DefaultPresetsPath, cfg.Presets.Path)
	assert.False(t, cfg.Pipeline.Quirks.ForceSquarePixels)
	assert.Empty(t, cfg.Pipeline.Quirks.FlipPAREncoders)
	require.NoError(t, Validate(cfg))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
log:
  level: debug
pipeline:
  watchdog_timeout: 5s
  poll_interval: 250ms
  hang_polls: 40
  cpu_count: 3
  quirks:
    flip_par_encoders: [xvidenc]
    force_square_pixels: true
presets:
  path: /etc/passforge/presets.yaml
  watch: true
metrics:
  listen: "127.0.0.1:9464"
`)

	cfg, err := newTestLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.WatchdogTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.PollInterval)
	assert.Equal(t, 40, cfg.Pipeline.HangPolls)
	assert.Equal(t, 3, cfg.Pipeline.CPUCount)
	assert.Equal(t, []string{"xvidenc"}, cfg.Pipeline.Quirks.FlipPAREncoders)
	assert.True(t, cfg.Pipeline.Quirks.ForceSquarePixels)
	assert.Equal(t, "/etc/passforge/presets.yaml", cfg.Presets.Path)
	assert.True(t, cfg.Presets.Watch)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
	require.NoError(t, Validate(cfg))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yml", "pipeline:\n  hang_polls: 40\n")
	t.Setenv(EnvHangPolls, "7")
	t.Setenv(EnvWatchdogTimeout, "2s")
	t.Setenv(EnvFlipPAREncoders, "xvidenc, ,legacyenc")

	cfg, err := newTestLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Pipeline.HangPolls)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.WatchdogTimeout)
	assert.Equal(t, []string{"xvidenc", "legacyenc"}, cfg.Pipeline.Quirks.FlipPAREncoders)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv(EnvHangPolls, "many")
	t.Setenv(EnvPollInterval, "soon")

	cfg, err := newTestLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultHangPolls, cfg.Pipeline.HangPolls)
	assert.Equal(t, DefaultPollInterval, cfg.Pipeline.PollInterval)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "config.yaml", "pipeline:\n  watchdog: 5s\n")

	_, err := newTestLoader(path).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "config.yaml", "log:\n  level: info\n---\nlog:\n  level: debug\n")

	_, err := newTestLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1\n")

	_, err := newTestLoader(path).Load()
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "")

	cfg, err := newTestLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultHangPolls, cfg.Pipeline.HangPolls)
}

func TestLoad_CPUFallbackIsOne(t *testing.T) {
	l := NewLoader("", "test")
	l.numCPU = func() int { return 0 }

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Pipeline.CPUCount)
}

func TestValidate_Rejects(t *testing.T) {
	cfg, err := newTestLoader("").Load()
	require.NoError(t, err)

	cfg.LogLevel = "chatty"
	cfg.Pipeline.HangPolls = 0
	cfg.Pipeline.WatchdogTimeout = time.Millisecond
	cfg.Metrics.Listen = "nohost"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "zipkin"

	err = Validate(cfg)
	require.Error(t, err)
	for _, field := range []string{"LogLevel", "HangPolls", "WatchdogTimeout", "Metrics.Listen", "Telemetry.Exporter", "Telemetry.Endpoint"} {
		assert.Contains(t, err.Error(), field)
	}
}
