// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/report"
)

const testCatalog = `
presets:
  webm:
    container: webmmux
    vcodec:
      name: vp8enc
      width: {min: 16, max: 1920}
      height: {min: 16, max: 1080}
      rate: {min: 1/1, max: 60/1}
      passes: [multipass-mode=first-pass, multipass-mode=last-pass]
    acodec:
      name: vorbisenc
      passes: [quality=0.4]
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))
	return path
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	f, err := parseFlags([]string{
		"-preset", "webm", "-input", "file:///in.mkv", "-output", "file:///out.webm",
		"-width", "50", "-crop", "8,0,8,0", "-max-duration", "30", "-absolute",
	}, &stderr)
	require.NoError(t, err)

	require.NotNil(t, f.opts.Width)
	assert.Equal(t, 50, *f.opts.Width)
	assert.Nil(t, f.opts.Height)
	assert.Equal(t, &model.Crop{Top: 8, Bottom: 8}, f.opts.Crop)
	assert.Equal(t, 30.0, f.opts.MaxDuration)
	assert.True(t, f.opts.Absolute)
	assert.Equal(t, "ffprobe", f.discovery)
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing preset", []string{"-input", "a", "-output", "b"}},
		{"missing output", []string{"-preset", "webm", "-input", "a"}},
		{"bad crop", []string{"-preset", "webm", "-input", "a", "-output", "b", "-crop", "1,2"}},
		{"bad width", []string{"-preset", "webm", "-input", "a", "-output", "b", "-width", "wide"}},
		{"bad discovery", []string{"-preset", "webm", "-input", "a", "-output", "b", "-discovery", "magic"}},
		{"missing subtitle file", []string{"-preset", "webm", "-input", "a", "-output", "b", "-subtitle-file", "/nonexistent/subs.srt"}},
		{"negative threads", []string{"-preset", "webm", "-input", "a", "-output", "b", "-threads", "-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			_, err := parseFlags(tt.args, &stderr)
			assert.Error(t, err)
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "commit:")
}

func TestRun_UsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), []string{"-input", "x"}, &stdout, &stderr))

	stderr.Reset()
	code := run(context.Background(), []string{
		"-presets", writeCatalog(t), "-preset", "mp4",
		"-input", "file:///in.mkv", "-output", "file:///out.mp4", "-discovery", "stub",
	}, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "Preset error")

	stderr.Reset()
	code = run(context.Background(), []string{
		"-presets", filepath.Join(t.TempDir(), "missing.yaml"), "-preset", "webm",
		"-input", "file:///in.mkv", "-output", "file:///out.webm",
	}, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
}

func TestRun_StubJobWritesReport(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "job.json")
	var stdout, stderr bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	code := run(ctx, []string{
		"-presets", writeCatalog(t), "-preset", "webm", "-discovery", "stub", "-speed", "500",
		"-input", "file:///in.mkv", "-output", "file:///out.webm", "-report", reportPath,
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "job complete")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var job report.Job
	require.NoError(t, json.Unmarshal(data, &job))
	assert.True(t, job.Succeeded())
	assert.Len(t, job.Passes, 2)
}

func TestRun_CancelledJobFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{
		"-presets", writeCatalog(t), "-preset", "webm", "-discovery", "stub",
		"-input", "file:///in.mkv", "-output", "file:///out.webm",
	}, &stdout, &stderr)
	assert.Equal(t, exitFailed, code)
}
