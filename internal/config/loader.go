// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvLogLevel          = "PASSFORGE_LOG_LEVEL"
	EnvWatchdogTimeout   = "PASSFORGE_WATCHDOG_TIMEOUT"
	EnvPollInterval      = "PASSFORGE_POLL_INTERVAL"
	EnvHangPolls         = "PASSFORGE_HANG_POLLS"
	EnvCPUCount          = "PASSFORGE_CPU_COUNT"
	EnvFlipPAREncoders   = "PASSFORGE_FLIP_PAR_ENCODERS"
	EnvForceSquarePixels = "PASSFORGE_FORCE_SQUARE_PIXELS"
	EnvPresetsPath       = "PASSFORGE_PRESETS_PATH"
	EnvPresetsWatch      = "PASSFORGE_PRESETS_WATCH"
	EnvMetricsListen     = "PASSFORGE_METRICS_LISTEN"
	EnvTelemetryEnabled  = "PASSFORGE_TELEMETRY_ENABLED"
	EnvOTLPExporter      = "PASSFORGE_OTLP_EXPORTER"
	EnvOTLPEndpoint      = "PASSFORGE_OTLP_ENDPOINT"
	EnvTraceSampling     = "PASSFORGE_TRACE_SAMPLING"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
	numCPU     func() int
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
		numCPU:     runtime.NumCPU,
	}
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Validation is left to Validate so callers can report both separately.
func (l *Loader) Load() (AppConfig, error) {
	cfg := l.defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	mergeEnvConfig(&cfg)

	// The host core count is resolved once here; jobs never read it again.
	if cfg.Pipeline.CPUCount <= 0 {
		cfg.Pipeline.CPUCount = l.detectCPU()
	}

	return cfg, nil
}

func (l *Loader) defaults() AppConfig {
	return AppConfig{
		Version:  l.version,
		LogLevel: DefaultLogLevel,
		Pipeline: PipelineConfig{
			WatchdogTimeout: DefaultWatchdogTimeout,
			PollInterval:    DefaultPollInterval,
			HangPolls:       DefaultHangPolls,
		},
		Presets: PresetsConfig{Path: DefaultPresetsPath},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}

func (l *Loader) detectCPU() int {
	if l.numCPU == nil {
		return 1
	}
	if n := l.numCPU(); n > 0 {
		return n
	}
	return 1
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes a strict YAML config document.
func ParseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) {
	if src == nil {
		return
	}
	if src.Log != nil && src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
	if p := src.Pipeline; p != nil {
		if p.WatchdogTimeout != nil {
			dst.Pipeline.WatchdogTimeout = *p.WatchdogTimeout
		}
		if p.PollInterval != nil {
			dst.Pipeline.PollInterval = *p.PollInterval
		}
		if p.HangPolls != nil {
			dst.Pipeline.HangPolls = *p.HangPolls
		}
		if p.CPUCount != nil {
			dst.Pipeline.CPUCount = *p.CPUCount
		}
		if q := p.Quirks; q != nil {
			if len(q.FlipPAREncoders) > 0 {
				dst.Pipeline.Quirks.FlipPAREncoders = append([]string(nil), q.FlipPAREncoders...)
			}
			if q.ForceSquarePixels != nil {
				dst.Pipeline.Quirks.ForceSquarePixels = *q.ForceSquarePixels
			}
		}
	}
	if p := src.Presets; p != nil {
		if p.Path != "" {
			dst.Presets.Path = p.Path
		}
		if p.Watch != nil {
			dst.Presets.Watch = *p.Watch
		}
	}
	if m := src.Metrics; m != nil && m.Listen != nil {
		dst.Metrics.Listen = *m.Listen
	}
	if t := src.Telemetry; t != nil {
		if t.Enabled != nil {
			dst.Telemetry.Enabled = *t.Enabled
		}
		if t.Exporter != "" {
			dst.Telemetry.Exporter = t.Exporter
		}
		if t.Endpoint != "" {
			dst.Telemetry.Endpoint = t.Endpoint
		}
		if t.Environment != "" {
			dst.Telemetry.Environment = t.Environment
		}
		if t.SamplingRate != nil {
			dst.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)

	p := &cfg.Pipeline
	p.WatchdogTimeout = ParseDuration(EnvWatchdogTimeout, p.WatchdogTimeout)
	p.PollInterval = ParseDuration(EnvPollInterval, p.PollInterval)
	p.HangPolls = ParseInt(EnvHangPolls, p.HangPolls)
	p.CPUCount = ParseInt(EnvCPUCount, p.CPUCount)
	p.Quirks.FlipPAREncoders = ParseList(EnvFlipPAREncoders, p.Quirks.FlipPAREncoders)
	p.Quirks.ForceSquarePixels = ParseBool(EnvForceSquarePixels, p.Quirks.ForceSquarePixels)

	cfg.Presets.Path = ParseString(EnvPresetsPath, cfg.Presets.Path)
	cfg.Presets.Watch = ParseBool(EnvPresetsWatch, cfg.Presets.Watch)
	cfg.Metrics.Listen = ParseString(EnvMetricsListen, cfg.Metrics.Listen)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(EnvTelemetryEnabled, t.Enabled)
	t.Exporter = ParseString(EnvOTLPExporter, t.Exporter)
	t.Endpoint = ParseString(EnvOTLPEndpoint, t.Endpoint)
	t.SamplingRate = ParseFloat(EnvTraceSampling, t.SamplingRate)
}
