// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the passforge runtime configuration.
//
// Precedence is ENV > file > defaults. Files are strict YAML: unknown keys
// and trailing documents are rejected.
package config

import "time"

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version   string
	LogLevel  string
	Pipeline  PipelineConfig
	Presets   PresetsConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

// PipelineConfig tunes the pass controller.
type PipelineConfig struct {
	// WatchdogTimeout bounds the wait for pad quiescence on every pass.
	WatchdogTimeout time.Duration
	// PollInterval is the period of the status poll while a pass runs.
	PollInterval time.Duration
	// HangPolls is the number of identical consecutive polls that force EOS.
	HangPolls int
	// CPUCount is used when a job asks for automatic thread count. 0 means
	// detect from the host once at startup.
	CPUCount int
	Quirks   QuirksConfig
}

// QuirksConfig holds environment specific workarounds, all off by default.
type QuirksConfig struct {
	// FlipPAREncoders lists encoders that expect an inverted pixel aspect ratio.
	FlipPAREncoders []string
	// ForceSquarePixels pins the negotiated PAR to 1/1.
	ForceSquarePixels bool
}

// PresetsConfig locates the preset catalog.
type PresetsConfig struct {
	Path  string
	Watch bool
}

// MetricsConfig controls the status/metrics HTTP listener.
type MetricsConfig struct {
	// Listen is a host:port; empty disables the listener.
	Listen string
}

// TelemetryConfig mirrors telemetry.Config.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	Environment  string
	SamplingRate float64
}

// FileConfig is the on-disk YAML shape. Pointer fields distinguish "unset"
// from zero values so file values only override what they name.
type FileConfig struct {
	Version   string               `yaml:"version,omitempty"`
	Log       *LogFileConfig       `yaml:"log,omitempty"`
	Pipeline  *PipelineFileConfig  `yaml:"pipeline,omitempty"`
	Presets   *PresetsFileConfig   `yaml:"presets,omitempty"`
	Metrics   *MetricsFileConfig   `yaml:"metrics,omitempty"`
	Telemetry *TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type LogFileConfig struct {
	Level string `yaml:"level,omitempty"`
}

type PipelineFileConfig struct {
	WatchdogTimeout *time.Duration    `yaml:"watchdog_timeout,omitempty"`
	PollInterval    *time.Duration    `yaml:"poll_interval,omitempty"`
	HangPolls       *int              `yaml:"hang_polls,omitempty"`
	CPUCount        *int              `yaml:"cpu_count,omitempty"`
	Quirks          *QuirksFileConfig `yaml:"quirks,omitempty"`
}

type QuirksFileConfig struct {
	FlipPAREncoders   []string `yaml:"flip_par_encoders,omitempty"`
	ForceSquarePixels *bool    `yaml:"force_square_pixels,omitempty"`
}

type PresetsFileConfig struct {
	Path  string `yaml:"path,omitempty"`
	Watch *bool  `yaml:"watch,omitempty"`
}

type MetricsFileConfig struct {
	Listen *string `yaml:"listen,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
	SamplingRate *float64 `yaml:"sampling_rate,omitempty"`
}

// Defaults.
const (
	DefaultWatchdogTimeout = 20 * time.Second
	DefaultPollInterval    = time.Second
	DefaultHangPolls       = 20
	DefaultLogLevel        = "info"
	DefaultPresetsPath     = "presets.yaml"
)
