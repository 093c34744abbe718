// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/passforge/internal/validate"
)

// Validate checks business rules on a loaded AppConfig.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("LogLevel", strings.ToLower(cfg.LogLevel), validate.LogLevels())

	v.DurationRange("Pipeline.WatchdogTimeout", cfg.Pipeline.WatchdogTimeout, 100*time.Millisecond, 10*time.Minute)
	v.DurationRange("Pipeline.PollInterval", cfg.Pipeline.PollInterval, 10*time.Millisecond, time.Minute)
	v.Range("Pipeline.HangPolls", cfg.Pipeline.HangPolls, 1, 10000)
	v.NonNegative("Pipeline.CPUCount", cfg.Pipeline.CPUCount)

	for _, enc := range cfg.Pipeline.Quirks.FlipPAREncoders {
		v.NotEmpty("Pipeline.Quirks.FlipPAREncoders", enc)
	}

	v.NotEmpty("Presets.Path", cfg.Presets.Path)
	v.ListenAddr("Metrics.Listen", cfg.Metrics.Listen)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
