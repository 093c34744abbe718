// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// AudioInfo describes the raw audio characteristics of the source.
type AudioInfo struct {
	Width    int `json:"width"`
	Depth    int `json:"depth"`
	Rate     int `json:"rate"`
	Channels int `json:"channels"`
}

// MediaDescriptor is what the discovery service reports about a source.
// It is produced once per job and shared read-only by every pass.
type MediaDescriptor struct {
	URI           string            `json:"uri"`
	HasVideo      bool              `json:"hasVideo"`
	HasAudio      bool              `json:"hasAudio"`
	VideoDuration time.Duration     `json:"videoDuration"`
	AudioDuration time.Duration     `json:"audioDuration"`
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	FrameRate     Rational          `json:"frameRate"`
	PAR           *Rational         `json:"par,omitempty"`
	Audio         AudioInfo         `json:"audio"`
	Tags          map[string]string `json:"tags,omitempty"`
	// Size is the source size in bytes; 0 when unknown (e.g. network streams).
	Size int64 `json:"size,omitempty"`
}

// IsMedia reports whether the source carries at least one usable stream.
func (d *MediaDescriptor) IsMedia() bool {
	return d != nil && (d.HasVideo || d.HasAudio)
}

// Duration is the longest stream duration.
func (d *MediaDescriptor) Duration() time.Duration {
	if d == nil {
		return 0
	}
	if d.AudioDuration > d.VideoDuration {
		return d.AudioDuration
	}
	return d.VideoDuration
}
