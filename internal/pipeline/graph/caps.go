// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"fmt"
	"strings"

	"github.com/ManuGH/passforge/internal/pipeline/model"
)

var (
	videoMedia = []string{"video/x-raw-yuv", "video/x-raw-rgb"}
	audioMedia = []string{"audio/x-raw-int", "audio/x-raw-float"}
)

// VideoCaps renders the caps filter for the scaler output.
func VideoCaps(spec model.PassSpec) string {
	fields := []string{
		fmt.Sprintf("width=%d", spec.Width-spec.Pad.Left-spec.Pad.Right),
		fmt.Sprintf("height=%d", spec.Height-spec.Pad.Top-spec.Pad.Bottom),
		"framerate=" + spec.FrameRate.String(),
	}
	if spec.PAR != nil {
		fields = append(fields, "pixel-aspect-ratio="+spec.PAR.String())
	}
	return joinCaps(videoMedia, fields)
}

// AudioCaps renders the caps filter in front of the audio encoder.
func AudioCaps(c *model.AudioCaps) string {
	var fields []string
	for _, f := range []struct {
		key string
		r   model.IntRange
	}{
		{"width", c.Width},
		{"depth", c.Depth},
		{"rate", c.Rate},
		{"channels", c.Channels},
	} {
		if f.r.IsZero() {
			continue
		}
		fields = append(fields, f.key+"="+capsRange(f.r))
	}
	return joinCaps(audioMedia, fields)
}

func capsRange(r model.IntRange) string {
	if r.Min < r.Max {
		return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
	}
	return fmt.Sprintf("%d", r.Min)
}

func joinCaps(media, fields []string) string {
	structs := make([]string, len(media))
	for i, m := range media {
		structs[i] = strings.Join(append([]string{m}, fields...), ",")
	}
	return strings.Join(structs, ";")
}
