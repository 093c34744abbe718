// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"errors"
	"fmt"
)

// DefaultFont is the overlay font used for subtitle burn-in.
const DefaultFont = "Sans Bold 16"

// Crop holds the pixels removed from each edge.
type Crop struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// IsZero reports whether no edge is cropped.
func (c Crop) IsZero() bool {
	return c == Crop{}
}

// TranscodeOptions is the per-job request.
//
// Start and Stop are percentages of the source duration unless Absolute is
// set, in which case they are seconds. Stop -1 means "until the end".
// Height, Width, Framerate and VideoBitrate follow the same switch: absolute
// values or percentages of the source value. Nil means "keep the source".
type TranscodeOptions struct {
	URI        string `json:"uri"`
	OutputURI  string `json:"outputUri"`
	PresetName string `json:"preset"`

	Start    float64 `json:"start"`
	Stop     float64 `json:"stop"`
	Absolute bool    `json:"absolute"`
	// MaxDuration caps the output span in seconds; 0 disables the cap.
	MaxDuration float64 `json:"maxDuration,omitempty"`

	Crop         *Crop `json:"crop,omitempty"`
	Height       *int  `json:"height,omitempty"`
	Width        *int  `json:"width,omitempty"`
	Framerate    *int  `json:"framerate,omitempty"`
	VideoBitrate *int  `json:"videoBitrate,omitempty"`

	SubtitleFile      string `json:"subtitleFile,omitempty"`
	SubtitleCharset   string `json:"subtitleCharset,omitempty"`
	BurnContainerSubs bool   `json:"burnContainerSubs,omitempty"`
	Font              string `json:"font,omitempty"`

	Deinterlace bool `json:"deinterlace,omitempty"`
	// Threads is the encoder thread count; 0 selects the host core count.
	Threads int `json:"threads,omitempty"`
}

// DefaultOptions returns options with the documented defaults applied.
func DefaultOptions() TranscodeOptions {
	return TranscodeOptions{
		Start: 0,
		Stop:  -1,
		Font:  DefaultFont,
	}
}

// Trimmed reports whether a seek away from the beginning was requested.
func (o *TranscodeOptions) Trimmed() bool {
	return o.Start != 0
}

// Validate checks the request shape. Seek window rules are enforced by the
// seek planner since they need the source duration.
func (o *TranscodeOptions) Validate() error {
	var errs []error
	if o.URI == "" {
		errs = append(errs, errors.New("uri is required"))
	}
	if o.OutputURI == "" {
		errs = append(errs, errors.New("output uri is required"))
	}
	if o.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative, got %d", o.Threads))
	}
	if o.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("max duration must not be negative, got %g", o.MaxDuration))
	}
	if c := o.Crop; c != nil && (c.Top < 0 || c.Right < 0 || c.Bottom < 0 || c.Left < 0) {
		errs = append(errs, fmt.Errorf("crop values must not be negative, got %+v", *c))
	}
	for name, v := range map[string]*int{"height": o.Height, "width": o.Width, "framerate": o.Framerate, "video bitrate": o.VideoBitrate} {
		if v != nil && *v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, *v))
		}
	}
	return errors.Join(errs...)
}

// EffectiveFont returns Font or the default.
func (o *TranscodeOptions) EffectiveFont() string {
	if o.Font == "" {
		return DefaultFont
	}
	return o.Font
}
