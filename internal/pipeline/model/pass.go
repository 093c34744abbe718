// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "fmt"

// PadKind classifies a dynamically created decoder output.
type PadKind string

const (
	PadVideo PadKind = "video"
	PadAudio PadKind = "audio"
	PadOther PadKind = "other"
)

// Padding holds the border added on each edge to reach an encoder minimum.
type Padding struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// IsZero reports whether no border is added.
func (p Padding) IsZero() bool {
	return p == Padding{}
}

// AudioCaps is the negotiated raw audio format. Each attribute is a range,
// or a fixed value when Min == Max.
type AudioCaps struct {
	Width    IntRange `json:"width"`
	Depth    IntRange `json:"depth"`
	Rate     IntRange `json:"rate"`
	Channels IntRange `json:"channels"`
}

// PassSpec is the negotiated parameter set for one pass.
type PassSpec struct {
	Index int `json:"index"`

	Video     bool      `json:"video"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	FrameRate Rational  `json:"frameRate"`
	PAR       *Rational `json:"par,omitempty"`
	// Bitrate is in kbps; the graph builder converts to the encoder unit.
	Bitrate int     `json:"bitrate"`
	Crop    Crop    `json:"crop"`
	Pad     Padding `json:"pad"`

	// Audio is set only on the pass that carries the audio branch.
	Audio *AudioCaps `json:"audio,omitempty"`

	// Muxer is the container element, empty when output goes straight to the sink.
	Muxer string `json:"muxer,omitempty"`
}

// Resolution formats the negotiated frame size.
func (s PassSpec) Resolution() string {
	if !s.Video {
		return ""
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
