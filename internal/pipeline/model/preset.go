// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// BitrateUnit is the unit an encoder expects for its bitrate property.
// x264-style encoders take kbps, vp8-style encoders take bits per second.
type BitrateUnit string

const (
	BitrateKbps BitrateUnit = "kbps"
	BitrateBps  BitrateUnit = "bps"
)

// CodecSpec declares an encoder and the bounds a preset allows for it.
type CodecSpec struct {
	Name string `yaml:"name" json:"name"`

	// Video bounds.
	Width  IntRange      `yaml:"width,omitempty" json:"width"`
	Height IntRange      `yaml:"height,omitempty" json:"height"`
	Rate   RationalRange `yaml:"rate,omitempty" json:"rate"`

	// Audio bounds.
	SampleWidth IntRange `yaml:"sample_width,omitempty" json:"sampleWidth"`
	Depth       IntRange `yaml:"depth,omitempty" json:"depth"`
	SampleRate  IntRange `yaml:"sample_rate,omitempty" json:"sampleRate"`
	Channels    IntRange `yaml:"channels,omitempty" json:"channels"`

	BitrateUnit     BitrateUnit `yaml:"bitrate_unit,omitempty" json:"bitrateUnit,omitempty"`
	BitrateProperty string      `yaml:"bitrate_property,omitempty" json:"bitrateProperty,omitempty"`

	// Container overrides the preset container when only this stream type is present.
	Container string `yaml:"container,omitempty" json:"container,omitempty"`
	// Passes holds one encoder property template per pass.
	Passes []string `yaml:"passes" json:"passes"`
	// Transform is an optional filter chain inserted before scaling.
	Transform string `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// Clone returns a deep copy.
func (c *CodecSpec) Clone() *CodecSpec {
	if c == nil {
		return nil
	}
	out := *c
	out.Passes = append([]string(nil), c.Passes...)
	return &out
}

// Unit returns the bitrate unit, defaulting to kbps.
func (c *CodecSpec) Unit() BitrateUnit {
	if c == nil || c.BitrateUnit == "" {
		return BitrateKbps
	}
	return c.BitrateUnit
}

// BitrateProp returns the encoder property carrying the bitrate.
func (c *CodecSpec) BitrateProp() string {
	if c == nil || c.BitrateProperty == "" {
		return "bitrate"
	}
	return c.BitrateProperty
}

// Preset is a named output target.
type Preset struct {
	Name        string     `yaml:"-" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Container   string     `yaml:"container,omitempty" json:"container,omitempty"`
	VCodec      *CodecSpec `yaml:"vcodec,omitempty" json:"vcodec,omitempty"`
	ACodec      *CodecSpec `yaml:"acodec,omitempty" json:"acodec,omitempty"`
}

// Clone returns a deep copy so per-job capability widening never leaks into a catalog.
func (p *Preset) Clone() *Preset {
	if p == nil {
		return nil
	}
	out := *p
	out.VCodec = p.VCodec.Clone()
	out.ACodec = p.ACodec.Clone()
	return &out
}

// PassCount is the number of passes a job with this preset runs.
// It follows the video codec when present since audio never spans passes.
func (p *Preset) PassCount() int {
	n := p.VideoPassCount()
	if n < 1 {
		return 1
	}
	return n
}

// VideoPassCount is the number of video templates, falling back to the audio
// template count for audio-only presets.
func (p *Preset) VideoPassCount() int {
	if p == nil {
		return 0
	}
	if p.VCodec != nil && len(p.VCodec.Passes) > 0 {
		return len(p.VCodec.Passes)
	}
	if p.ACodec != nil {
		return len(p.ACodec.Passes)
	}
	return 0
}

// AudioPass reports whether the audio branch is attached on pass index.
func (p *Preset) AudioPass(index int) bool {
	return index == p.PassCount()-1
}
