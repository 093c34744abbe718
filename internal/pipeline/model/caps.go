// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Capability attribute names as reported by encoders.
// "width" means frame width for video encoders and sample width for audio encoders.
const (
	AttrWidth    = "width"
	AttrHeight   = "height"
	AttrDepth    = "depth"
	AttrRate     = "rate"
	AttrChannels = "channels"
)

// VideoAttrs and AudioAttrs are the attributes the negotiator queries per stream type.
var (
	VideoAttrs = []string{AttrWidth, AttrHeight}
	AudioAttrs = []string{AttrWidth, AttrDepth, AttrRate, AttrChannels}
)

// CapabilitySet is one alternative an encoder accepts on its input.
// A fixed value is reported as a range with Min == Max.
type CapabilitySet map[string]IntRange

// EncoderCaps lists every alternative an encoder accepts.
type EncoderCaps []CapabilitySet

// Range returns the codec bound for attr, or nil when the codec has no such bound.
func (c *CodecSpec) Range(attr string, video bool) *IntRange {
	if c == nil {
		return nil
	}
	if video {
		switch attr {
		case AttrWidth:
			return &c.Width
		case AttrHeight:
			return &c.Height
		}
		return nil
	}
	switch attr {
	case AttrWidth:
		return &c.SampleWidth
	case AttrDepth:
		return &c.Depth
	case AttrRate:
		return &c.SampleRate
	case AttrChannels:
		return &c.Channels
	}
	return nil
}
