// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package negotiate

import (
	"errors"
	"math"
	"slices"

	"github.com/ManuGH/passforge/internal/metrics"
	"github.com/ManuGH/passforge/internal/pipeline/model"
)

// ErrNoFramerate is returned when neither the source nor the request yields a frame rate.
var ErrNoFramerate = errors.New("no usable frame rate")

// ResolveFramerate applies the requested rate and snaps out-of-range results
// to the exact bound. In-range rates pass through unchanged.
func ResolveFramerate(input model.Rational, requested *int, absolute bool, bounds model.RationalRange) (model.Rational, error) {
	rate := input
	if requested != nil {
		if absolute {
			rate = model.R(*requested, 1)
		} else if input.Valid() {
			rate = model.R(int(math.Round(float64(input.Num)*float64(*requested)/100.0)), input.Den)
		}
	}
	if !rate.Valid() {
		if bounds.IsZero() {
			return model.Rational{}, ErrNoFramerate
		}
		return bounds.Max, nil
	}
	if bounds.IsZero() {
		return rate, nil
	}

	f := rate.Float()
	switch {
	case bounds.Max.Valid() && f > bounds.Max.Float():
		metrics.RecordAdjustment(model.AttrRate, "clamp")
		return bounds.Max, nil
	case bounds.Min.Valid() && f < bounds.Min.Float():
		metrics.RecordAdjustment(model.AttrRate, "clamp")
		return bounds.Min, nil
	}
	return rate, nil
}

// ImpliedBitrate is the average source bitrate in kbps, 0 when size or duration is unknown.
// The video duration is preferred; the longer stream duration is the fallback.
func ImpliedBitrate(desc *model.MediaDescriptor) int {
	if desc == nil || desc.Size <= 0 {
		return 0
	}
	d := desc.VideoDuration
	if d <= 0 {
		d = desc.Duration()
	}
	secs := d.Seconds()
	if secs <= 0 {
		return 0
	}
	return int(float64(desc.Size) * 8 / secs / 1000)
}

// ResolveBitrate returns the target video bitrate in kbps.
// Bitrates read from audio tags are not consulted.
func ResolveBitrate(desc *model.MediaDescriptor, requested *int, absolute bool) int {
	if requested != nil && absolute {
		return *requested
	}
	implied := ImpliedBitrate(desc)
	if requested != nil {
		return int(float64(implied) * float64(*requested) / 100.0)
	}
	return implied
}

// ResolveAudioCaps turns the audio codec bounds into caps: a range when
// min < max, otherwise the fixed minimum.
func ResolveAudioCaps(codec *model.CodecSpec) *model.AudioCaps {
	pick := func(r model.IntRange) model.IntRange {
		if r.Min < r.Max {
			return r
		}
		return model.Fixed(r.Min)
	}
	return &model.AudioCaps{
		Width:    pick(codec.SampleWidth),
		Depth:    pick(codec.Depth),
		Rate:     pick(codec.SampleRate),
		Channels: pick(codec.Channels),
	}
}

// Quirks are encoder-specific workarounds enabled from configuration.
type Quirks struct {
	// FlipPAREncoders lists encoders that read the PAR fraction upside down.
	FlipPAREncoders []string
	// ForceSquarePixels always negotiates a 1/1 PAR.
	ForceSquarePixels bool
}

// ResolvePAR returns the PAR carried on the video caps, or nil to leave it unset.
func (q Quirks) ResolvePAR(encoder string, input *model.Rational) *model.Rational {
	if q.ForceSquarePixels {
		sq := model.R(1, 1)
		return &sq
	}
	if input == nil || !input.Valid() {
		return nil
	}
	par := *input
	if slices.Contains(q.FlipPAREncoders, encoder) {
		par = par.Inverse()
	}
	return &par
}
