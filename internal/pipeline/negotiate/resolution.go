// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package negotiate

import (
	"errors"
	"fmt"

	"github.com/ManuGH/passforge/internal/metrics"
	"github.com/ManuGH/passforge/internal/pipeline/model"
)

// ErrNoDimensions is returned when the source reports no usable frame size.
var ErrNoDimensions = errors.New("source has no frame dimensions")

// ResolutionInput collects everything the resolution step reads.
type ResolutionInput struct {
	InWidth, InHeight int
	// Width and Height are absolute pixels or percentages, nil keeps the source value.
	Width, Height *int
	Absolute      bool
	Crop          model.Crop
	PAR           *model.Rational
	WidthRange    model.IntRange
	HeightRange   model.IntRange
}

// Resolution is the negotiated frame geometry.
// Width and Height are the final frame size including Pad.
type Resolution struct {
	Width, Height int
	Pad           model.Padding
}

// ScaleWidth is the picture width the scaler produces before padding.
func (r Resolution) ScaleWidth() int { return r.Width - r.Pad.Left - r.Pad.Right }

// ScaleHeight is the picture height the scaler produces before padding.
func (r Resolution) ScaleHeight() int { return r.Height - r.Pad.Top - r.Pad.Bottom }

// ResolveResolution runs crop, PAR compensation, clamp, pad and even rounding
// in that order.
func ResolveResolution(in ResolutionInput) (Resolution, error) {
	w := scale(in.InWidth, in.Width, in.Absolute)
	h := scale(in.InHeight, in.Height, in.Absolute)

	w -= in.Crop.Left + in.Crop.Right
	h -= in.Crop.Top + in.Crop.Bottom

	if in.PAR != nil && in.PAR.Valid() && in.PAR.Num > 0 {
		w = int(float64(w) * in.PAR.Float())
	}
	if w <= 0 || h <= 0 {
		return Resolution{}, fmt.Errorf("%w: %dx%d after crop", ErrNoDimensions, w, h)
	}

	frameW, padL, padR, err := fit(model.AttrWidth, w, in.WidthRange)
	if err != nil {
		return Resolution{}, err
	}
	frameH, padT, padB, err := fit(model.AttrHeight, h, in.HeightRange)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Width:  frameW,
		Height: frameH,
		Pad:    model.Padding{Top: padT, Right: padR, Bottom: padB, Left: padL},
	}, nil
}

func scale(input int, requested *int, absolute bool) int {
	if requested == nil {
		return input
	}
	if absolute {
		return *requested
	}
	return int(float64(input) * float64(*requested) / 100.0)
}

// fit clamps v into r, pads a deficient axis up to r.Min and rounds the frame to even.
// A zero range leaves v unbounded.
func fit(attr string, v int, r model.IntRange) (frame, padLo, padHi int, err error) {
	if r.IsZero() {
		r = model.IntRange{Min: 2, Max: int(^uint(0) >> 1)}
	}
	lo, hi := evenBounds(r)
	if lo > hi {
		return 0, 0, 0, fmt.Errorf("%s range %s holds no even value", attr, r)
	}

	frame = v
	if frame > r.Max {
		frame = r.Max
		metrics.RecordAdjustment(attr, "clamp")
	}
	if frame < r.Min {
		// Content keeps its size, the border grows the frame to the minimum.
		side := (r.Min - frame) / 2
		padLo, padHi = side, side
		frame = v + 2*side
		metrics.RecordAdjustment(attr, "pad")
	}

	if frame%2 != 0 || frame < lo || frame > hi {
		target := frame + 1
		if frame%2 == 0 {
			target = frame
		}
		if target > hi {
			target = hi
		}
		if target < lo {
			target = lo
		}
		delta := target - frame
		// Absorb the rounding in the border when one exists so the picture stays centered.
		if padLo+padHi > 0 && padHi+delta >= 0 {
			padHi += delta
		}
		frame = target
		metrics.RecordAdjustment(attr, "even")
	}
	return frame, padLo, padHi, nil
}

// evenBounds returns the smallest and largest even values inside r.
func evenBounds(r model.IntRange) (lo, hi int) {
	lo, hi = r.Min, r.Max
	if lo%2 != 0 {
		lo++
	}
	if hi%2 != 0 {
		hi--
	}
	return lo, hi
}
