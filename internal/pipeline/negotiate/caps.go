// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package negotiate

import (
	"context"
	"fmt"

	"github.com/ManuGH/passforge/internal/metrics"
	"github.com/ManuGH/passforge/internal/pipeline/model"
)

// CapabilitySource reports what an instantiated encoder accepts on its input.
type CapabilitySource interface {
	Capabilities(ctx context.Context, encoder string) (model.EncoderCaps, error)
}

// Merge folds the alternatives of caps into their outer bounds for attr.
// ok is false when no alternative mentions attr.
func Merge(caps model.EncoderCaps, attr string) (merged model.IntRange, ok bool) {
	for _, set := range caps {
		r, has := set[attr]
		if !has {
			continue
		}
		if !ok {
			merged, ok = r, true
			continue
		}
		if r.Min < merged.Min {
			merged.Min = r.Min
		}
		if r.Max > merged.Max {
			merged.Max = r.Max
		}
	}
	return merged, ok
}

// widen loosens codec bounds towards caps. Bounds are never narrowed.
func widen(codec *model.CodecSpec, caps model.EncoderCaps, video bool) error {
	attrs := model.AudioAttrs
	if video {
		attrs = model.VideoAttrs
	}
	for _, attr := range attrs {
		cur := codec.Range(attr, video)
		if cur == nil {
			continue
		}
		found, ok := Merge(caps, attr)
		if ok {
			switch {
			case cur.IsZero():
				*cur = found
				metrics.RecordAdjustment(attr, "widen")
			default:
				if found.Min < cur.Min {
					cur.Min = found.Min
					metrics.RecordAdjustment(attr, "widen")
				}
				if found.Max > cur.Max {
					cur.Max = found.Max
					metrics.RecordAdjustment(attr, "widen")
				}
			}
		}
		if cur.Min > cur.Max {
			return fmt.Errorf("encoder %s: %s range %s is empty", codec.Name, attr, cur)
		}
	}
	return nil
}
