// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package negotiate fits requested output parameters into what the chosen
// encoders accept.
package negotiate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/model"
)

// Negotiator computes a PassSpec for every pass of a job.
type Negotiator struct {
	caps   CapabilitySource
	quirks Quirks
	logger zerolog.Logger
}

// New returns a negotiator. caps may be nil, in which case preset bounds are used as declared.
func New(caps CapabilitySource, quirks Quirks) *Negotiator {
	return &Negotiator{
		caps:   caps,
		quirks: quirks,
		logger: log.WithComponent("negotiate"),
	}
}

// Prepare returns a copy of preset whose codec bounds are widened to what
// the encoders report. Only codecs for streams present in desc are queried.
func (n *Negotiator) Prepare(ctx context.Context, preset *model.Preset, desc *model.MediaDescriptor) (*model.Preset, error) {
	out := preset.Clone()
	if n.caps == nil {
		return out, nil
	}
	if desc.HasVideo && out.VCodec != nil {
		if err := n.widenCodec(ctx, out.VCodec, true); err != nil {
			return nil, err
		}
	}
	if desc.HasAudio && out.ACodec != nil {
		if err := n.widenCodec(ctx, out.ACodec, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (n *Negotiator) widenCodec(ctx context.Context, codec *model.CodecSpec, video bool) error {
	caps, err := n.caps.Capabilities(ctx, codec.Name)
	if err != nil {
		return fmt.Errorf("query %s capabilities: %w", codec.Name, err)
	}
	if len(caps) == 0 {
		n.logger.Debug().Str(log.FieldEncoder, codec.Name).Msg("encoder reported no capabilities, keeping preset bounds")
	}
	return widen(codec, caps, video)
}

// Request is the input of one negotiation.
type Request struct {
	Descriptor *model.MediaDescriptor
	Preset     *model.Preset
	Options    *model.TranscodeOptions
	Pass       int
}

// Negotiate computes the pass parameters. The preset must already be prepared.
func (n *Negotiator) Negotiate(req Request) (model.PassSpec, error) {
	desc, preset, opts := req.Descriptor, req.Preset, req.Options
	if req.Pass < 0 || req.Pass >= preset.PassCount() {
		return model.PassSpec{}, fmt.Errorf("pass %d out of range [0,%d)", req.Pass, preset.PassCount())
	}
	spec := model.PassSpec{Index: req.Pass}
	if opts.Crop != nil {
		spec.Crop = *opts.Crop
	}

	if desc.HasVideo && preset.VCodec != nil {
		vc := preset.VCodec
		res, err := ResolveResolution(ResolutionInput{
			InWidth:     desc.Width,
			InHeight:    desc.Height,
			Width:       opts.Width,
			Height:      opts.Height,
			Absolute:    opts.Absolute,
			Crop:        spec.Crop,
			PAR:         desc.PAR,
			WidthRange:  vc.Width,
			HeightRange: vc.Height,
		})
		if err != nil {
			return model.PassSpec{}, err
		}
		rate, err := ResolveFramerate(desc.FrameRate, opts.Framerate, opts.Absolute, vc.Rate)
		if err != nil {
			return model.PassSpec{}, err
		}
		spec.Video = true
		spec.Width, spec.Height, spec.Pad = res.Width, res.Height, res.Pad
		spec.FrameRate = rate
		spec.PAR = n.quirks.ResolvePAR(vc.Name, desc.PAR)
		spec.Bitrate = ResolveBitrate(desc, opts.VideoBitrate, opts.Absolute)
	}

	if desc.HasAudio && preset.ACodec != nil && preset.AudioPass(req.Pass) {
		spec.Audio = ResolveAudioCaps(preset.ACodec)
	}

	ev := n.logger.Debug().
		Int(log.FieldPass, req.Pass).
		Str(log.FieldPreset, preset.Name)
	if spec.Video {
		ev = ev.Str(log.FieldResolution, spec.Resolution()).
			Str(log.FieldFPS, spec.FrameRate.String()).
			Int(log.FieldBitrate, spec.Bitrate)
	}
	ev.Bool("audio", spec.Audio != nil).Msg("negotiated pass parameters")
	return spec, nil
}
