// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package graph turns negotiated pass parameters into launch-syntax graph
// descriptions: a decode source with a placeholder sink, the output tail
// (muxer and file sink) and the per-stream branches attached after seeking.
package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuGH/passforge/internal/pipeline/model"
)

// Well-known element names looked up by the controller and the engine.
const (
	SourceName      = "uridecode"
	PlaceholderName = "fake"
	MuxName         = "mux"
	SinkName        = "sink"
	OverlayName     = "txt"
)

// ErrTemplate is returned when a codec has no pass template for the requested pass.
var ErrTemplate = errors.New("missing pass template")

const ordinalToken = "{n}"

// Branch is a per-stream sub-graph. Queue names carry the branch ordinal,
// which is only known once the decoder pad shows up.
type Branch struct {
	Kind model.PadKind
	// Sources are side chains feeding named elements of Main (subtitle inputs).
	Sources []Chain
	Main    Chain
}

// Render returns the launch text for branch ordinal n.
func (b *Branch) Render(n int) string {
	parts := make([]string, 0, len(b.Sources)+1)
	parts = append(parts, b.Main.Render())
	for _, s := range b.Sources {
		parts = append(parts, s.Render())
	}
	return strings.ReplaceAll(strings.Join(parts, "  "), ordinalToken, strconv.Itoa(n))
}

// InQueue is the name of the queue linked to the decoder pad.
func (b *Branch) InQueue(n int) string {
	return strings.ReplaceAll(b.Main[0].Name, ordinalToken, strconv.Itoa(n))
}

// OutQueue is the name of the queue linked to the muxer or sink.
func (b *Branch) OutQueue(n int) string {
	return strings.ReplaceAll(b.Main[len(b.Main)-1].Name, ordinalToken, strconv.Itoa(n))
}

// Description is everything the engine needs for one pass.
type Description struct {
	// Source is submitted first: decoder plus placeholder sink.
	Source Chain
	// Output replaces the placeholder after the seek.
	Output Chain
	// Target is the element branches link into: MuxName or SinkName.
	Target string
	Muxer  string
	Video  *Branch
	Audio  *Branch
	// Diagnostics are non-fatal notes about requested features that were skipped.
	Diagnostics []string
}

// Branch returns the branch for kind, or nil.
func (d *Description) Branch(kind model.PadKind) *Branch {
	switch kind {
	case model.PadVideo:
		return d.Video
	case model.PadAudio:
		return d.Audio
	}
	return nil
}

// Input is what the builder needs for one pass.
type Input struct {
	Spec       model.PassSpec
	Preset     *model.Preset
	Descriptor *model.MediaDescriptor
	Options    *model.TranscodeOptions
	// RunToken is unique per job run, so multi-pass statistics files never collide.
	RunToken string
	Threads  int
}

// Build renders the pass description.
func Build(in Input) (*Description, error) {
	d := &Description{
		Source: Chain{
			{Factory: "uridecodebin", Name: SourceName, Props: []Prop{{"uri", in.Options.URI}}},
			{Factory: "fakesink", Name: PlaceholderName},
		},
	}

	d.Muxer = SelectContainer(in.Descriptor, in.Preset)
	sink := Stage{Factory: "filesink", Name: SinkName, Props: []Prop{{"location", in.Options.OutputURI}}}
	if d.Muxer != "" {
		d.Output = Chain{{Factory: d.Muxer, Name: MuxName}, {Factory: "queue"}, sink}
		d.Target = MuxName
	} else {
		d.Output = Chain{sink}
		d.Target = SinkName
	}

	if in.Spec.Video && in.Preset.VCodec != nil {
		b, diags, err := videoBranch(in)
		if err != nil {
			return nil, err
		}
		d.Video = b
		d.Diagnostics = append(d.Diagnostics, diags...)
	}
	if in.Spec.Audio != nil && in.Preset.ACodec != nil {
		b, err := audioBranch(in)
		if err != nil {
			return nil, err
		}
		d.Audio = b
	}
	return d, nil
}

func videoBranch(in Input) (*Branch, []string, error) {
	vc := in.Preset.VCodec
	spec := in.Spec
	opts := in.Options
	if spec.Index < 0 || spec.Index >= len(vc.Passes) {
		return nil, nil, fmt.Errorf("%w: %s has %d pass templates, pass %d requested", ErrTemplate, vc.Name, len(vc.Passes), spec.Index)
	}

	b := &Branch{Kind: model.PadVideo}
	main := Chain{
		{Factory: "queue", Name: "q_dec_venc_" + ordinalToken},
		{Factory: "ffmpegcolorspace"},
		{Factory: "videorate"},
	}
	if opts.Deinterlace {
		main = append(main, Stage{Factory: "ffdeinterlace"})
	}
	if c := spec.Crop; !c.IsZero() {
		main = append(main, Stage{Factory: "videocrop", Props: []Prop{
			{"top", strconv.Itoa(c.Top)},
			{"right", strconv.Itoa(c.Right)},
			{"bottom", strconv.Itoa(c.Bottom)},
			{"left", strconv.Itoa(c.Left)},
		}})
	}
	if vc.Transform != "" {
		main = append(main, Stage{Factory: strings.TrimSpace(vc.Transform)})
	}

	overlay, sources, diags := subtitles(opts)
	if overlay {
		main = append(main, Stage{Factory: "textoverlay", Name: OverlayName, Props: []Prop{{"font-desc", opts.EffectiveFont()}}})
		b.Sources = sources
	}

	main = append(main,
		Stage{Factory: "videoscale"},
		Stage{Factory: VideoCaps(spec)},
	)
	if p := spec.Pad; !p.IsZero() {
		// videobox adds a border for negative values.
		main = append(main,
			Stage{Factory: "videobox", Props: []Prop{
				{"top", strconv.Itoa(-p.Top)},
				{"right", strconv.Itoa(-p.Right)},
				{"bottom", strconv.Itoa(-p.Bottom)},
				{"left", strconv.Itoa(-p.Left)},
			}},
			Stage{Factory: "ffmpegcolorspace"},
		)
	}

	enc := Stage{Factory: vc.Name, Args: expand(vc.Passes[spec.Index], in)}
	if spec.Bitrate > 0 {
		enc.Props = append(enc.Props, Prop{vc.BitrateProp(), strconv.Itoa(toUnit(spec.Bitrate, vc.Unit()))})
	}
	main = append(main, enc, Stage{Factory: "queue", Name: "q_venc_mux_" + ordinalToken})
	b.Main = main
	return b, diags, nil
}

func audioBranch(in Input) (*Branch, error) {
	ac := in.Preset.ACodec
	// Audio templates run backwards from the last video pass.
	idx := in.Preset.VideoPassCount() - in.Spec.Index - 1
	if idx < 0 || idx >= len(ac.Passes) {
		return nil, fmt.Errorf("%w: %s has %d pass templates, index %d requested", ErrTemplate, ac.Name, len(ac.Passes), idx)
	}
	return &Branch{
		Kind: model.PadAudio,
		Main: Chain{
			{Factory: "queue", Name: "q_dec_aenc_" + ordinalToken},
			{Factory: "audioconvert"},
			{Factory: "audiorate", Props: []Prop{{"tolerance", "100000000"}}},
			{Factory: "audioresample"},
			{Factory: AudioCaps(in.Spec.Audio)},
			{Factory: ac.Name, Args: expand(ac.Passes[idx], in)},
			{Factory: "queue", Name: "q_aenc_mux_" + ordinalToken},
		},
	}, nil
}

// subtitles decides on burn-in. Burn-in is skipped whenever the job seeks.
func subtitles(opts *model.TranscodeOptions) (overlay bool, sources []Chain, diags []string) {
	wanted := opts.SubtitleFile != "" || opts.BurnContainerSubs
	if !wanted {
		return false, nil, nil
	}
	if opts.Trimmed() {
		return false, nil, []string{"subtitles are not supported in combination with seeking, burn-in skipped"}
	}

	ref := Stage{Factory: OverlayName + "."}
	if opts.SubtitleFile != "" {
		parse := Stage{Factory: "subparse"}
		if opts.SubtitleCharset != "" {
			parse.Props = []Prop{{"subtitle-encoding", opts.SubtitleCharset}}
		}
		sources = append(sources, Chain{
			{Factory: "filesrc", Props: []Prop{{"location", opts.SubtitleFile}}},
			parse,
			ref,
		})
		if opts.BurnContainerSubs {
			diags = append(diags, "external subtitle file given, container subtitles ignored")
		}
		return true, sources, diags
	}

	sources = append(sources, Chain{
		{Factory: "filesrc", Props: []Prop{{"location", localPath(opts.URI)}}},
		{Factory: "matroskademux", Name: "demux"},
		{Factory: "ssaparse"},
		ref,
	})
	return true, sources, nil
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func toUnit(kbps int, unit model.BitrateUnit) int {
	if unit == model.BitrateBps {
		return kbps * 1000
	}
	return kbps
}

func expand(template string, in Input) string {
	return strings.NewReplacer(
		"${random}", in.RunToken,
		"${threads}", strconv.Itoa(in.Threads),
		"${pass}", strconv.Itoa(in.Spec.Index+1),
	).Replace(template)
}

// SelectContainer picks the muxer: the preset container when both streams are
// present, otherwise the per-codec override falling back to the preset container.
// An empty result routes branches straight to the file sink.
func SelectContainer(desc *model.MediaDescriptor, preset *model.Preset) string {
	switch {
	case desc.HasVideo && desc.HasAudio:
		return preset.Container
	case desc.HasVideo:
		if preset.VCodec != nil && preset.VCodec.Container != "" {
			return preset.VCodec.Container
		}
	case desc.HasAudio:
		if preset.ACodec != nil && preset.ACodec.Container != "" {
			return preset.ACodec.Container
		}
	}
	return preset.Container
}
