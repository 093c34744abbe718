// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/passforge/internal/pipeline/model"
)

func x264Preset() *model.Preset {
	return &model.Preset{
		Name:      "mp4",
		Container: "mp4mux",
		VCodec: &model.CodecSpec{
			Name:   "x264enc",
			Passes: []string{"pass=1 stats-file=/tmp/x264-${random}.log", "pass=2 stats-file=/tmp/x264-${random}.log threads=${threads}"},
		},
		ACodec: &model.CodecSpec{
			Name:   "faac",
			Passes: []string{"bitrate=128000"},
		},
	}
}

func baseInput(pass int) Input {
	opts := model.DefaultOptions()
	opts.URI = "file:///media/in.mkv"
	opts.OutputURI = "/media/out.mp4"
	spec := model.PassSpec{
		Index:     pass,
		Video:     true,
		Width:     640,
		Height:    360,
		FrameRate: model.R(25, 1),
		Bitrate:   1500,
	}
	if pass == 1 {
		spec.Audio = &model.AudioCaps{Rate: model.IntRange{Min: 8000, Max: 48000}, Channels: model.Fixed(2)}
	}
	return Input{
		Spec:       spec,
		Preset:     x264Preset(),
		Descriptor: &model.MediaDescriptor{HasVideo: true, HasAudio: true},
		Options:    &opts,
		RunToken:   "1700000000-abc",
		Threads:    4,
	}
}

func TestBuild_SourceAndOutput(t *testing.T) {
	d, err := Build(baseInput(0))
	require.NoError(t, err)

	assert.Equal(t, "uridecodebin name=uridecode uri=file:///media/in.mkv ! fakesink name=fake", d.Source.Render())
	assert.Equal(t, "mp4mux name=mux ! queue ! filesink name=sink location=/media/out.mp4", d.Output.Render())
	assert.Equal(t, MuxName, d.Target)
	assert.Equal(t, "mp4mux", d.Muxer)
	assert.Nil(t, d.Audio, "no audio branch before the final pass")
}

func TestBuild_VideoBranchOrder(t *testing.T) {
	in := baseInput(0)
	in.Options.Deinterlace = true
	in.Options.Crop = &model.Crop{Top: 8, Bottom: 8}
	in.Spec.Crop = *in.Options.Crop
	in.Spec.Pad = model.Padding{Left: 10, Right: 10}
	in.Preset.VCodec.Transform = "videoflip method=clockwise"
	in.Options.SubtitleFile = "/media/in.srt"

	d, err := Build(in)
	require.NoError(t, err)
	require.NotNil(t, d.Video)

	want := []string{
		"queue", "ffmpegcolorspace", "videorate",
		"ffdeinterlace", "videocrop", "videoflip method=clockwise", "textoverlay",
		"videoscale", VideoCaps(in.Spec), "videobox", "ffmpegcolorspace",
		"x264enc", "queue",
	}
	if diff := cmp.Diff(want, d.Video.Main.Factories()); diff != "" {
		t.Fatalf("video branch mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "q_dec_venc_3", d.Video.InQueue(3))
	assert.Equal(t, "q_venc_mux_3", d.Video.OutQueue(3))
	assert.Contains(t, VideoCaps(in.Spec), "width=620")
	assert.Empty(t, d.Diagnostics)
}

func TestBuild_EncoderTemplateAndBitrate(t *testing.T) {
	in := baseInput(1)
	d, err := Build(in)
	require.NoError(t, err)

	enc := d.Video.Main[len(d.Video.Main)-2]
	assert.Equal(t, "x264enc", enc.Factory)
	assert.Equal(t, "x264enc bitrate=1500 pass=2 stats-file=/tmp/x264-1700000000-abc.log threads=4", Chain{enc}.Render())

	in.Preset.VCodec.Name = "vp8enc"
	in.Preset.VCodec.BitrateUnit = model.BitrateBps
	in.Preset.VCodec.BitrateProperty = "target-bitrate"
	d, err = Build(in)
	require.NoError(t, err)
	assert.Contains(t, d.Video.Render(0), "vp8enc target-bitrate=1500000")
}

func TestBuild_AudioBranch(t *testing.T) {
	d, err := Build(baseInput(1))
	require.NoError(t, err)
	require.NotNil(t, d.Audio)

	want := "queue name=q_dec_aenc_0 ! audioconvert ! audiorate tolerance=100000000 ! audioresample ! " +
		"audio/x-raw-int,rate=[8000,48000],channels=2;audio/x-raw-float,rate=[8000,48000],channels=2 ! " +
		"faac bitrate=128000 ! queue name=q_aenc_mux_0"
	if diff := cmp.Diff(want, d.Audio.Render(0)); diff != "" {
		t.Fatalf("audio branch mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_MissingTemplates(t *testing.T) {
	in := baseInput(1)
	in.Preset.VCodec.Passes = in.Preset.VCodec.Passes[:1]
	_, err := Build(in)
	require.ErrorIs(t, err, ErrTemplate)

	in = baseInput(1)
	in.Preset.ACodec.Passes = nil
	_, err = Build(in)
	require.ErrorIs(t, err, ErrTemplate)
}

func TestBuild_SubtitlesSkippedWhenSeeking(t *testing.T) {
	in := baseInput(0)
	in.Options.SubtitleFile = "/media/in.srt"
	in.Options.Start = 10

	d, err := Build(in)
	require.NoError(t, err)
	_, hasOverlay := d.Video.Main.Find(OverlayName)
	assert.False(t, hasOverlay)
	require.Len(t, d.Diagnostics, 1)
	assert.Contains(t, d.Diagnostics[0], "seeking")
}

func TestBuild_SubtitleSources(t *testing.T) {
	in := baseInput(0)
	in.Options.SubtitleFile = "/media/my subs.srt"
	in.Options.SubtitleCharset = "ISO-8859-1"

	d, err := Build(in)
	require.NoError(t, err)
	require.Len(t, d.Video.Sources, 1)
	assert.Equal(t, `filesrc location="/media/my subs.srt" ! subparse subtitle-encoding=ISO-8859-1 ! txt.`, d.Video.Sources[0].Render())

	overlay, ok := d.Video.Main.Find(OverlayName)
	require.True(t, ok)
	assert.Equal(t, []Prop{{"font-desc", model.DefaultFont}}, overlay.Props)

	in = baseInput(0)
	in.Options.BurnContainerSubs = true
	d, err = Build(in)
	require.NoError(t, err)
	require.Len(t, d.Video.Sources, 1)
	assert.Equal(t, "filesrc location=/media/in.mkv ! matroskademux name=demux ! ssaparse ! txt.", d.Video.Sources[0].Render())
}

func TestSelectContainer(t *testing.T) {
	preset := &model.Preset{
		Container: "matroskamux",
		VCodec:    &model.CodecSpec{Container: "avimux"},
		ACodec:    &model.CodecSpec{Container: "oggmux"},
	}
	both := &model.MediaDescriptor{HasVideo: true, HasAudio: true}
	video := &model.MediaDescriptor{HasVideo: true}
	audio := &model.MediaDescriptor{HasAudio: true}

	assert.Equal(t, "matroskamux", SelectContainer(both, preset))
	assert.Equal(t, "avimux", SelectContainer(video, preset))
	assert.Equal(t, "oggmux", SelectContainer(audio, preset))

	preset.ACodec.Container = ""
	assert.Equal(t, "matroskamux", SelectContainer(audio, preset))

	mp3 := &model.Preset{ACodec: &model.CodecSpec{Name: "lame"}}
	assert.Empty(t, SelectContainer(audio, mp3))
}

func TestBuild_NoContainerRoutesToSink(t *testing.T) {
	opts := model.DefaultOptions()
	opts.URI = "file:///in.flac"
	opts.OutputURI = "/out.mp3"
	d, err := Build(Input{
		Spec:       model.PassSpec{Audio: &model.AudioCaps{Channels: model.Fixed(2)}},
		Preset:     &model.Preset{ACodec: &model.CodecSpec{Name: "lame", Passes: []string{"bitrate=192"}}},
		Descriptor: &model.MediaDescriptor{HasAudio: true},
		Options:    &opts,
	})
	require.NoError(t, err)
	assert.Equal(t, SinkName, d.Target)
	assert.Equal(t, "filesink name=sink location=/out.mp3", d.Output.Render())
	assert.Nil(t, d.Video)
	assert.NotNil(t, d.Audio)
	assert.Same(t, d.Audio, d.Branch(model.PadAudio))
	assert.Nil(t, d.Branch(model.PadOther))
}
