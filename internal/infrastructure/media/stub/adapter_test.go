// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/passforge/internal/pipeline/clock"
	"github.com/ManuGH/passforge/internal/pipeline/controller"
	"github.com/ManuGH/passforge/internal/pipeline/engine"
	"github.com/ManuGH/passforge/internal/pipeline/graph"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/seek"
)

type recordingSink struct {
	mu      sync.Mutex
	added   []string
	noMore  int
	blocked []string
	msgs    []engine.Message
}

func (s *recordingSink) PadAdded(id string, _ model.PadKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, id)
}

func (s *recordingSink) NoMorePads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noMore++
}

func (s *recordingSink) PadBlocked(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = append(s.blocked, id)
}

func (s *recordingSink) Message(m engine.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
}

func descriptor() *model.MediaDescriptor {
	return &model.MediaDescriptor{
		HasVideo: true, HasAudio: true,
		Width: 640, Height: 360,
		FrameRate:     model.R(25, 1),
		VideoDuration: 2 * time.Second,
		Size:          1_000_000,
	}
}

const launch = "uridecodebin uri=file:///a name=uridecode ! fakesink name=fake"

func TestGraph_PadsAndBlocksFollowClock(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	a := NewAdapter(Config{Descriptor: descriptor(), Clock: clk})
	sink := &recordingSink{}

	g, err := a.Build(context.Background(), launch, sink)
	require.NoError(t, err)
	require.NoError(t, g.SetState(context.Background(), engine.StatePaused))
	assert.Empty(t, sink.added)

	clk.Advance(0)
	assert.Equal(t, []string{"uridecode.src_0", "uridecode.src_1"}, sink.added)
	assert.Equal(t, 1, sink.noMore)

	g.BlockPad("uridecode.src_0")
	assert.Empty(t, sink.blocked)
	clk.Advance(0)
	assert.Equal(t, []string{"uridecode.src_0"}, sink.blocked)
	assert.True(t, g.(*Graph).Blocked("uridecode.src_0"))
	g.UnblockPad("uridecode.src_0")
	assert.False(t, g.(*Graph).Blocked("uridecode.src_0"))
}

func TestGraph_FiredTimersAreReleased(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	a := NewAdapter(Config{Descriptor: descriptor(), Clock: clk})
	g, err := a.Build(context.Background(), launch, &recordingSink{})
	require.NoError(t, err)
	sg := g.(*Graph)

	require.NoError(t, g.SetState(context.Background(), engine.StatePaused))
	for i := 0; i < 50; i++ {
		g.BlockPad("uridecode.src_0")
	}
	assert.Equal(t, 51, sg.pendingTimers())

	clk.Advance(0)
	assert.Zero(t, sg.pendingTimers())
	require.NoError(t, g.Close())
}

func TestGraph_PlaybackReachesStop(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	a := NewAdapter(Config{Descriptor: descriptor(), Clock: clk, Tick: 100 * time.Millisecond, Speed: 2})
	sink := &recordingSink{}
	ctx := context.Background()

	g, err := a.Build(ctx, launch, sink)
	require.NoError(t, err)
	_, err = g.Position(ctx)
	assert.ErrorIs(t, err, engine.ErrPositionUnavailable)

	require.NoError(t, g.SetState(ctx, engine.StatePaused))
	require.NoError(t, g.Seek(ctx, seek.Request{Rate: 1, Start: 500 * time.Millisecond, Stop: time.Second, StopType: seek.StopSet}))
	require.NoError(t, g.RemoveElement(ctx, graph.PlaceholderName))
	assert.ErrorIs(t, g.RemoveElement(ctx, graph.PlaceholderName), engine.ErrElementNotFound)
	require.NoError(t, g.AddOutput(ctx, "webmmux name=mux ! queue ! filesink location=/tmp/o name=sink"))
	require.NoError(t, g.AttachBranch(ctx, engine.BranchLink{PadID: "uridecode.src_0", Target: graph.MuxName}))
	assert.ErrorIs(t, g.AttachBranch(ctx, engine.BranchLink{PadID: "nope", Target: graph.MuxName}), engine.ErrElementNotFound)

	require.NoError(t, g.SetState(ctx, engine.StatePlaying))
	clk.Advance(200 * time.Millisecond)
	pos, err := g.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 900*time.Millisecond, pos)
	assert.Empty(t, sink.msgs)

	clk.Advance(time.Second)
	require.Len(t, sink.msgs, 1)
	assert.Equal(t, engine.MessageEOS, sink.msgs[0].Kind)
	pos, _ = g.Position(ctx)
	assert.Equal(t, time.Second, pos)

	g.PostEOS()
	clk.Advance(0)
	assert.Len(t, sink.msgs, 1)
}

func TestGraph_ClosedRejectsCalls(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	a := NewAdapter(Config{Descriptor: descriptor(), Clock: clk})
	g, err := a.Build(context.Background(), launch, &recordingSink{})
	require.NoError(t, err)
	require.Equal(t, 1, a.Active())

	require.NoError(t, g.SetState(context.Background(), engine.StatePaused))
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.Zero(t, a.Active())
	assert.Zero(t, clk.Pending())
	assert.ErrorIs(t, g.SetState(context.Background(), engine.StatePlaying), engine.ErrGraphClosed)
}

func TestAdapter_BuildRequiresPlaceholder(t *testing.T) {
	a := NewAdapter(Config{})
	_, err := a.Build(context.Background(), "uridecodebin name=uridecode", &recordingSink{})
	assert.Error(t, err)
}

func TestAdapter_DiscoverAndCaps(t *testing.T) {
	caps := model.EncoderCaps{{model.AttrWidth: {Min: 16, Max: 4096}}}
	a := NewAdapter(Config{Descriptor: descriptor(), Caps: map[string]model.EncoderCaps{"vp8enc": caps}})

	d, err := a.Discover(context.Background(), "file:///movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, "file:///movie.mkv", d.URI)
	assert.True(t, d.IsMedia())

	got, err := a.Capabilities(context.Background(), "vp8enc")
	require.NoError(t, err)
	assert.Equal(t, caps, got)

	_, err = NewAdapter(Config{}).Discover(context.Background(), "file:///x")
	assert.Error(t, err)
}

func TestAdapter_DrivesControllerToCompletion(t *testing.T) {
	a := NewAdapter(Config{Descriptor: descriptor(), Tick: time.Millisecond, Speed: 200})
	preset := &model.Preset{
		Name:      "webm",
		Container: "webmmux",
		VCodec: &model.CodecSpec{
			Name:   "vp8enc",
			Width:  model.IntRange{Min: 16, Max: 1920},
			Height: model.IntRange{Min: 16, Max: 1080},
			Rate:   model.RationalRange{Min: model.R(1, 1), Max: model.R(60, 1)},
			Passes: []string{"multipass-mode=first-pass", "multipass-mode=last-pass"},
		},
		ACodec: &model.CodecSpec{Name: "vorbisenc", Passes: []string{"quality=0.4"}},
	}
	opts := model.DefaultOptions()
	opts.URI = "file:///in.mkv"
	opts.OutputURI = "file:///out.webm"

	c, err := controller.New(preset, opts, controller.Config{PollInterval: 5 * time.Millisecond}, controller.Deps{Engine: a, Discoverer: a})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))
	assert.Equal(t, controller.StateComplete, c.State())
	assert.Len(t, c.Report().Passes, 2)
	assert.Eventually(t, func() bool { return a.Active() == 0 }, time.Second, time.Millisecond)
}
