// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/bus"
	"github.com/ManuGH/passforge/internal/pipeline/clock"
	"github.com/ManuGH/passforge/internal/pipeline/engine"
	"github.com/ManuGH/passforge/internal/pipeline/graph"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/seek"
)

type scriptPad struct {
	id   string
	kind model.PadKind
}

// script decides how every graph built by fakeEngine behaves.
type script struct {
	pads          []scriptPad
	withholdBlock bool
	padsOnBuild   bool
	skipNoMore    bool
	seekErr       error
	eosOnPlay     bool
	fatalOnPlay   bool
	position      time.Duration
}

type fakeGraph struct {
	id     string
	sink   engine.EventSink
	script script

	mu        sync.Mutex
	state     engine.PlaybackState
	launch    string
	seeks     []seek.Request
	blocked   []string
	unblocked []string
	removed   []string
	outputs   []string
	links     []engine.BranchLink
	eosPosted int
	closed    bool
}

func (g *fakeGraph) ID() string { return g.id }

func (g *fakeGraph) SetState(_ context.Context, st engine.PlaybackState) error {
	g.mu.Lock()
	from := g.state
	g.state = st
	g.mu.Unlock()

	switch {
	case from == engine.StateIdle && st == engine.StatePaused && !g.script.padsOnBuild:
		g.announcePads()
	case st == engine.StatePlaying && g.script.eosOnPlay:
		g.sink.Message(engine.Message{Kind: engine.MessageEOS, Source: g.id})
	case st == engine.StatePlaying && g.script.fatalOnPlay:
		g.sink.Message(engine.Message{Kind: engine.MessageError, Source: "enc", Text: "encoder crashed"})
	}
	return nil
}

func (g *fakeGraph) announcePads() {
	for _, p := range g.script.pads {
		g.sink.PadAdded(p.id, p.kind)
	}
	if !g.script.skipNoMore {
		g.sink.NoMorePads()
	}
}

func (g *fakeGraph) State() engine.PlaybackState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *fakeGraph) Seek(_ context.Context, req seek.Request) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seeks = append(g.seeks, req)
	return g.script.seekErr
}

func (g *fakeGraph) BlockPad(id string) {
	g.mu.Lock()
	g.blocked = append(g.blocked, id)
	g.mu.Unlock()
	if !g.script.withholdBlock {
		g.sink.PadBlocked(id)
	}
}

func (g *fakeGraph) UnblockPad(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unblocked = append(g.unblocked, id)
}

func (g *fakeGraph) RemoveElement(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed = append(g.removed, name)
	return nil
}

func (g *fakeGraph) AddOutput(_ context.Context, launch string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outputs = append(g.outputs, launch)
	return nil
}

func (g *fakeGraph) AttachBranch(_ context.Context, link engine.BranchLink) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.links = append(g.links, link)
	return nil
}

func (g *fakeGraph) Position(context.Context) (time.Duration, error) {
	return g.script.position, nil
}

func (g *fakeGraph) PostEOS() {
	g.mu.Lock()
	g.eosPosted++
	g.mu.Unlock()
	g.sink.Message(engine.Message{Kind: engine.MessageEOS, Source: g.id})
}

func (g *fakeGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

type fakeEngine struct {
	script   script
	buildErr error

	mu     sync.Mutex
	graphs []*fakeGraph
}

func (e *fakeEngine) Build(_ context.Context, launch string, sink engine.EventSink) (engine.Graph, error) {
	if e.buildErr != nil {
		return nil, e.buildErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	g := &fakeGraph{id: fmt.Sprintf("g%d", len(e.graphs)), sink: sink, script: e.script, launch: launch, state: engine.StateIdle}
	e.graphs = append(e.graphs, g)
	if e.script.padsOnBuild {
		g.announcePads()
	}
	return g, nil
}

func (e *fakeEngine) Capabilities(context.Context, string) (model.EncoderCaps, error) {
	return nil, nil
}

func (e *fakeEngine) built() []*fakeGraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakeGraph(nil), e.graphs...)
}

type fakeDiscoverer struct {
	desc *model.MediaDescriptor
	err  error
}

func (d fakeDiscoverer) Discover(context.Context, string) (*model.MediaDescriptor, error) {
	return d.desc, d.err
}

func testPreset() *model.Preset {
	return &model.Preset{
		Name:      "webm",
		Container: "webmmux",
		VCodec: &model.CodecSpec{
			Name:   "vp8enc",
			Width:  model.IntRange{Min: 176, Max: 1280},
			Height: model.IntRange{Min: 144, Max: 720},
			Rate:   model.RationalRange{Min: model.R(1, 1), Max: model.R(30, 1)},
			Passes: []string{"multipass-mode=first-pass", "multipass-mode=last-pass"},
		},
		ACodec: &model.CodecSpec{
			Name:       "vorbisenc",
			SampleRate: model.IntRange{Min: 8000, Max: 48000},
			Channels:   model.IntRange{Min: 1, Max: 2},
			Passes:     []string{"quality=0.4"},
		},
	}
}

func testDescriptor() *model.MediaDescriptor {
	return &model.MediaDescriptor{
		URI:      "file:///in.mkv",
		HasVideo: true, HasAudio: true,
		Width: 1920, Height: 1080,
		FrameRate:     model.R(25, 1),
		VideoDuration: 10 * time.Second,
		AudioDuration: 10 * time.Second,
		Size:          10_000_000,
	}
}

func testOptions() model.TranscodeOptions {
	opts := model.DefaultOptions()
	opts.URI = "file:///in.mkv"
	opts.OutputURI = "file:///out.webm"
	return opts
}

var avPads = []scriptPad{{"dec.src_0", model.PadVideo}, {"dec.src_1", model.PadAudio}}

type harness struct {
	ctrl   *Controller
	engine *fakeEngine
	clock  *clock.Mock

	mu     sync.Mutex
	events []Event
	errCh  chan error
}

func newHarness(t *testing.T, preset *model.Preset, sc script, disc Discoverer, cfg Config) *harness {
	t.Helper()
	h := &harness{
		engine: &fakeEngine{script: sc},
		clock:  clock.NewMock(time.Unix(1_700_000_000, 0)),
		errCh:  make(chan error, 1),
	}
	c, err := New(preset, testOptions(), cfg, Deps{Engine: h.engine, Discoverer: disc, Clock: h.clock})
	require.NoError(t, err)
	c.Subscribe(func(ev Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, ev)
	})
	h.ctrl = c
	return h
}

func (h *harness) start(ctx context.Context) {
	go func() { h.errCh <- h.ctrl.Run(ctx) }()
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("controller did not finish, state %s", h.ctrl.State())
		return nil
	}
}

func (h *harness) types() []EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]EventType, 0, len(h.events))
	for _, ev := range h.events {
		if ev.Type == EventMessage || ev.Type == EventProgress {
			continue
		}
		out = append(out, ev.Type)
	}
	return out
}

func (h *harness) eventsOf(typ EventType) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, ev := range h.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestRun_TwoPassJobCompletes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, eosOnPlay: true},
		fakeDiscoverer{desc: testDescriptor()}, Config{CPUCount: 4})
	h.start(context.Background())
	require.NoError(t, h.wait(t))

	assert.Equal(t, StateComplete, h.ctrl.State())
	assert.Equal(t, []EventType{
		EventDiscovered,
		EventPassSetup, EventPassComplete,
		EventPassSetup, EventPassComplete,
		EventComplete,
	}, h.types())

	graphs := h.engine.built()
	require.Len(t, graphs, 2)

	first, last := graphs[0], graphs[1]
	// Pass 0 carries video only; the audio pad is left unlinked.
	require.Len(t, first.links, 1)
	assert.Equal(t, "dec.src_0", first.links[0].PadID)
	assert.Contains(t, first.links[0].Launch, "multipass-mode=first-pass")
	require.Len(t, last.links, 2)
	assert.Contains(t, last.links[1].Launch, "vorbisenc")

	for _, g := range graphs {
		assert.True(t, g.closed)
		assert.Equal(t, []string{graph.PlaceholderName}, g.removed)
		assert.ElementsMatch(t, []string{"dec.src_0", "dec.src_1"}, g.unblocked)
		require.Len(t, g.seeks, 1)
		assert.True(t, g.seeks[0].Flags.Has(seek.FlagFlush))
		assert.Equal(t, engine.StateStopped, g.State())
	}

	setups := h.eventsOf(EventPassSetup)
	require.Len(t, setups, 2)
	assert.Nil(t, setups[0].Spec.Audio)
	assert.NotNil(t, setups[1].Spec.Audio)
	assert.Equal(t, 1280, setups[0].Spec.Width)
	assert.Equal(t, "webmmux", setups[0].Spec.Muxer)

	rep := h.ctrl.Report()
	assert.True(t, rep.Succeeded())
	assert.Len(t, rep.Passes, 2)
	require.NotNil(t, rep.Window)
	assert.InDelta(t, 10.0, rep.Window.OutputDuration, 1e-9)
	assert.Equal(t, 4, h.ctrl.Threads())
}

func TestRun_PadsAnnouncedDuringBuildAreBlocked(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, eosOnPlay: true, padsOnBuild: true},
		fakeDiscoverer{desc: testDescriptor()}, Config{})
	h.start(context.Background())
	require.NoError(t, h.wait(t))

	assert.Equal(t, StateComplete, h.ctrl.State())
	for _, g := range h.engine.built() {
		assert.ElementsMatch(t, []string{"dec.src_0", "dec.src_1"}, g.blocked)
		assert.ElementsMatch(t, []string{"dec.src_0", "dec.src_1"}, g.unblocked)
	}
}

func TestRun_ZeroPadsCompletesEmptyPass(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	preset := testPreset()
	preset.VCodec.Passes = preset.VCodec.Passes[:1]
	h := newHarness(t, preset, script{}, fakeDiscoverer{desc: testDescriptor()}, Config{})
	h.start(context.Background())
	require.NoError(t, h.wait(t))

	graphs := h.engine.built()
	require.Len(t, graphs, 1)
	assert.Empty(t, graphs[0].links)
	assert.NotContains(t, h.types(), EventPassSetup)
	assert.Contains(t, h.types(), EventComplete)
}

func TestRun_WatchdogFailsWithPipelineHang(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, withholdBlock: true},
		fakeDiscoverer{desc: testDescriptor()}, Config{WatchdogTimeout: 5 * time.Second})
	h.start(context.Background())

	require.Eventually(t, func() bool {
		return h.ctrl.State() == StateAwaitingQuiescence && h.clock.Pending() == 1
	}, 2*time.Second, time.Millisecond)
	h.clock.Advance(4 * time.Second)
	assert.Equal(t, StateAwaitingQuiescence, h.ctrl.State())
	h.clock.Advance(time.Second)

	err := h.wait(t)
	require.Error(t, err)
	assert.Equal(t, model.KindPipelineHang, model.KindOf(err))
	assert.ErrorIs(t, err, model.ErrPipelineHang)

	g := h.engine.built()[0]
	assert.True(t, g.closed)
	assert.ElementsMatch(t, []string{"dec.src_0", "dec.src_1"}, g.unblocked)

	errs := h.eventsOf(EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, model.KindPipelineHang, errs[0].Code)
	assert.Equal(t, string(model.KindPipelineHang), h.ctrl.Report().Outcome)
}

func TestRun_SeekFailureReleasesPads(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, seekErr: errors.New("not seekable")},
		fakeDiscoverer{desc: testDescriptor()}, Config{})
	h.start(context.Background())

	err := h.wait(t)
	assert.Equal(t, model.KindSeekFailure, model.KindOf(err))
	var merr *model.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 0, merr.Pass)

	g := h.engine.built()[0]
	assert.ElementsMatch(t, []string{"dec.src_0", "dec.src_1"}, g.unblocked)
	assert.Equal(t, []string{graph.PlaceholderName}, g.removed)
	assert.Empty(t, g.outputs)
	assert.True(t, g.closed)
}

func TestRun_InvalidWindowIsSeekFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	eng := &fakeEngine{script: script{pads: avPads}}
	opts := testOptions()
	opts.Start, opts.Stop = 8, 4
	c, err := New(testPreset(), opts, Config{}, Deps{
		Engine: eng, Discoverer: fakeDiscoverer{desc: testDescriptor()}, Clock: clock.NewMock(time.Unix(0, 0)),
	})
	require.NoError(t, err)

	err = c.Run(context.Background())
	assert.Equal(t, model.KindSeekFailure, model.KindOf(err))
	assert.ErrorIs(t, err, seek.ErrInvalidWindow)
}

func TestRun_StallForcesEndOfStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	preset := testPreset()
	preset.VCodec.Passes = preset.VCodec.Passes[:1]
	h := newHarness(t, preset, script{pads: avPads, position: 2 * time.Second},
		fakeDiscoverer{desc: testDescriptor()}, Config{HangPolls: 3, PollInterval: time.Second})
	h.start(context.Background())

	for i := 0; i < 10 && h.ctrl.State() != StateComplete; i++ {
		ok := assert.Eventually(t, func() bool {
			return h.clock.Pending() > 0 || h.ctrl.State().Terminal()
		}, 2*time.Second, time.Millisecond)
		require.True(t, ok)
		h.clock.Advance(time.Second)
	}
	require.NoError(t, h.wait(t))

	g := h.engine.built()[0]
	assert.Equal(t, 1, g.eosPosted)
	progress := h.eventsOf(EventProgress)
	require.Len(t, progress, 3)
	assert.InDelta(t, 0.2, progress[2].Status.Percent, 1e-9)
}

func TestRun_FatalMessageFailsJob(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, fatalOnPlay: true},
		fakeDiscoverer{desc: testDescriptor()}, Config{})
	h.start(context.Background())

	err := h.wait(t)
	assert.Equal(t, model.KindRuntimeEngineError, model.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "encoder crashed"))
	msgs := h.eventsOf(EventMessage)
	require.NotEmpty(t, msgs)
	assert.Equal(t, engine.MessageError, msgs[len(msgs)-1].Message.Kind)
}

func TestRun_DiscoveryOutcomes(t *testing.T) {
	tests := []struct {
		name string
		disc fakeDiscoverer
		want model.ErrorKind
	}{
		{"probe error", fakeDiscoverer{err: errors.New("no such file")}, model.KindDiscoveryFailure},
		{"no streams", fakeDiscoverer{desc: &model.MediaDescriptor{URI: "file:///x.txt"}}, model.KindNoUsableStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
			h := newHarness(t, testPreset(), script{}, tt.disc, Config{})
			h.start(context.Background())

			err := h.wait(t)
			assert.Equal(t, tt.want, model.KindOf(err))
			var merr *model.Error
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, -1, merr.Pass)
			assert.Empty(t, h.engine.built())

			disc := h.eventsOf(EventDiscovered)
			require.Len(t, disc, 1)
			assert.False(t, disc[0].IsMedia)
		})
	}
}

func TestRun_BuildErrorIsGraphConstructionFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{}, fakeDiscoverer{desc: testDescriptor()}, Config{})
	h.engine.buildErr = errors.New("no element vp8enc")
	h.start(context.Background())

	err := h.wait(t)
	assert.Equal(t, model.KindGraphConstructionFailure, model.KindOf(err))
}

func TestStop_CancelsRunningJob(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, position: time.Second},
		fakeDiscoverer{desc: testDescriptor()}, Config{})
	h.start(context.Background())
	require.Eventually(t, func() bool { return h.ctrl.State() == StateRunning }, 2*time.Second, time.Millisecond)

	st, err := h.ctrl.Status(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.1, st.Percent, 1e-9)
	assert.InDelta(t, 0.05, st.Job, 1e-9)

	h.ctrl.Stop()
	h.ctrl.Stop()
	err = h.wait(t)
	assert.Equal(t, model.KindCancelled, model.KindOf(err))
	assert.ErrorIs(t, err, ErrStopped)
	assert.True(t, h.engine.built()[0].closed)

	_, err = h.ctrl.Status(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveGraph)
}

func TestRun_ContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, withholdBlock: true},
		fakeDiscoverer{desc: testDescriptor()}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	h.start(ctx)
	require.Eventually(t, func() bool { return h.ctrl.State() == StateAwaitingQuiescence }, 2*time.Second, time.Millisecond)
	cancel()

	err := h.wait(t)
	assert.Equal(t, model.KindCancelled, model.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.clock.Pending())
}

func TestStatus_NoActiveGraph(t *testing.T) {
	h := newHarness(t, testPreset(), script{}, fakeDiscoverer{desc: testDescriptor()}, Config{})
	_, err := h.ctrl.Status(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveGraph)
}

func TestRun_Twice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, testPreset(), script{pads: avPads, eosOnPlay: true}, fakeDiscoverer{desc: testDescriptor()}, Config{})
	h.start(context.Background())
	require.NoError(t, h.wait(t))
	assert.ErrorIs(t, h.ctrl.Run(context.Background()), ErrAlreadyRunning)
}

func TestNew_Validation(t *testing.T) {
	deps := Deps{Engine: &fakeEngine{}, Discoverer: fakeDiscoverer{}}
	_, err := New(nil, testOptions(), Config{}, deps)
	assert.Error(t, err)
	_, err = New(testPreset(), model.DefaultOptions(), Config{}, deps)
	assert.ErrorContains(t, err, "uri is required")
	_, err = New(testPreset(), testOptions(), Config{}, Deps{})
	assert.Error(t, err)

	c, err := New(testPreset(), testOptions(), Config{}, deps)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Threads())
	assert.NotEmpty(t, c.RunToken())
	assert.Equal(t, StateIdle, c.State())
}

func TestBusListener_PublishesOnJobTopic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.NewMemoryBus()
	h := newHarness(t, testPreset(), script{pads: avPads, eosOnPlay: true}, fakeDiscoverer{desc: testDescriptor()}, Config{})

	sub, err := b.Subscribe(context.Background(), bus.JobTopic(h.ctrl.JobID()))
	require.NoError(t, err)
	defer sub.Close()
	h.ctrl.Subscribe(BusListener(context.Background(), b))

	h.start(context.Background())
	require.NoError(t, h.wait(t))

	var got []EventType
	for len(sub.C()) > 0 {
		ev := (<-sub.C()).(Event)
		assert.Equal(t, h.ctrl.JobID(), ev.JobID)
		got = append(got, ev.Type)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, EventDiscovered, got[0])
	assert.Equal(t, EventComplete, got[len(got)-1])
}

type refusingBus struct{}

func (refusingBus) Publish(context.Context, string, bus.Message) error {
	return errors.New("bus full")
}

func (refusingBus) Subscribe(context.Context, string) (bus.Subscriber, error) {
	return nil, errors.New("not supported")
}

func TestBusListener_LogsPublishFailure(t *testing.T) {
	var buf bytes.Buffer
	log.Reconfigure(log.Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { log.Reconfigure(log.Config{}) })

	listen := BusListener(context.Background(), refusingBus{})
	listen(Event{Type: EventComplete, JobID: "job-1"})

	out := buf.String()
	assert.Contains(t, out, "event not published")
	assert.Contains(t, out, "bus full")
	assert.Contains(t, out, "job-1")
}
