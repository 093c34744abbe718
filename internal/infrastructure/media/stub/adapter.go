// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stub is a simulated media engine. It never touches media: pads
// are derived from a fixed descriptor and playback advances a virtual
// position until the seek window is exhausted.
package stub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/clock"
	"github.com/ManuGH/passforge/internal/pipeline/engine"
	"github.com/ManuGH/passforge/internal/pipeline/graph"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/seek"
)

const (
	defaultTick  = 100 * time.Millisecond
	defaultSpeed = 1.0
)

// Discoverer is an upstream discovery service the adapter can front.
type Discoverer interface {
	Discover(ctx context.Context, uri string) (*model.MediaDescriptor, error)
}

// Config shapes the simulation.
type Config struct {
	// Descriptor is returned by Discover and decides which pads appear.
	Descriptor *model.MediaDescriptor
	// Source, when set, replaces Descriptor: Discover delegates to it and
	// later graphs simulate the probed streams.
	Source Discoverer
	// Speed is media time advanced per unit of clock time.
	Speed float64
	Tick  time.Duration
	// Caps is the static encoder capability table.
	Caps  map[string]model.EncoderCaps
	Clock clock.Clock
}

// Adapter implements engine.Engine and the controller's Discoverer.
type Adapter struct {
	cfg Config

	mu     sync.Mutex
	desc   *model.MediaDescriptor
	active map[string]*Graph
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Speed <= 0 {
		cfg.Speed = defaultSpeed
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Adapter{
		cfg:    cfg,
		desc:   cfg.Descriptor,
		active: make(map[string]*Graph),
	}
}

// Discover returns a copy of the configured descriptor for uri.
func (a *Adapter) Discover(ctx context.Context, uri string) (*model.MediaDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.cfg.Source != nil {
		d, err := a.cfg.Source.Discover(ctx, uri)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.desc = d
		a.mu.Unlock()
		return d, nil
	}
	desc := a.descriptor()
	if desc == nil {
		return nil, fmt.Errorf("stub: no descriptor for %s", uri)
	}
	d := *desc
	d.URI = uri
	return &d, nil
}

func (a *Adapter) descriptor() *model.MediaDescriptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.desc
}

func (a *Adapter) Capabilities(ctx context.Context, encoder string) (model.EncoderCaps, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.cfg.Caps[encoder], nil
}

func (a *Adapter) Build(ctx context.Context, launch string, sink engine.EventSink) (engine.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.Contains(launch, graph.PlaceholderName) {
		return nil, fmt.Errorf("stub: launch has no %q element", graph.PlaceholderName)
	}
	if sink == nil {
		return nil, errors.New("stub: event sink is required")
	}

	g := &Graph{
		id:       "stub-" + uuid.New().String(),
		adapter:  a,
		sink:     sink,
		state:    engine.NewStateTracker(),
		elements: map[string]bool{graph.PlaceholderName: true},
		pads:     map[string]model.PadKind{},
		launch:   launch,
	}
	if d := a.descriptor(); d != nil {
		g.stop = d.Duration()
		n := 0
		if d.HasVideo {
			g.padOrder = append(g.padOrder, fmt.Sprintf("%s.src_%d", graph.SourceName, n))
			g.pads[g.padOrder[n]] = model.PadVideo
			n++
		}
		if d.HasAudio {
			g.padOrder = append(g.padOrder, fmt.Sprintf("%s.src_%d", graph.SourceName, n))
			g.pads[g.padOrder[n]] = model.PadAudio
		}
	}

	a.mu.Lock()
	a.active[g.id] = g
	a.mu.Unlock()
	logger := log.WithComponentFromContext(ctx, "stub-engine")
	logger.Debug().Str("graph", g.id).Int("pads", len(g.padOrder)).Msg("graph built")
	return g, nil
}

// Active returns the number of graphs not yet closed.
func (a *Adapter) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

func (a *Adapter) release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, id)
}

// Graph is one simulated graph.
type Graph struct {
	id      string
	adapter *Adapter
	sink    engine.EventSink
	state   *engine.StateTracker
	launch  string

	mu       sync.Mutex
	closed   bool
	elements map[string]bool
	pads     map[string]model.PadKind
	padOrder []string
	blocked  map[string]bool
	links    []engine.BranchLink
	position time.Duration
	stop     time.Duration
	seeked   bool
	eosSent  bool
	timers   map[int]clock.Timer
	timerSeq int
	ticker   clock.Timer
}

func (g *Graph) ID() string { return g.id }

func (g *Graph) State() engine.PlaybackState { return g.state.Get() }

func (g *Graph) SetState(ctx context.Context, to engine.PlaybackState) error {
	if err := g.live(); err != nil {
		return err
	}
	from, err := g.state.Set(to)
	if err != nil {
		return err
	}
	switch {
	case from == engine.StateIdle && to != engine.StateStopped:
		g.after(0, g.announcePads)
	case to == engine.StatePlaying && from != engine.StatePlaying:
		g.mu.Lock()
		g.ticker = g.adapter.cfg.Clock.AfterFunc(g.adapter.cfg.Tick, g.tick)
		g.mu.Unlock()
	case to != engine.StatePlaying:
		g.stopTicker()
	}
	return nil
}

func (g *Graph) announcePads() {
	g.mu.Lock()
	order := append([]string(nil), g.padOrder...)
	g.mu.Unlock()
	for _, id := range order {
		g.sink.PadAdded(id, g.pads[id])
	}
	g.sink.NoMorePads()
}

func (g *Graph) Seek(ctx context.Context, req seek.Request) error {
	if err := g.live(); err != nil {
		return err
	}
	if req.Rate != 1 {
		return fmt.Errorf("stub: unsupported seek rate %g", req.Rate)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop > 0 && req.Start > g.stop {
		return fmt.Errorf("stub: seek start %s beyond duration %s", req.Start, g.stop)
	}
	g.position = req.Start
	if req.StopType == seek.StopSet {
		g.stop = req.Stop
	}
	g.seeked = true
	return nil
}

// BlockPad confirms the block on the next clock turn.
func (g *Graph) BlockPad(id string) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if g.blocked == nil {
		g.blocked = map[string]bool{}
	}
	g.blocked[id] = true
	g.mu.Unlock()
	g.after(0, func() { g.sink.PadBlocked(id) })
}

func (g *Graph) UnblockPad(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.blocked, id)
}

// Blocked reports whether a pad is currently held.
func (g *Graph) Blocked(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked[id]
}

func (g *Graph) RemoveElement(ctx context.Context, name string) error {
	if err := g.live(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.elements[name] {
		return fmt.Errorf("%w: %s", engine.ErrElementNotFound, name)
	}
	delete(g.elements, name)
	return nil
}

func (g *Graph) AddOutput(ctx context.Context, launch string) error {
	if err := g.live(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, name := range []string{graph.MuxName, graph.SinkName} {
		if strings.Contains(launch, "name="+name) {
			g.elements[name] = true
		}
	}
	return nil
}

func (g *Graph) AttachBranch(ctx context.Context, link engine.BranchLink) error {
	if err := g.live(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pads[link.PadID]; !ok {
		return fmt.Errorf("%w: pad %s", engine.ErrElementNotFound, link.PadID)
	}
	if !g.elements[link.Target] {
		return fmt.Errorf("%w: target %s", engine.ErrElementNotFound, link.Target)
	}
	g.links = append(g.links, link)
	return nil
}

// Links returns the branches attached so far.
func (g *Graph) Links() []engine.BranchLink {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]engine.BranchLink(nil), g.links...)
}

func (g *Graph) Position(ctx context.Context) (time.Duration, error) {
	if err := g.live(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seeked {
		return 0, engine.ErrPositionUnavailable
	}
	return g.position, nil
}

func (g *Graph) PostEOS() {
	g.after(0, g.sendEOS)
}

func (g *Graph) tick() {
	g.mu.Lock()
	if g.closed || g.state.Get() != engine.StatePlaying {
		g.mu.Unlock()
		return
	}
	cfg := g.adapter.cfg
	if len(g.links) > 0 {
		g.position += time.Duration(float64(cfg.Tick) * cfg.Speed)
	}
	done := g.stop > 0 && g.position >= g.stop
	if done {
		g.position = g.stop
		g.ticker = nil
	} else {
		g.ticker = cfg.Clock.AfterFunc(cfg.Tick, g.tick)
	}
	g.mu.Unlock()

	if done {
		g.sendEOS()
	}
}

func (g *Graph) sendEOS() {
	g.mu.Lock()
	if g.closed || g.eosSent {
		g.mu.Unlock()
		return
	}
	g.eosSent = true
	g.mu.Unlock()
	g.sink.Message(engine.Message{Kind: engine.MessageEOS, Source: g.id})
}

func (g *Graph) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	timers := make([]clock.Timer, 0, len(g.timers)+1)
	for _, t := range g.timers {
		timers = append(timers, t)
	}
	timers = append(timers, g.ticker)
	g.timers, g.ticker = nil, nil
	g.mu.Unlock()

	for _, t := range timers {
		if t != nil {
			t.Stop()
		}
	}
	g.adapter.release(g.id)
	return nil
}

func (g *Graph) live() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return engine.ErrGraphClosed
	}
	return nil
}

func (g *Graph) after(d time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	if g.timers == nil {
		g.timers = map[int]clock.Timer{}
	}
	g.timerSeq++
	id := g.timerSeq
	g.timers[id] = g.adapter.cfg.Clock.AfterFunc(d, func() {
		g.mu.Lock()
		delete(g.timers, id)
		g.mu.Unlock()
		fn()
	})
}

// pendingTimers returns the number of scheduled callbacks that have not fired.
func (g *Graph) pendingTimers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}

func (g *Graph) stopTicker() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
}

var (
	_ engine.Engine = (*Adapter)(nil)
	_ engine.Graph  = (*Graph)(nil)
)
