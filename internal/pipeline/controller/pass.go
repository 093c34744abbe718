// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/metrics"
	"github.com/ManuGH/passforge/internal/pipeline/engine"
	"github.com/ManuGH/passforge/internal/pipeline/graph"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/negotiate"
	"github.com/ManuGH/passforge/internal/pipeline/pads"
	"github.com/ManuGH/passforge/internal/pipeline/progress"
	"github.com/ManuGH/passforge/internal/pipeline/seek"
	"github.com/ManuGH/passforge/internal/telemetry"
)

func (c *Controller) startDiscovery() {
	if !c.transition(trStart) {
		return
	}
	ctx, uri := c.ctx, c.opts.URI
	go func() {
		desc, err := c.discoverer.Discover(ctx, uri)
		c.post(func() { c.onDiscovered(desc, err) })
	}()
}

func (c *Controller) onDiscovered(desc *model.MediaDescriptor, err error) {
	if c.State() != StateDiscovering {
		return
	}
	isMedia := err == nil && desc.IsMedia()
	c.emit(Event{Type: EventDiscovered, Descriptor: desc, IsMedia: isMedia})

	switch {
	case err != nil:
		c.fail(model.KindDiscoveryFailure, err)
		return
	case !isMedia:
		c.fail(model.KindNoUsableStream, fmt.Errorf("%s has neither audio nor video", c.opts.URI))
		return
	}

	c.desc = desc
	c.reporter = progress.New(c.clock, c.cfg.HangPolls, c.preset.PassCount())
	c.logger.Info().
		Bool("video", desc.HasVideo).
		Bool("audio", desc.HasAudio).
		Dur("duration", desc.Duration()).
		Msg("source discovered")

	c.pass = 0
	if c.transition(trDiscovered) {
		c.setupPass()
	}
}

// setupPass runs Negotiating -> Building -> AwaitingQuiescence for c.pass.
func (c *Controller) setupPass() {
	prepared, err := c.negotiator.Prepare(c.ctx, c.preset, c.desc)
	if err != nil {
		c.fail(model.KindEncoderNegotiationFailure, err)
		return
	}
	spec, err := c.negotiator.Negotiate(negotiate.Request{
		Descriptor: c.desc,
		Preset:     prepared,
		Options:    &c.opts,
		Pass:       c.pass,
	})
	if err != nil {
		c.fail(model.KindEncoderNegotiationFailure, err)
		return
	}
	spec.Muxer = graph.SelectContainer(c.desc, prepared)
	c.spec = spec
	if !c.transition(trNegotiated) {
		return
	}

	desc, err := graph.Build(graph.Input{
		Spec:       spec,
		Preset:     prepared,
		Descriptor: c.desc,
		Options:    &c.opts,
		RunToken:   c.runToken,
		Threads:    c.threads,
	})
	if err != nil {
		c.fail(model.KindGraphConstructionFailure, err)
		return
	}
	for _, d := range desc.Diagnostics {
		c.logger.Warn().Int(log.FieldPass, c.pass).Msg(d)
	}
	c.description = desc

	encoder := ""
	if prepared.VCodec != nil {
		encoder = prepared.VCodec.Name
	}
	c.passCtx, c.passSpan = c.tracer.Start(log.ContextWithPass(c.ctx, c.pass), "passforge.pass", trace.WithAttributes(
		telemetry.PassAttributes(c.pass, spec.Resolution(), spec.FrameRate.String(), spec.Bitrate, encoder, spec.Muxer)...))

	c.gen++
	gen := c.gen
	sink := &passSink{c: c, gen: gen}
	c.coord = pads.New(&sink.blocker, func() {
		c.post(func() { c.onQuiescent(gen) })
	})
	sink.coord = c.coord

	g, err := c.engine.Build(c.passCtx, desc.Source.Render(), sink)
	if err != nil {
		c.fail(model.KindGraphConstructionFailure, err)
		return
	}
	c.graph = g
	sink.blocker.set(g)
	metrics.PassesStartedTotal.Inc()

	if !c.transition(trBuilt) {
		return
	}
	c.quiesceFrom = c.clock.Now()
	c.watchdog = c.clock.AfterFunc(c.cfg.WatchdogTimeout, func() {
		c.post(func() { c.onWatchdog(gen) })
	})
	if err := g.SetState(c.passCtx, engine.StatePaused); err != nil {
		c.fail(model.KindRuntimeEngineError, err)
		return
	}
	c.logger.Debug().
		Int(log.FieldPass, c.pass).
		Str(log.FieldResolution, spec.Resolution()).
		Str(log.FieldContainer, spec.Muxer).
		Msg("graph submitted, waiting for pads")
}

func (c *Controller) onWatchdog(gen int) {
	if gen != c.gen || c.State() != StateAwaitingQuiescence {
		return
	}
	c.watchdog = nil
	c.fail(model.KindPipelineHang, fmt.Errorf("pads not quiescent after %s (%d pending)", c.cfg.WatchdogTimeout, c.coord.Pending()))
}

func (c *Controller) onQuiescent(gen int) {
	if gen != c.gen || c.State() != StateAwaitingQuiescence {
		return
	}
	c.stopWatchdog()
	metrics.QuiescenceSeconds.Observe(c.clock.Now().Sub(c.quiesceFrom).Seconds())
	if !c.transition(trQuiescent) {
		return
	}

	if c.window == nil {
		w, err := seek.Plan(seek.Input{
			Start:       c.opts.Start,
			Stop:        c.opts.Stop,
			Absolute:    c.opts.Absolute,
			MaxDuration: c.opts.MaxDuration,
			Total:       c.desc.Duration(),
		})
		if err != nil {
			c.seekFailed(err)
			return
		}
		c.window = &w
		c.reporter.SetWindow(w.Start, w.OutputDuration)
	}
	if err := c.graph.Seek(c.passCtx, c.window.Request()); err != nil {
		c.seekFailed(err)
		return
	}
	c.attach()
}

// seekFailed releases pads and the placeholder before failing the job.
func (c *Controller) seekFailed(err error) {
	c.coord.UnblockAll()
	if rmErr := c.graph.RemoveElement(c.cleanupCtx(), graph.PlaceholderName); rmErr != nil {
		c.logger.Debug().Err(rmErr).Msg("remove placeholder after seek failure")
	}
	c.fail(model.KindSeekFailure, err)
}

// attach swaps the placeholder for the output tail, links branches and starts playback.
func (c *Controller) attach() {
	g, d := c.graph, c.description
	var attachErr error
	if err := g.RemoveElement(c.passCtx, graph.PlaceholderName); err != nil {
		attachErr = fmt.Errorf("remove placeholder: %w", err)
	} else if err := g.AddOutput(c.passCtx, d.Output.Render()); err != nil {
		attachErr = fmt.Errorf("add output: %w", err)
	}

	attached := 0
	if attachErr == nil {
		linked := map[model.PadKind]bool{}
		ordinals := map[model.PadKind]int{}
		for _, p := range c.coord.Pads() {
			n := ordinals[p.Kind]
			ordinals[p.Kind]++
			b := d.Branch(p.Kind)
			if b == nil || linked[p.Kind] {
				c.logger.Debug().Str(log.FieldPad, p.ID).Str("kind", string(p.Kind)).Msg("pad left unlinked")
				continue
			}
			err := g.AttachBranch(c.passCtx, engine.BranchLink{
				PadID:    p.ID,
				Launch:   b.Render(n),
				InQueue:  b.InQueue(n),
				OutQueue: b.OutQueue(n),
				Target:   d.Target,
			})
			if err != nil {
				c.logger.Warn().Err(err).Str(log.FieldPad, p.ID).Msg("attach branch")
				continue
			}
			linked[p.Kind] = true
			attached++
		}
	}
	// Every pad is released whatever happened above.
	c.coord.UnblockAll()
	if attachErr != nil {
		c.fail(model.KindGraphConstructionFailure, attachErr)
		return
	}

	if !c.transition(trSeeked) {
		return
	}
	c.specs = append(c.specs, c.spec)
	c.reporter.BeginPass(c.pass)
	c.stalled, c.emptyPass = false, false
	c.active = true
	metrics.ActivePasses.Inc()

	if attached == 0 {
		c.logger.Warn().Int(log.FieldPass, c.pass).Msg("no branch attached, completing pass empty")
		c.emptyPass = true
		gen := c.gen
		c.post(func() { c.onMessage(gen, engine.Message{Kind: engine.MessageEOS, Source: "controller"}) })
		return
	}

	if err := g.SetState(c.passCtx, engine.StatePlaying); err != nil {
		c.fail(model.KindRuntimeEngineError, err)
		return
	}
	c.schedulePoll()
	spec := c.spec
	c.logger.Info().
		Int(log.FieldPass, c.pass).
		Int(log.FieldPassCount, c.preset.PassCount()).
		Int("branches", attached).
		Msg("pass running")
	c.emit(Event{Type: EventPassSetup, Spec: &spec})
}

func (c *Controller) schedulePoll() {
	gen := c.gen
	c.poller = c.clock.AfterFunc(c.cfg.PollInterval, func() {
		c.post(func() { c.onPoll(gen) })
	})
}

func (c *Controller) onPoll(gen int) {
	if gen != c.gen || c.State() != StateRunning || c.graph == nil {
		return
	}
	c.poller = nil
	pos, err := c.graph.Position(c.passCtx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("position query failed")
		c.schedulePoll()
		return
	}
	st, stalled := c.reporter.Poll(pos)
	metrics.JobProgress.Set(st.Job)
	if c.progressLog.Allow() {
		c.logger.Info().
			Int(log.FieldPass, c.pass).
			Float64("percent", st.Percent).
			Str("remaining", st.Remaining).
			Msg("progress")
	}
	c.emit(Event{Type: EventProgress, Status: &st})

	if stalled {
		c.logger.Warn().
			Int(log.FieldPass, c.pass).
			Float64("percent", st.Percent).
			Int("polls", c.cfg.HangPolls).
			Msg("progress stalled, forcing end of stream")
		c.stalled = true
		c.graph.PostEOS()
		return
	}
	c.schedulePoll()
}

func (c *Controller) onMessage(gen int, msg engine.Message) {
	if gen != c.gen || c.State().Terminal() {
		return
	}
	m := msg
	c.emit(Event{Type: EventMessage, Message: &m})

	switch {
	case msg.Kind == engine.MessageEOS:
		if c.State() != StateRunning {
			c.logger.Debug().Str(log.FieldNewState, string(c.State())).Msg("end of stream outside running state ignored")
			return
		}
		c.onEOS()
	case msg.Fatal():
		c.fail(model.KindRuntimeEngineError, fmt.Errorf("%s: %s", msg.Source, msg.Text))
	}
}

func (c *Controller) onEOS() {
	cause := "eos"
	switch {
	case c.emptyPass:
		cause = "empty"
	case c.stalled:
		cause = "stalled"
	}
	c.stopPoller()
	c.coord.UnblockAll()
	c.closeGraph()
	if !c.transition(trEOS) {
		return
	}
	metrics.RecordPassComplete(cause)
	c.logger.Info().Int(log.FieldPass, c.pass).Str(log.FieldReason, cause).Msg("pass complete")
	c.emit(Event{Type: EventPassComplete})

	if c.pass+1 < c.preset.PassCount() {
		c.pass++
		if c.transition(trNextPass) {
			c.setupPass()
		}
		return
	}
	if c.transition(trDone) {
		metrics.RecordJobOutcome(outcomeComplete)
		c.logger.Info().Int(log.FieldPassCount, c.preset.PassCount()).Msg("job complete")
		c.emit(Event{Type: EventComplete})
	}
}

const outcomeComplete = "complete"

// passSink adapts engine callbacks for one pass. Pad callbacks go straight
// to the coordinator; everything else is posted to the loop.
type passSink struct {
	c       *Controller
	gen     int
	coord   *pads.Coordinator
	blocker graphBlocker
}

func (s *passSink) PadAdded(id string, kind model.PadKind) {
	s.coord.PadCreated(id, kind)
}

func (s *passSink) NoMorePads() {
	s.coord.NoMorePads()
}

func (s *passSink) PadBlocked(id string) {
	s.coord.BlockConfirmed(id)
}

func (s *passSink) Message(msg engine.Message) {
	s.c.post(func() { s.c.onMessage(s.gen, msg) })
}

// graphBlocker forwards pad blocking to the graph once Build returned.
// Requests that arrive earlier are queued and replayed by set.
type graphBlocker struct {
	mu      sync.Mutex
	g       engine.Graph
	pending []string
}

func (b *graphBlocker) set(g engine.Graph) {
	b.mu.Lock()
	b.g = g
	queued := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, id := range queued {
		g.BlockPad(id)
	}
}

func (b *graphBlocker) BlockPad(id string) {
	b.mu.Lock()
	g := b.g
	if g == nil {
		b.pending = append(b.pending, id)
	}
	b.mu.Unlock()
	if g != nil {
		g.BlockPad(id)
	}
}

func (b *graphBlocker) UnblockPad(id string) {
	b.mu.Lock()
	g := b.g
	if g == nil {
		b.pending = slices.DeleteFunc(b.pending, func(p string) bool { return p == id })
	}
	b.mu.Unlock()
	if g != nil {
		g.UnblockPad(id)
	}
}

var _ engine.EventSink = (*passSink)(nil)
