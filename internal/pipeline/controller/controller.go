// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package controller drives a transcode job through its passes.
//
// A single loop goroutine (Run) owns all job state. Engine callbacks and
// timers never touch that state directly: they post closures to the loop's
// mailbox. The pad coordinator counter is the only state shared across
// goroutines and carries its own lock.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/metrics"
	"github.com/ManuGH/passforge/internal/pipeline/clock"
	"github.com/ManuGH/passforge/internal/pipeline/engine"
	"github.com/ManuGH/passforge/internal/pipeline/fsm"
	"github.com/ManuGH/passforge/internal/pipeline/graph"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/negotiate"
	"github.com/ManuGH/passforge/internal/pipeline/pads"
	"github.com/ManuGH/passforge/internal/pipeline/progress"
	"github.com/ManuGH/passforge/internal/pipeline/seek"
	"github.com/ManuGH/passforge/internal/report"
	"github.com/ManuGH/passforge/internal/telemetry"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultWatchdogTimeout = 20 * time.Second
	DefaultPollInterval    = time.Second
)

var (
	// ErrNoActiveGraph is returned by Status when no pass graph is running.
	ErrNoActiveGraph = errors.New("no active graph")
	// ErrStopped is the cause recorded when Stop cancels a job.
	ErrStopped = errors.New("stopped by request")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("controller already running")
)

// Discoverer resolves a URI into a media descriptor.
type Discoverer interface {
	Discover(ctx context.Context, uri string) (*model.MediaDescriptor, error)
}

// Config tunes timers and negotiation quirks.
type Config struct {
	WatchdogTimeout time.Duration
	PollInterval    time.Duration
	HangPolls       int
	// CPUCount is the thread count used when the job leaves threads on auto.
	CPUCount int
	Quirks   negotiate.Quirks
}

// Deps are the collaborators of a controller. Clock and Tracer are optional.
type Deps struct {
	Engine     engine.Engine
	Discoverer Discoverer
	Clock      clock.Clock
	Tracer     trace.Tracer
}

// Controller runs one job. Create it with New, observe it with Subscribe and
// drive it with Run.
type Controller struct {
	cfg        Config
	engine     engine.Engine
	discoverer Discoverer
	clock      clock.Clock
	tracer     trace.Tracer
	negotiator *negotiate.Negotiator

	preset   *model.Preset
	opts     model.TranscodeOptions
	jobID    string
	runToken string
	threads  int
	logger   zerolog.Logger

	box     *mailbox
	stopCh  chan struct{}
	stop    sync.Once
	done    chan struct{}
	running atomic.Bool

	listenersMu sync.Mutex
	listeners   []Listener

	// Loop-owned state below.
	ctx         context.Context
	machine     *fsm.Machine[State, trigger]
	desc        *model.MediaDescriptor
	pass        int
	spec        model.PassSpec
	description *graph.Description
	graph       engine.Graph
	gen         int
	coord       *pads.Coordinator
	watchdog    clock.Timer
	poller      clock.Timer
	window      *seek.Window
	reporter    *progress.Reporter
	stalled     bool
	emptyPass   bool
	active      bool
	quiesceFrom time.Time
	progressLog *rate.Limiter
	jobSpan     trace.Span
	passSpan    trace.Span
	passCtx     context.Context
	specs       []model.PassSpec
	started     time.Time
	finished    time.Time
	result      *model.Error
}

// New validates the job and returns an idle controller.
func New(preset *model.Preset, opts model.TranscodeOptions, cfg Config, deps Deps) (*Controller, error) {
	if preset == nil {
		return nil, errors.New("preset is required")
	}
	if deps.Engine == nil || deps.Discoverer == nil {
		return nil, errors.New("engine and discoverer are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HangPolls <= 0 {
		cfg.HangPolls = progress.DefaultHangPolls
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer("passforge/controller")
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = cfg.CPUCount
	}
	if threads <= 0 {
		threads = 1
	}

	machine, err := fsm.New(StateIdle, transitions())
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	c := &Controller{
		cfg:         cfg,
		engine:      deps.Engine,
		discoverer:  deps.Discoverer,
		clock:       deps.Clock,
		tracer:      deps.Tracer,
		negotiator:  negotiate.New(deps.Engine, cfg.Quirks),
		preset:      preset,
		opts:        opts,
		jobID:       jobID,
		runToken:    fmt.Sprintf("%d-%s", deps.Clock.Now().Unix(), uuid.NewString()),
		threads:     threads,
		box:         newMailbox(),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
		machine:     machine,
		progressLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	c.logger = log.Derive(func(zc *zerolog.Context) {
		*zc = zc.Str(log.FieldComponent, "controller").
			Str(log.FieldJobID, jobID).
			Str(log.FieldPreset, preset.Name)
	})
	machine.Observe(func(from, to State, ev trigger) {
		c.logger.Debug().
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Str(log.FieldEvent, string(ev)).
			Int(log.FieldPass, c.pass).
			Msg("state transition")
	})
	return c, nil
}

// JobID identifies the job in logs, events and reports.
func (c *Controller) JobID() string { return c.jobID }

// RunToken is the unique token handed to pass templates.
func (c *Controller) RunToken() string { return c.runToken }

// Threads is the resolved encoder thread count.
func (c *Controller) Threads() int { return c.threads }

// State returns the current controller state.
func (c *Controller) State() State { return c.machine.State() }

// Done is closed once Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Subscribe registers a listener. Listeners added after Run started only
// see later events.
func (c *Controller) Subscribe(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Stop cancels the job from any goroutine. The current graph is torn down
// and Run returns a Cancelled error.
func (c *Controller) Stop() {
	c.stop.Do(func() { close(c.stopCh) })
}

// Run drives the job to completion. It returns nil on success or a
// *model.Error describing the failure.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(log.ContextWithJobID(ctx, c.jobID))
	defer cancel()
	c.ctx, c.jobSpan = c.tracer.Start(ctx, "passforge.job",
		trace.WithAttributes(telemetry.JobAttributes(c.jobID, c.preset.Name, c.preset.PassCount())...))
	c.started = c.clock.Now()

	c.logger.Info().
		Str(log.FieldURI, c.opts.URI).
		Str(log.FieldOutputURI, c.opts.OutputURI).
		Int(log.FieldPassCount, c.preset.PassCount()).
		Str(log.FieldRunToken, c.runToken).
		Msg("job started")
	c.startDiscovery()

	for !c.State().Terminal() {
		select {
		case <-c.box.wake:
			for _, fn := range c.box.drain() {
				fn()
				if c.State().Terminal() {
					break
				}
			}
		case <-c.ctx.Done():
			c.fail(model.KindCancelled, c.ctx.Err())
		case <-c.stopCh:
			c.fail(model.KindCancelled, ErrStopped)
		}
	}

	c.box.close()
	c.finished = c.clock.Now()
	c.endJobSpan()
	close(c.done)
	if c.result != nil {
		return c.result
	}
	return nil
}

// Status reports progress of the running pass. It is answered by the loop.
func (c *Controller) Status(ctx context.Context) (progress.Status, error) {
	if !c.running.Load() {
		return progress.Status{}, ErrNoActiveGraph
	}
	type reply struct {
		st  progress.Status
		err error
	}
	ch := make(chan reply, 1)
	ok := c.box.post(func() {
		st, err := c.status()
		ch <- reply{st, err}
	})
	if !ok {
		return progress.Status{}, ErrNoActiveGraph
	}
	select {
	case r := <-ch:
		return r.st, r.err
	case <-c.done:
		return progress.Status{}, ErrNoActiveGraph
	case <-ctx.Done():
		return progress.Status{}, ctx.Err()
	}
}

func (c *Controller) status() (progress.Status, error) {
	if c.graph == nil || c.reporter == nil {
		return progress.Status{}, ErrNoActiveGraph
	}
	pos, err := c.graph.Position(c.ctx)
	if err != nil {
		return progress.Status{}, fmt.Errorf("query position: %w", err)
	}
	return c.reporter.Compute(pos), nil
}

// Report summarizes the job. Call it after Run returned.
func (c *Controller) Report() *report.Job {
	job := &report.Job{
		JobID:      c.jobID,
		RunToken:   c.runToken,
		Preset:     c.preset.Name,
		URI:        c.opts.URI,
		OutputURI:  c.opts.OutputURI,
		Descriptor: c.desc,
		Passes:     append([]model.PassSpec(nil), c.specs...),
		PassCount:  c.preset.PassCount(),
		Outcome:    report.OutcomeComplete,
		Started:    c.started,
		Finished:   c.finished,
	}
	if w := c.window; w != nil {
		job.Window = &report.Window{
			Start:          w.Start.Seconds(),
			Stop:           w.Stop.Seconds(),
			Bounded:        w.Bounded,
			OutputDuration: w.OutputDuration.Seconds(),
		}
	}
	if c.result != nil {
		job.Outcome = string(c.result.Kind)
		job.Error = c.result.Error()
	}
	return job
}

func (c *Controller) post(fn func()) bool {
	return c.box.post(fn)
}

func (c *Controller) emit(ev Event) {
	ev.JobID = c.jobID
	ev.Pass = c.pass
	ev.PassCount = c.preset.PassCount()
	ev.Time = c.clock.Now()

	c.listenersMu.Lock()
	ls := append([]Listener(nil), c.listeners...)
	c.listenersMu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

// transition fires ev; an edge missing from the table fails the job.
func (c *Controller) transition(ev trigger) bool {
	if _, err := c.machine.Fire(c.ctx, ev); err != nil {
		c.fail(model.KindGraphConstructionFailure, err)
		return false
	}
	return true
}

func (c *Controller) fail(kind model.ErrorKind, cause error) {
	state := c.State()
	if state.Terminal() {
		return
	}
	pass := c.pass
	if state == StateIdle || state == StateDiscovering {
		pass = -1
	}
	c.teardown()
	c.result = model.NewError(kind, pass, cause)
	if _, err := c.machine.Fire(c.cleanupCtx(), trFail); err != nil {
		c.logger.Error().Err(err).Msg("fail transition rejected")
	}

	c.logger.Error().
		Err(cause).
		Str(log.FieldReason, string(kind)).
		Int(log.FieldPass, pass).
		Str(log.FieldOldState, string(state)).
		Msg("job failed")
	metrics.RecordJobOutcome(string(kind))
	c.jobSpan.SetAttributes(telemetry.ErrorAttributes(string(kind))...)
	c.jobSpan.SetStatus(codes.Error, c.result.Error())
	c.emit(Event{Type: EventError, Err: c.result, Code: kind})
}

// teardown releases every per-pass resource. It runs on every exit path.
func (c *Controller) teardown() {
	c.stopWatchdog()
	c.stopPoller()
	if c.coord != nil {
		c.coord.UnblockAll()
	}
	c.closeGraph()
}

func (c *Controller) closeGraph() {
	if c.active {
		metrics.ActivePasses.Dec()
		c.active = false
	}
	if c.graph != nil {
		ctx := c.cleanupCtx()
		if err := c.graph.SetState(ctx, engine.StateStopped); err != nil {
			c.logger.Debug().Err(err).Msg("stop graph")
		}
		if err := c.graph.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close graph")
		}
		c.graph = nil
	}
	// Callbacks still in flight for the old graph are dropped by generation.
	c.gen++
	if c.passSpan != nil {
		c.passSpan.End()
		c.passSpan = nil
	}
}

func (c *Controller) cleanupCtx() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(c.ctx)
}

func (c *Controller) stopWatchdog() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *Controller) stopPoller() {
	if c.poller != nil {
		c.poller.Stop()
		c.poller = nil
	}
}

func (c *Controller) endJobSpan() {
	if c.result == nil {
		c.jobSpan.SetStatus(codes.Ok, "")
	}
	c.jobSpan.End()
}
