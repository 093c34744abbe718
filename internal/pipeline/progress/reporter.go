// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress turns engine position queries into completion ratios and
// remaining-time estimates, and detects passes whose position stops moving.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/ManuGH/passforge/internal/pipeline/clock"
)

// Unknown is reported as remaining time when no estimate is possible.
const Unknown = "Unknown"

// DefaultHangPolls is the number of identical polls treated as a stall.
const DefaultHangPolls = 20

// Status is the answer to a status query.
type Status struct {
	// Percent is the completion of the current pass in [0, 1].
	Percent float64 `json:"percent"`
	// Remaining is "M:SS" or Unknown.
	Remaining string `json:"remaining"`
	// Job is the completion across all passes in [0, 1].
	Job       float64 `json:"job"`
	Pass      int     `json:"pass"`
	PassCount int     `json:"passCount"`
}

// Known reports whether Percent carries an estimate.
func (s Status) Known() bool {
	return s.Remaining != Unknown
}

// Reporter computes status for one job. It is owned by the controller loop
// and is not safe for concurrent use.
type Reporter struct {
	clock     clock.Clock
	hangPolls int

	seekStart      time.Duration
	outputDuration time.Duration
	passCount      int

	pass      int
	passStart time.Time
	last      float64
	repeats   int
}

// New returns a reporter. hangPolls <= 0 selects DefaultHangPolls.
func New(clk clock.Clock, hangPolls, passCount int) *Reporter {
	if clk == nil {
		clk = clock.Real{}
	}
	if hangPolls <= 0 {
		hangPolls = DefaultHangPolls
	}
	if passCount < 1 {
		passCount = 1
	}
	return &Reporter{clock: clk, hangPolls: hangPolls, passCount: passCount, last: -1}
}

// SetWindow records the seek start offset and the output duration.
func (r *Reporter) SetWindow(seekStart, outputDuration time.Duration) {
	r.seekStart = seekStart
	r.outputDuration = outputDuration
}

// BeginPass resets elapsed time and stall tracking for pass.
func (r *Reporter) BeginPass(pass int) {
	r.pass = pass
	r.passStart = r.clock.Now()
	r.last = -1
	r.repeats = 0
}

// Compute derives the status for an engine position without touching stall state.
func (r *Reporter) Compute(position time.Duration) Status {
	st := Status{Remaining: Unknown, Pass: r.pass, PassCount: r.passCount}
	st.Job = float64(r.pass) / float64(r.passCount)
	if r.outputDuration <= 0 {
		return st
	}
	pct := float64(position-r.seekStart) / float64(r.outputDuration)
	if pct <= 0 || math.IsNaN(pct) {
		return st
	}
	if pct > 1 {
		pct = 1
	}
	st.Percent = pct
	st.Job = (float64(r.pass) + pct) / float64(r.passCount)

	elapsed := r.clock.Now().Sub(r.passStart).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	st.Remaining = FormatRemaining(elapsed/pct - elapsed)
	return st
}

// Poll computes the status and reports whether the pass is stalled: the
// rounded percent was identical for hangPolls consecutive polls. Polls
// without an estimate never count towards a stall.
func (r *Reporter) Poll(position time.Duration) (Status, bool) {
	st := r.Compute(position)
	if !st.Known() {
		r.last = -1
		r.repeats = 0
		return st, false
	}
	rounded := math.Round(st.Percent*1e4) / 1e4
	if rounded == r.last {
		r.repeats++
	} else {
		r.last = rounded
		r.repeats = 1
	}
	return st, r.repeats >= r.hangPolls
}

// FormatRemaining renders seconds as M:SS. Minutes are not wrapped into hours.
func FormatRemaining(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
