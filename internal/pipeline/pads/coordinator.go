// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pads tracks dynamically created decoder pads until the graph
// topology is known and every pad is held blocked.
//
// pending = created pads not yet confirmed blocked + 1 until no-more-pads.
// Quiescence is reached when pending drops to zero and is signalled once.
// Callbacks may arrive in any order and from any goroutine.
package pads

import (
	"sync"

	"github.com/ManuGH/passforge/internal/pipeline/model"
)

// Blocker holds and releases pad data flow. BlockPad is asynchronous: the
// engine confirms later through Coordinator.BlockConfirmed.
type Blocker interface {
	BlockPad(id string)
	UnblockPad(id string)
}

// Pad is a decoder output seen during this pass.
type Pad struct {
	ID        string
	Kind      model.PadKind
	Confirmed bool
}

// Coordinator implements the pending-pad protocol for one pass.
type Coordinator struct {
	blocker     Blocker
	onQuiescent func()

	mu         sync.Mutex
	pending    int
	noMorePads bool
	quiescent  bool
	released   bool
	order      []string
	pads       map[string]*Pad
}

// New returns a coordinator with the no-more-pads unit pending.
// onQuiescent runs exactly once, on the goroutine delivering the last decrement.
func New(blocker Blocker, onQuiescent func()) *Coordinator {
	return &Coordinator{
		blocker:     blocker,
		onQuiescent: onQuiescent,
		pending:     1,
		pads:        make(map[string]*Pad),
	}
}

// PadCreated records a new pad and requests that it be blocked.
// Duplicate notifications are ignored. Pads appearing after quiescence are
// still blocked so UnblockAll releases them, but they no longer count.
func (c *Coordinator) PadCreated(id string, kind model.PadKind) {
	c.mu.Lock()
	if _, dup := c.pads[id]; dup || c.released {
		c.mu.Unlock()
		return
	}
	c.pads[id] = &Pad{ID: id, Kind: kind}
	c.order = append(c.order, id)
	if !c.quiescent {
		c.pending++
	}
	c.mu.Unlock()

	c.blocker.BlockPad(id)
}

// BlockConfirmed counts a pad as safely blocked. Confirmations after
// quiescence, for unknown pads or repeated ones are ignored.
func (c *Coordinator) BlockConfirmed(id string) {
	c.mu.Lock()
	p, ok := c.pads[id]
	if !ok || p.Confirmed || c.quiescent {
		c.mu.Unlock()
		return
	}
	p.Confirmed = true
	fire := c.decLocked()
	c.mu.Unlock()

	if fire {
		c.onQuiescent()
	}
}

// NoMorePads releases the fixed unit. Only the first call counts.
func (c *Coordinator) NoMorePads() {
	c.mu.Lock()
	if c.noMorePads || c.quiescent {
		c.noMorePads = true
		c.mu.Unlock()
		return
	}
	c.noMorePads = true
	fire := c.decLocked()
	c.mu.Unlock()

	if fire {
		c.onQuiescent()
	}
}

func (c *Coordinator) decLocked() bool {
	c.pending--
	if c.pending == 0 {
		c.quiescent = true
		return true
	}
	return false
}

// Pending returns the current counter value.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Quiescent reports whether quiescence was reached.
func (c *Coordinator) Quiescent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quiescent
}

// Pads returns a snapshot of the recorded pads in creation order.
func (c *Coordinator) Pads() []Pad {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pad, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.pads[id])
	}
	return out
}

// UnblockAll releases every recorded pad. It is safe to call on every exit
// path; only the first call unblocks, later pad notifications are dropped.
func (c *Coordinator) UnblockAll() int {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return 0
	}
	c.released = true
	ids := append([]string(nil), c.order...)
	c.mu.Unlock()

	for _, id := range ids {
		c.blocker.UnblockPad(id)
	}
	return len(ids)
}
