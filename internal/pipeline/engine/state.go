// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"errors"
	"fmt"
	"sync"
)

// PlaybackState is the engine graph state.
type PlaybackState string

const (
	StateIdle    PlaybackState = "idle"
	StatePaused  PlaybackState = "paused"
	StatePlaying PlaybackState = "playing"
	StateStopped PlaybackState = "stopped"
)

// ErrIllegalStateTransition is returned for transitions outside the table.
var ErrIllegalStateTransition = errors.New("illegal playback state transition")

var legalStates = map[PlaybackState][]PlaybackState{
	StateIdle:    {StatePaused, StatePlaying, StateStopped},
	StatePaused:  {StatePlaying, StateStopped},
	StatePlaying: {StatePaused, StateStopped},
	StateStopped: nil,
}

// CanTransition reports whether from -> to is legal. Same-state requests are no-ops and legal.
func (s PlaybackState) CanTransition(to PlaybackState) bool {
	if s == to {
		return true
	}
	for _, next := range legalStates[s] {
		if next == to {
			return true
		}
	}
	return false
}

// StateTracker enforces the playback transition table for engine adapters.
type StateTracker struct {
	mu    sync.Mutex
	state PlaybackState
}

// NewStateTracker starts in StateIdle.
func NewStateTracker() *StateTracker {
	return &StateTracker{state: StateIdle}
}

func (t *StateTracker) Get() PlaybackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Set applies to. It returns the previous state.
func (t *StateTracker) Set(to PlaybackState) (PlaybackState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	from := t.state
	if !from.CanTransition(to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalStateTransition, from, to)
	}
	t.state = to
	return from, nil
}
