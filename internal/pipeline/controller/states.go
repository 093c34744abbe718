// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import "github.com/ManuGH/passforge/internal/pipeline/fsm"

// State is the controller state.
type State string

const (
	StateIdle               State = "Idle"
	StateDiscovering        State = "Discovering"
	StateNegotiating        State = "Negotiating"
	StateBuilding           State = "Building"
	StateAwaitingQuiescence State = "AwaitingQuiescence"
	StateSeeking            State = "Seeking"
	StateRunning            State = "Running"
	StatePassComplete       State = "PassComplete"
	StateComplete           State = "Complete"
	StateFailed             State = "Failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

type trigger string

const (
	trStart      trigger = "start"
	trDiscovered trigger = "discovered"
	trNegotiated trigger = "negotiated"
	trBuilt      trigger = "built"
	trQuiescent  trigger = "quiescent"
	trSeeked     trigger = "seeked"
	trEOS        trigger = "eos"
	trNextPass   trigger = "next-pass"
	trDone       trigger = "done"
	trFail       trigger = "fail"
)

func transitions() []fsm.Transition[State, trigger] {
	table := []fsm.Transition[State, trigger]{
		{From: StateIdle, Event: trStart, To: StateDiscovering},
		{From: StateDiscovering, Event: trDiscovered, To: StateNegotiating},
		{From: StateNegotiating, Event: trNegotiated, To: StateBuilding},
		{From: StateBuilding, Event: trBuilt, To: StateAwaitingQuiescence},
		{From: StateAwaitingQuiescence, Event: trQuiescent, To: StateSeeking},
		{From: StateSeeking, Event: trSeeked, To: StateRunning},
		{From: StateRunning, Event: trEOS, To: StatePassComplete},
		{From: StatePassComplete, Event: trNextPass, To: StateNegotiating},
		{From: StatePassComplete, Event: trDone, To: StateComplete},
	}
	for _, s := range []State{
		StateIdle, StateDiscovering, StateNegotiating, StateBuilding,
		StateAwaitingQuiescence, StateSeeking, StateRunning, StatePassComplete,
	} {
		table = append(table, fsm.Transition[State, trigger]{From: s, Event: trFail, To: StateFailed})
	}
	return table
}
