// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"time"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/bus"
	"github.com/ManuGH/passforge/internal/pipeline/engine"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/progress"
)

// EventType enumerates what observers are told.
type EventType string

const (
	EventDiscovered   EventType = "discovered"
	EventPassSetup    EventType = "pass-setup"
	EventPassComplete EventType = "pass-complete"
	EventMessage      EventType = "message"
	EventProgress     EventType = "progress"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Event is delivered to every listener. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	JobID     string
	Pass      int
	PassCount int
	Time      time.Time

	// EventDiscovered
	Descriptor *model.MediaDescriptor
	IsMedia    bool

	// EventPassSetup
	Spec *model.PassSpec

	// EventMessage
	Message *engine.Message

	// EventProgress
	Status *progress.Status

	// EventError
	Err  error
	Code model.ErrorKind
}

// Listener observes controller events. Listeners run on the controller loop
// and must not block.
type Listener func(Event)

const publishTimeout = 250 * time.Millisecond

// BusListener republishes events on the job topic of b.
// Slow subscribers lose events instead of stalling the controller.
func BusListener(ctx context.Context, b bus.Bus) Listener {
	return func(ev Event) {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := b.Publish(pctx, bus.JobTopic(ev.JobID), ev); err != nil {
			logger := log.WithComponent("controller")
			logger.Debug().
				Err(err).
				Str(log.FieldJobID, ev.JobID).
				Str(log.FieldEvent, string(ev.Type)).
				Msg("event not published")
		}
	}
}
