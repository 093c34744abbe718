// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine defines the port to the media processing engine that runs
// the graphs the controller describes.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/seek"
)

var (
	// ErrGraphClosed is returned by operations on a closed graph.
	ErrGraphClosed = errors.New("graph closed")
	// ErrElementNotFound is returned when a named element does not exist.
	ErrElementNotFound = errors.New("element not found")
	// ErrPositionUnavailable is returned when the engine cannot answer a position query.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// MessageKind classifies engine bus messages.
type MessageKind string

const (
	MessageEOS          MessageKind = "eos"
	MessageError        MessageKind = "error"
	MessageWarning      MessageKind = "warning"
	MessageStateChanged MessageKind = "state-changed"
	MessageApplication  MessageKind = "application"
	MessageOther        MessageKind = "other"
)

// Message is an asynchronous engine notification. Raw carries the engine's
// native representation and is forwarded to observers untouched.
type Message struct {
	Kind   MessageKind
	Source string
	Text   string
	Raw    any
}

// Fatal reports whether the message aborts the job.
func (m Message) Fatal() bool {
	return m.Kind == MessageError
}

// EventSink receives engine callbacks. Implementations must accept calls
// from any goroutine, including pad callbacks made before Build returns.
type EventSink interface {
	PadAdded(id string, kind model.PadKind)
	NoMorePads()
	PadBlocked(id string)
	Message(msg Message)
}

// BranchLink describes a branch to insert between a decoder pad and the output target.
type BranchLink struct {
	PadID    string
	Launch   string
	InQueue  string
	OutQueue string
	// Target is the element the out-queue links into (muxer or sink).
	Target string
}

// Graph is one running engine graph. It is owned by the controller for the
// lifetime of a single pass.
type Graph interface {
	ID() string
	SetState(ctx context.Context, state PlaybackState) error
	State() PlaybackState
	Seek(ctx context.Context, req seek.Request) error
	// BlockPad holds data flow on a pad. Confirmation arrives via EventSink.PadBlocked.
	BlockPad(id string)
	UnblockPad(id string)
	// RemoveElement unlinks and drops a named element (the placeholder sink).
	RemoveElement(ctx context.Context, name string) error
	// AddOutput parses launch text and adds it to the graph (muxer and sink).
	AddOutput(ctx context.Context, launch string) error
	AttachBranch(ctx context.Context, link BranchLink) error
	Position(ctx context.Context) (time.Duration, error)
	// PostEOS injects an end-of-stream message on the graph bus.
	PostEOS()
	Close() error
}

// Engine builds graphs and answers encoder capability queries.
type Engine interface {
	Build(ctx context.Context, launch string, sink EventSink) (Graph, error)
	Capabilities(ctx context.Context, encoder string) (model.EncoderCaps, error)
}
