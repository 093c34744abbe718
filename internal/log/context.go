// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// correlation is the set of IDs carried through a job's contexts.
// Each ContextWith* call copies it, so parents are never mutated.
type correlation struct {
	requestID string
	jobID     string
	pass      int
	hasPass   bool
}

func fromContext(ctx context.Context) correlation {
	if ctx == nil {
		return correlation{}
	}
	c, _ := ctx.Value(ctxKey{}).(correlation)
	return c
}

func with(ctx context.Context, fn func(*correlation)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := fromContext(ctx)
	fn(&c)
	return context.WithValue(ctx, ctxKey{}, c)
}

// ContextWithRequestID stores the provided request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, func(c *correlation) { c.requestID = id })
}

// ContextWithJobID stores the provided job ID in the context.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	return with(ctx, func(c *correlation) { c.jobID = id })
}

// ContextWithPass stores the zero-based pass index in the context.
func ContextWithPass(ctx context.Context, pass int) context.Context {
	return with(ctx, func(c *correlation) { c.pass, c.hasPass = pass, true })
}

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string {
	return fromContext(ctx).requestID
}

// JobIDFromContext extracts the job ID from context if present.
func JobIDFromContext(ctx context.Context) string {
	return fromContext(ctx).jobID
}

// PassFromContext returns the pass index and whether one was set.
func PassFromContext(ctx context.Context) (int, bool) {
	c := fromContext(ctx)
	return c.pass, c.hasPass
}

// WithContext enriches the supplied logger with correlation fields from context.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	c := fromContext(ctx)
	if c == (correlation{}) {
		return logger
	}
	builder := logger.With()
	if c.requestID != "" {
		builder = builder.Str(FieldRequestID, c.requestID)
	}
	if c.jobID != "" {
		builder = builder.Str(FieldJobID, c.jobID)
	}
	if c.hasPass {
		builder = builder.Int(FieldPass, c.pass)
	}
	return builder.Logger()
}

// WithComponentFromContext returns a logger annotated with the component
// name and enriched with correlation fields from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
