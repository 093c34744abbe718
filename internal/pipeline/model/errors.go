// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a job failure. Keep these stable: metrics labels and
// the error event code depend on them.
type ErrorKind string

const (
	KindDiscoveryFailure          ErrorKind = "DiscoveryFailure"
	KindNoUsableStream            ErrorKind = "NoUsableStream"
	KindGraphConstructionFailure  ErrorKind = "GraphConstructionFailure"
	KindSeekFailure               ErrorKind = "SeekFailure"
	KindPipelineHang              ErrorKind = "PipelineHang"
	KindEncoderNegotiationFailure ErrorKind = "EncoderNegotiationFailure"
	KindRuntimeEngineError        ErrorKind = "RuntimeEngineError"
	KindCancelled                 ErrorKind = "Cancelled"
)

var (
	ErrDiscoveryFailure          = errors.New("discovery failure")
	ErrNoUsableStream            = errors.New("no usable stream")
	ErrGraphConstructionFailure  = errors.New("graph construction failure")
	ErrSeekFailure               = errors.New("seek failure")
	ErrPipelineHang              = errors.New("pipeline hang")
	ErrEncoderNegotiationFailure = errors.New("encoder negotiation failure")
	ErrRuntimeEngineError        = errors.New("runtime engine error")
	ErrCancelled                 = errors.New("cancelled")
)

var kindSentinels = map[ErrorKind]error{
	KindDiscoveryFailure:          ErrDiscoveryFailure,
	KindNoUsableStream:            ErrNoUsableStream,
	KindGraphConstructionFailure:  ErrGraphConstructionFailure,
	KindSeekFailure:               ErrSeekFailure,
	KindPipelineHang:              ErrPipelineHang,
	KindEncoderNegotiationFailure: ErrEncoderNegotiationFailure,
	KindRuntimeEngineError:        ErrRuntimeEngineError,
	KindCancelled:                 ErrCancelled,
}

// Sentinel returns the errors.Is target for kind, or nil for unknown kinds.
func (k ErrorKind) Sentinel() error {
	return kindSentinels[k]
}

// Error is a classified job failure.
// Pass is -1 when the failure happened before the first pass was set up.
type Error struct {
	Kind ErrorKind
	Pass int
	Err  error
}

// NewError wraps cause with kind.
func NewError(kind ErrorKind, pass int, cause error) *Error {
	return &Error{Kind: kind, Pass: pass, Err: cause}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, pass int, format string, args ...any) *Error {
	return &Error{Kind: kind, Pass: pass, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if s := e.Kind.Sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Pass >= 0 {
		msg = fmt.Sprintf("%s (pass %d)", msg, e.Pass)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	var out []error
	if s := e.Kind.Sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf extracts the kind of a classified error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
