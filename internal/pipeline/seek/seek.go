// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package seek plans the trim window of a job and the seek request that
// positions the decoder on it.
package seek

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// OpenEnded is the stop value meaning "until the end of the source".
const OpenEnded = -1

// ErrInvalidWindow is returned for start/stop combinations that cannot be planned.
var ErrInvalidWindow = errors.New("invalid seek window")

// Flags are the seek flags sent to the engine.
type Flags uint8

const (
	FlagFlush Flags = 1 << iota
	FlagAccurate
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// StopType tells the engine whether Request.Stop is meaningful.
type StopType string

const (
	StopNone StopType = "none"
	StopSet  StopType = "set"
)

// Request is the seek command issued on the graph.
// Start is always absolute (SET); Format is always time.
type Request struct {
	Rate     float64
	Flags    Flags
	Start    time.Duration
	Stop     time.Duration
	StopType StopType
}

// Input carries the job options relevant for seeking.
// Start and Stop are percentages unless Absolute is set, then seconds.
type Input struct {
	Start       float64
	Stop        float64
	Absolute    bool
	MaxDuration float64 // seconds, 0 = no cap
	Total       time.Duration
}

// Window is a validated trim window.
type Window struct {
	Start time.Duration
	// Stop is only meaningful when Bounded is true.
	Stop           time.Duration
	Bounded        bool
	OutputDuration time.Duration
}

// Request builds the seek command for w.
func (w Window) Request() Request {
	req := Request{
		Rate:     1.0,
		Flags:    FlagFlush | FlagAccurate,
		Start:    w.Start,
		StopType: StopNone,
		Stop:     OpenEnded,
	}
	if w.Bounded {
		req.Stop = w.Stop
		req.StopType = StopSet
	}
	return req
}

// Plan validates in and converts it into a window in source time.
func Plan(in Input) (Window, error) {
	start, stop := in.Start, in.Stop
	if start < 0 {
		return Window{}, fmt.Errorf("%w: start %g is negative", ErrInvalidWindow, start)
	}
	if stop < OpenEnded {
		return Window{}, fmt.Errorf("%w: stop %g is below %d", ErrInvalidWindow, stop, OpenEnded)
	}
	if stop > OpenEnded && start > stop {
		return Window{}, fmt.Errorf("%w: start %g is after stop %g", ErrInvalidWindow, start, stop)
	}
	if math.IsNaN(start) || math.IsNaN(stop) {
		return Window{}, fmt.Errorf("%w: NaN bound", ErrInvalidWindow)
	}

	total := in.Total.Seconds()
	if !in.Absolute {
		if start > 100 || stop > 100 {
			return Window{}, fmt.Errorf("%w: relative bounds must not exceed 100 (start %g, stop %g)", ErrInvalidWindow, start, stop)
		}
		start = start * total / 100
		if stop > OpenEnded {
			stop = stop * total / 100
		}
	}

	bounded := stop > OpenEnded
	if in.MaxDuration > 0 {
		end := stop
		if !bounded {
			end = total
		}
		if end-start > in.MaxDuration {
			stop = start + in.MaxDuration
			bounded = true
		}
	}

	var out float64
	if bounded {
		out = stop - start
	} else {
		out = math.Max(total-start, 0)
	}

	w := Window{
		Start:          seconds(start),
		Bounded:        bounded,
		OutputDuration: seconds(out),
	}
	if bounded {
		w.Stop = seconds(stop)
	}
	return w, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
