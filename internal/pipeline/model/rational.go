// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Rational is a fraction such as a frame rate (30000/1001) or a pixel aspect ratio.
type Rational struct {
	Num int `json:"num" yaml:"num"`
	Den int `json:"den" yaml:"den"`
}

// R is shorthand for Rational{num, den}.
func R(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

// Float returns the value of r, or 0 when the denominator is zero.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Valid reports whether r has a positive denominator.
func (r Rational) Valid() bool {
	return r.Den > 0
}

// Inverse swaps numerator and denominator.
func (r Rational) Inverse() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ParseRational parses "n/d" or a bare integer "n" (denominator 1).
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("empty rational")
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return Rational{}, fmt.Errorf("parse rational %q: %w", s, err)
	}
	if !found {
		return Rational{Num: n, Den: 1}, nil
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return Rational{}, fmt.Errorf("parse rational %q: %w", s, err)
	}
	return Rational{Num: n, Den: d}, nil
}

// MarshalText implements encoding.TextMarshaler so rationals read as "n/d"
// in YAML and JSON documents.
func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rational) UnmarshalText(b []byte) error {
	parsed, err := ParseRational(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// IntRange is an inclusive integer interval.
type IntRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Fixed returns the single-value range [v, v].
func Fixed(v int) IntRange {
	return IntRange{Min: v, Max: v}
}

// IsZero reports whether the range was never set.
func (r IntRange) IsZero() bool {
	return r.Min == 0 && r.Max == 0
}

// Contains reports whether v lies in the range.
func (r IntRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp pulls v into the range.
func (r IntRange) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func (r IntRange) String() string {
	if r.Min == r.Max {
		return strconv.Itoa(r.Min)
	}
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}

// RationalRange is an inclusive interval of rationals, compared as floats.
type RationalRange struct {
	Min Rational `json:"min" yaml:"min"`
	Max Rational `json:"max" yaml:"max"`
}

// IsZero reports whether the range was never set.
func (r RationalRange) IsZero() bool {
	return r.Min == (Rational{}) && r.Max == (Rational{})
}
