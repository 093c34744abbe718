// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"strings"
)

// Prop is one element property. Order is preserved when rendering.
type Prop struct {
	Key   string
	Value string
}

// Stage is one element of a chain. Factory may also hold a caps string or a
// reference to a named element ("txt.").
type Stage struct {
	Factory string
	Name    string
	Props   []Prop
	// Args is appended verbatim, e.g. an encoder pass template.
	Args string
}

// Chain is an ordered list of linked stages.
type Chain []Stage

func (s Stage) render(b *strings.Builder) {
	b.WriteString(s.Factory)
	if s.Name != "" {
		b.WriteString(" name=")
		b.WriteString(s.Name)
	}
	for _, p := range s.Props {
		b.WriteByte(' ')
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(quote(p.Value))
	}
	if args := strings.TrimSpace(s.Args); args != "" {
		b.WriteByte(' ')
		b.WriteString(args)
	}
}

// Render returns the chain in launch syntax: "a name=x k=v ! b".
func (c Chain) Render() string {
	var b strings.Builder
	for i, s := range c {
		if i > 0 {
			b.WriteString(" ! ")
		}
		s.render(&b)
	}
	return b.String()
}

// Find returns the first stage named name.
func (c Chain) Find(name string) (Stage, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Factories lists the factory of every stage, for structural comparisons.
func (c Chain) Factories() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Factory
	}
	return out
}

func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " \t!,;\"'=") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}
