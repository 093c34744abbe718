// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package preset loads the YAML preset catalog and keeps it fresh.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/validate"
)

var (
	// ErrNotFound is returned when a preset name is not in the catalog.
	ErrNotFound = errors.New("preset not found")
	// ErrEmptyCatalog is returned for catalogs without presets.
	ErrEmptyCatalog = errors.New("preset catalog is empty")
)

// Catalog is an immutable set of presets keyed by name.
type Catalog struct {
	presets map[string]*model.Preset
}

type fileCatalog struct {
	Presets map[string]*model.Preset `yaml:"presets"`
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	path = filepath.Clean(path)
	// #nosec G304 -- preset catalog path is provided by the operator via config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a strict single-document catalog and validates every preset.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCatalog
		}
		return nil, fmt.Errorf("strict preset parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("preset catalog contains multiple documents or trailing content")
	}
	if len(fc.Presets) == 0 {
		return nil, ErrEmptyCatalog
	}

	v := validate.New()
	for name, p := range fc.Presets {
		if p == nil {
			v.AddError("presets."+name, "preset is empty", nil)
			continue
		}
		p.Name = name
		Check(v, p)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return &Catalog{presets: fc.Presets}, nil
}

// Check adds every problem of p to v.
func Check(v *validate.Validator, p *model.Preset) {
	field := "presets." + p.Name
	v.NotEmpty(field+".name", p.Name)
	if p.VCodec == nil && p.ACodec == nil {
		v.AddError(field, "needs at least one of vcodec or acodec", nil)
	}
	if p.VCodec != nil {
		checkCodec(v, field+".vcodec", p.VCodec, true)
	}
	if p.ACodec != nil {
		checkCodec(v, field+".acodec", p.ACodec, false)
	}
	if p.VCodec != nil && p.ACodec != nil && len(p.ACodec.Passes) > len(p.VCodec.Passes) {
		v.AddError(field+".acodec.passes", "must not have more entries than vcodec.passes", len(p.ACodec.Passes))
	}
}

func checkCodec(v *validate.Validator, field string, c *model.CodecSpec, video bool) {
	v.NotEmpty(field+".name", c.Name)
	v.Positive(field+".passes", len(c.Passes))
	v.OneOf(field+".bitrate_unit", string(c.Unit()), []string{string(model.BitrateKbps), string(model.BitrateBps)})

	ranges := map[string]model.IntRange{
		"sample_width": c.SampleWidth,
		"depth":        c.Depth,
		"sample_rate":  c.SampleRate,
		"channels":     c.Channels,
	}
	if video {
		ranges = map[string]model.IntRange{"width": c.Width, "height": c.Height}
		if !c.Rate.IsZero() && (!c.Rate.Min.Valid() || !c.Rate.Max.Valid() || c.Rate.Min.Float() > c.Rate.Max.Float()) {
			v.AddError(field+".rate", "must be a valid min/max pair", c.Rate)
		}
	}
	for name, r := range ranges {
		if !r.IsZero() {
			v.MinMax(field+"."+name, r.Min, r.Max)
		}
	}
}

// Get returns a copy of the named preset.
func (c *Catalog) Get(name string) (*model.Preset, error) {
	p, ok := c.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrNotFound, name, strings.Join(c.Names(), ", "))
	}
	return p.Clone(), nil
}

// Names lists preset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.presets))
	for n := range c.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of presets.
func (c *Catalog) Len() int { return len(c.presets) }
