// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// validate checks passforge configuration and preset catalog files.
//
// Usage:
//
//	validate -f config.yaml
//	validate -p presets.yaml
//	validate -f config.yaml -p presets.yaml
//
// When only -f is given, the catalog named by presets.path is checked too.
//
// Exit codes:
//   - 0: Every file is valid
//   - 1: A file is invalid (parse or validation error)
//   - 2: Usage error (missing required flag)
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ManuGH/passforge/internal/config"
	"github.com/ManuGH/passforge/internal/preset"
	"github.com/ManuGH/passforge/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var file, presets string
	var showVersion bool

	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&presets, "presets", "", "path to preset catalog")
	fs.StringVar(&presets, "p", "", "path to preset catalog (shorthand)")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	}

	if file == "" && presets == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file or --presets is required")
		_, _ = fmt.Fprintln(stderr, "")
		_, _ = fmt.Fprintln(stderr, "Usage:")
		_, _ = fmt.Fprintln(stderr, "  validate -f config.yaml")
		_, _ = fmt.Fprintln(stderr, "  validate -p presets.yaml")
		return 2
	}

	if file != "" {
		// Load configuration (uses strict YAML parsing)
		cfg, err := config.NewLoader(file, version.Version).Load()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n", file)
			_, _ = fmt.Fprintf(stderr, "  %v\n", err)
			return 1
		}
		if err := config.Validate(cfg); err != nil {
			_, _ = fmt.Fprintf(stderr, "Validation error in %s:\n", file)
			_, _ = fmt.Fprintf(stderr, "  %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "✓ %s is valid\n", file)

		if presets == "" {
			presets = cfg.Presets.Path
			if !filepath.IsAbs(presets) {
				presets = filepath.Join(filepath.Dir(file), presets)
			}
		}
	}

	catalog, err := preset.LoadFile(presets)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Preset error in %s:\n", presets)
		_, _ = fmt.Fprintf(stderr, "  %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "✓ %s is valid (%d presets)\n", presets, catalog.Len())
	return 0
}
