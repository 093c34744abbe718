// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// passforge runs one multi-pass transcode job.
//
// Usage:
//
//	passforge -preset webm -input file:///in.mkv -output file:///out.webm
//
// Exit codes:
//   - 0: job complete
//   - 1: job failed
//   - 2: usage or configuration error
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/passforge/internal/config"
	"github.com/ManuGH/passforge/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}
	if f.showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return exitOK
	}

	cfg, err := config.NewLoader(f.configPath, version.Version).Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitUsage
	}
	if err := config.Validate(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "Validation error: %v\n", err)
		return exitUsage
	}
	return runJob(ctx, cfg, f, stdout, stderr)
}
