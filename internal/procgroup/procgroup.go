// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup runs helper binaries in their own process group so a
// cancelled job reaps the whole tree, not only the direct child.
package procgroup

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/metrics"
)

// DefaultGrace is how long a group gets between SIGTERM and SIGKILL.
const DefaultGrace = 2 * time.Second

// CommandContext is exec.CommandContext with group semantics: the child
// leads a new process group and cancellation terminates the group, escalating
// to a kill after grace.
func CommandContext(ctx context.Context, grace time.Duration, name string, args ...string) *exec.Cmd {
	if grace <= 0 {
		grace = DefaultGrace
	}
	// #nosec G204 -- callers pass operator-configured binaries with fixed argument shapes
	cmd := exec.CommandContext(ctx, name, args...)
	Set(cmd)
	cmd.Cancel = func() error {
		signalGroup(cmd, sigTerm)
		time.AfterFunc(grace, func() { signalGroup(cmd, sigKill) })
		return nil
	}
	cmd.WaitDelay = grace + time.Second
	return cmd
}

func signalGroup(cmd *exec.Cmd, sig signal) {
	err := kill(cmd, sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(sig.name, "sent")
	case errors.Is(err, os.ErrProcessDone):
		metrics.IncProcTerminate(sig.name, "esrch")
	default:
		metrics.IncProcTerminate(sig.name, "error")
		logger := log.WithComponent("procgroup")
		logger.Warn().Err(err).Str("signal", sig.name).Msg("signal process group")
	}
}
