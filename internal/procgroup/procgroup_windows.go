// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"os/exec"
)

type signal struct {
	name string
	kill bool
}

var (
	sigTerm = signal{"SIGTERM", false}
	sigKill = signal{"SIGKILL", true}
)

// Set is a no-op on Windows.
func Set(cmd *exec.Cmd) {}

// kill maps SIGKILL to Process.Kill. Windows has no graceful signal for
// console-less children, so SIGTERM is skipped.
func kill(cmd *exec.Cmd, s signal) error {
	if cmd == nil || cmd.Process == nil || !s.kill {
		return nil
	}
	return cmd.Process.Kill()
}
