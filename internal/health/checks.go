// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os/exec"

	"github.com/ManuGH/passforge/internal/pipeline/controller"
	"github.com/ManuGH/passforge/internal/preset"
)

// JobState is the part of a job the job checker reads.
type JobState interface {
	State() controller.State
}

// JobChecker reports a failed job as unhealthy.
type JobChecker struct {
	job JobState
}

func NewJobChecker(job JobState) *JobChecker {
	return &JobChecker{job: job}
}

func (c *JobChecker) Name() string { return "job" }

func (c *JobChecker) Check(context.Context) CheckResult {
	st := c.job.State()
	switch st {
	case controller.StateFailed:
		return CheckResult{Status: StatusUnhealthy, Message: string(st)}
	case controller.StateIdle, controller.StateDiscovering:
		return CheckResult{Status: StatusDegraded, Message: "job not started: " + string(st)}
	default:
		return CheckResult{Status: StatusHealthy, Message: string(st)}
	}
}

// CatalogChecker checks that a preset catalog is loaded.
type CatalogChecker struct {
	holder *preset.Holder
}

func NewCatalogChecker(h *preset.Holder) *CatalogChecker {
	return &CatalogChecker{holder: h}
}

func (c *CatalogChecker) Name() string { return "presets" }

func (c *CatalogChecker) Check(context.Context) CheckResult {
	cat := c.holder.Catalog()
	if cat == nil || cat.Len() == 0 {
		return CheckResult{Status: StatusUnhealthy, Error: "no presets loaded"}
	}
	return CheckResult{Status: StatusHealthy}
}

// BinaryChecker checks that a helper binary resolves on PATH.
type BinaryChecker struct {
	name string
	path string
}

func NewBinaryChecker(name, path string) *BinaryChecker {
	return &BinaryChecker{name: name, path: path}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(context.Context) CheckResult {
	resolved, err := exec.LookPath(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: resolved}
}
