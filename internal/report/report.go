// SPDX-License-Identifier: MIT

// Package report persists a JSON summary of a finished transcode job.
package report

import (
	"time"

	"github.com/ManuGH/passforge/internal/pipeline/model"
)

// Window is the trim window in seconds of source time.
type Window struct {
	Start          float64 `json:"start"`
	Stop           float64 `json:"stop,omitempty"`
	Bounded        bool    `json:"bounded"`
	OutputDuration float64 `json:"outputDuration"`
}

// Job summarizes one controller run.
type Job struct {
	JobID      string                 `json:"jobId"`
	RunToken   string                 `json:"runToken"`
	Preset     string                 `json:"preset"`
	URI        string                 `json:"uri"`
	OutputURI  string                 `json:"outputUri"`
	Descriptor *model.MediaDescriptor `json:"descriptor,omitempty"`
	Window     *Window                `json:"window,omitempty"`
	Passes     []model.PassSpec       `json:"passes"`
	PassCount  int                    `json:"passCount"`
	Outcome    string                 `json:"outcome"`
	Error      string                 `json:"error,omitempty"`
	Started    time.Time              `json:"started"`
	Finished   time.Time              `json:"finished"`
}

// Succeeded reports whether the job completed.
func (j *Job) Succeeded() bool {
	return j.Outcome == OutcomeComplete
}

// OutcomeComplete marks a job that finished every pass.
const OutcomeComplete = "complete"
