// SPDX-License-Identifier: MIT

//go:build windows

package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// Write stores job at path. Windows has no atomic rename over an open file,
// so the report is written in place.
func Write(path string, job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
