// SPDX-License-Identifier: MIT

//go:build !windows

package report

import (
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"

	xglog "github.com/ManuGH/passforge/internal/log"
)

// Write stores job at path atomically: a reader sees the old report or the
// new one, never a partial file.
func Write(path string, job *Job) error {
	logger := xglog.WithComponent("report")

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(job); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	logger.Info().Str(xglog.FieldPath, path).Str(xglog.FieldJobID, job.JobID).Msg("job report written")
	return nil
}
