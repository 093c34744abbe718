// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldJobID         = "job_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldRunToken      = "run_token"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPass      = "pass"
	FieldPassCount = "pass_count"
	FieldPad       = "pad"
	FieldPending   = "pending"

	// Media / stream fields
	FieldEncoder    = "encoder"
	FieldContainer  = "container"
	FieldResolution = "resolution"
	FieldFPS        = "fps"
	FieldBitrate    = "bitrate"
	FieldPreset     = "preset"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldReason   = "reason"

	// Path / URL fields
	FieldPath      = "path"
	FieldURI       = "uri"
	FieldOutputURI = "output_uri"
)
