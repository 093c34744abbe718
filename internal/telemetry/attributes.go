// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by controller spans.
const (
	// Job attributes
	JobIDKey     = "job.id"
	JobPresetKey = "job.preset"
	JobStatusKey = "job.status"

	// Pass attributes
	PassIndexKey = "pass.index"
	PassCountKey = "pass.count"

	// Negotiation attributes
	TranscodeResolutionKey = "transcode.resolution"
	TranscodeFramerateKey  = "transcode.framerate"
	TranscodeBitrateKey    = "transcode.bitrate"
	TranscodeMuxerKey      = "transcode.muxer"
	TranscodeEncoderKey    = "transcode.encoder"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// JobAttributes creates job-level span attributes.
func JobAttributes(jobID, preset string, passCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, jobID),
		attribute.String(JobPresetKey, preset),
		attribute.Int(PassCountKey, passCount),
	}
}

// PassAttributes creates negotiated-pass span attributes. Empty strings are omitted.
func PassAttributes(index int, resolution, framerate string, bitrate int, encoder, muxer string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(PassIndexKey, index),
		attribute.Int(TranscodeBitrateKey, bitrate),
	}
	if resolution != "" {
		attrs = append(attrs, attribute.String(TranscodeResolutionKey, resolution))
	}
	if framerate != "" {
		attrs = append(attrs, attribute.String(TranscodeFramerateKey, framerate))
	}
	if encoder != "" {
		attrs = append(attrs, attribute.String(TranscodeEncoderKey, encoder))
	}
	if muxer != "" {
		attrs = append(attrs, attribute.String(TranscodeMuxerKey, muxer))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
