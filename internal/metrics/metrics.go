// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the pass controller.
// Labels are bounded: no job IDs, URIs or preset names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs by outcome ("complete" or an error kind).
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passforge_jobs_total",
		Help: "Total number of finished transcode jobs, by outcome.",
	}, []string{"outcome"})

	// PassesStartedTotal counts pass setups.
	PassesStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "passforge_passes_started_total",
		Help: "Total number of encoding passes set up.",
	})

	// PassesCompletedTotal counts passes that reached end-of-stream, by cause.
	PassesCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passforge_passes_completed_total",
		Help: "Total number of encoding passes that reached end-of-stream, by cause (eos/empty/stalled).",
	}, []string{"cause"})

	// QuiescenceSeconds observes the time between graph submission and pad quiescence.
	QuiescenceSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "passforge_quiescence_seconds",
		Help:    "Time from graph submission until all dynamic pads were blocked.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2.0, 14), // 5ms to ~40s
	})

	// NegotiationAdjustmentsTotal counts parameters the negotiator had to change.
	NegotiationAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passforge_negotiation_adjustments_total",
		Help: "Total number of negotiated parameters adjusted to encoder limits, by attribute and kind (clamp/pad/even).",
	}, []string{"attribute", "kind"})

	// ActivePasses tracks running passes.
	ActivePasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "passforge_active_passes",
		Help: "Current number of passes in the running state.",
	})

	// JobProgress tracks the latest job-level completion ratio reported by the poller.
	JobProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "passforge_job_progress_ratio",
		Help: "Latest job-level completion ratio (0..1) of the most recently polled job.",
	})

	// BusDroppedTotal counts observer events dropped by the in-memory bus.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passforge_bus_dropped_total",
		Help: "Total number of in-memory bus message drops by topic and reason.",
	}, []string{"topic", "reason"})

	// ProcTerminateTotal counts signals sent to probe process groups on cancellation.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passforge_proc_terminate_total",
		Help: "Signals sent to child process groups by signal and result.",
	}, []string{"signal", "result"})
)

// RecordJobOutcome increments the job counter. Empty outcomes are recorded as "unknown".
func RecordJobOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	JobsTotal.WithLabelValues(outcome).Inc()
}

// RecordPassComplete increments the pass completion counter for cause.
func RecordPassComplete(cause string) {
	if cause == "" {
		cause = "eos"
	}
	PassesCompletedTotal.WithLabelValues(cause).Inc()
}

// RecordAdjustment records one negotiator adjustment.
func RecordAdjustment(attribute, kind string) {
	NegotiationAdjustmentsTotal.WithLabelValues(attribute, kind).Inc()
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}

// IncProcTerminate records one termination signal and its result (sent, esrch, error).
func IncProcTerminate(signal, result string) {
	ProcTerminateTotal.WithLabelValues(signal, result).Inc()
}
