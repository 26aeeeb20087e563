// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package play

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for session and submission metrics.
const (
	OutcomeCreated   = "created"
	OutcomeResumed   = "resumed"
	OutcomeRejected  = "rejected"
	OutcomeCorrect   = "correct"
	OutcomeIncorrect = "incorrect"
	OutcomeError     = "error"
)

// SessionsStarted counts Start calls by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionsStarted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dailymoji_sessions_started_total",
		Help: "Total number of session start requests",
	},
	[]string{"outcome"},
)

// HintsRevealed counts revealed hints by 1-based ordinal.
var HintsRevealed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dailymoji_hints_revealed_total",
		Help: "Total number of hints revealed",
	},
	[]string{"ordinal"},
)

// Submissions counts guesses by result.
var Submissions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dailymoji_submissions_total",
		Help: "Total number of guesses submitted",
	},
	[]string{"result"},
)

// PenaltyMismatches counts submissions whose client-reported penalty differed
// from the server total.
var PenaltyMismatches = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dailymoji_penalty_mismatch_total",
		Help: "Total number of client penalty reports that disagreed with the server",
	},
)

// OperationDuration observes session manager operation latency.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dailymoji_play_operation_duration_seconds",
		Help:    "Session manager operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers play package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SessionsStarted)
	reg.MustRegister(HintsRevealed)
	reg.MustRegister(Submissions)
	reg.MustRegister(PenaltyMismatches)
	reg.MustRegister(OperationDuration)
}

func recordHint(ordinal int) {
	HintsRevealed.WithLabelValues(strconv.Itoa(ordinal)).Inc()
}

func observeOperation(operation string, began time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(began).Seconds())
}
