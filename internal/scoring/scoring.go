// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package scoring computes final scores and hint penalties.
//
// Everything here is a pure function of its inputs so that a stored score can
// be re-derived later from the persisted start instant, finish instant and
// penalty.
package scoring

import "time"

// MaxHints is the number of hints a session may reveal.
const MaxHints = 3

// hintCosts is indexed by the number of hints already revealed.
var hintCosts = [MaxHints]time.Duration{
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// HintCost returns the penalty charged for the next hint given how many hints
// the session has already revealed. ok is false once the cap is reached.
func HintCost(revealed int) (cost time.Duration, ok bool) {
	if revealed < 0 || revealed >= MaxHints {
		return 0, false
	}
	return hintCosts[revealed], true
}

// TotalHintCost returns the cumulative penalty for revealing n hints.
func TotalHintCost(n int) time.Duration {
	var total time.Duration
	for i := 0; i < n && i < MaxHints; i++ {
		total += hintCosts[i]
	}
	return total
}

// ElapsedSince returns finalize - start, clamped at zero. A finalize instant
// earlier than start is clock skew between machines, not an error.
func ElapsedSince(start, finalize time.Time) time.Duration {
	d := finalize.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

// Score returns max(0, finalize-start) + penalty.
func Score(start, finalize time.Time, penalty time.Duration) time.Duration {
	return ElapsedSince(start, finalize) + penalty
}

// Milliseconds converts d to whole milliseconds for persistence.
func Milliseconds(d time.Duration) int64 {
	return d.Milliseconds()
}

// FromMilliseconds converts persisted milliseconds back into a duration.
func FromMilliseconds(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
