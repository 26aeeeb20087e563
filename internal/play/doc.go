// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package play owns the lifecycle of a player's session on a daily puzzle.
//
// # State machine
//
// A session moves one way only:
//
//	NoSession --Start--> Started --RevealHint (<= 3)--> Started --Submit(correct)--> Solved
//
// An incorrect Submit leaves a Started session unchanged. Solved is terminal.
// The absence of a stored row is the NoSession state; StateOf turns a row (or
// nil) into one of the State variants so callers switch on a type rather than
// on nullable fields.
//
// # Trust boundary
//
// The start instant, the hint counter and the accumulated penalty are written
// by the server only. A penalty reported by the client is compared against the
// server total for diagnostics and never persisted.
//
// # Store contract
//
// All cross-call state lives in a SessionRepository. Every mutation is a single
// conditional write keyed on (player, puzzle):
//   - CreateIfAbsent inserts or returns the existing row
//   - AddPenalty and Finalize compare the expected hint count (and status) and
//     report ErrConflict when another request won the race
//
// The Manager re-reads and retries a bounded number of times on ErrConflict.
package play
