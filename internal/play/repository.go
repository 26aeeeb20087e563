// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package play

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/dailymoji/dailymoji/internal/puzzle"
)

// Finalization is the conditional write that solves a session. It applies only
// while the stored row is still started with ExpectedHints hints and Penalty.
type Finalization struct {
	ExpectedHints int
	Penalty       time.Duration
	Duration      time.Duration
	Score         time.Duration
	FinishedAt    time.Time
}

// SessionRepository is the durable session store.
type SessionRepository interface {
	// Get retrieves the session for key. Returns ErrSessionNotFound if none exists.
	Get(ctx context.Context, key Key) (*Session, error)

	// CreateIfAbsent inserts s unless a session already exists for its key.
	// It returns the stored row and whether this call created it.
	CreateIfAbsent(ctx context.Context, s *Session) (stored *Session, created bool, err error)

	// AddPenalty atomically charges cost and increments the hint counter if the
	// session is started with exactly expectedHints revealed. Returns ErrConflict
	// otherwise.
	AddPenalty(ctx context.Context, key Key, expectedHints int, cost time.Duration) (*Session, error)

	// Finalize atomically marks the session solved with the given values.
	// Returns ErrConflict if the preconditions in f no longer hold.
	Finalize(ctx context.Context, key Key, f Finalization) (*Session, error)

	// ListSolved returns solved sessions for a puzzle ordered by score, then
	// finish instant, then id. A limit <= 0 returns all.
	ListSolved(ctx context.Context, puzzleID ulid.ULID, limit int) ([]*Session, error)

	// SolvedPuzzleIDs returns the ids of every puzzle the player has solved.
	SolvedPuzzleIDs(ctx context.Context, playerID uuid.UUID) ([]ulid.ULID, error)
}

// PuzzleLookup is the read-only puzzle access the manager needs.
type PuzzleLookup interface {
	GetByID(ctx context.Context, id ulid.ULID) (*puzzle.Puzzle, error)
}
