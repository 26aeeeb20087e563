// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package memstore provides in-process implementations of the session and
// puzzle repositories. Every method takes a single lock, so the conditional
// writes have the same atomicity the PostgreSQL store gets from one statement.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/play"
)

// SessionStore is an in-memory play.SessionRepository.
type SessionStore struct {
	mu   sync.RWMutex
	rows map[play.Key]*play.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{rows: make(map[play.Key]*play.Session)}
}

var _ play.SessionRepository = (*SessionStore)(nil)

// Get implements play.SessionRepository.
func (s *SessionStore) Get(ctx context.Context, key play.Key) (*play.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[key]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("player_id", key.PlayerID.String()).
			With("puzzle_id", key.PuzzleID.String()).
			Wrap(play.ErrSessionNotFound)
	}
	return clone(row), nil
}

// CreateIfAbsent implements play.SessionRepository.
func (s *SessionStore) CreateIfAbsent(ctx context.Context, sess *play.Session) (*play.Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sess.Key()
	if row, ok := s.rows[key]; ok {
		return clone(row), false, nil
	}
	s.rows[key] = clone(sess)
	return clone(sess), true, nil
}

// AddPenalty implements play.SessionRepository.
func (s *SessionStore) AddPenalty(ctx context.Context, key play.Key, expectedHints int, cost time.Duration) (*play.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok || row.Status != play.StatusStarted || row.HintsRevealed != expectedHints {
		return nil, oops.Code("SESSION_PENALTY_CONFLICT").
			With("expected_hints", expectedHints).
			Wrap(play.ErrConflict)
	}
	row.HintsRevealed++
	row.Penalty += cost
	return clone(row), nil
}

// Finalize implements play.SessionRepository.
func (s *SessionStore) Finalize(ctx context.Context, key play.Key, f play.Finalization) (*play.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok || row.Status != play.StatusStarted ||
		row.HintsRevealed != f.ExpectedHints || row.Penalty != f.Penalty {
		return nil, oops.Code("SESSION_FINALIZE_CONFLICT").
			With("expected_hints", f.ExpectedHints).
			Wrap(play.ErrConflict)
	}
	row.Status = play.StatusSolved
	row.Duration = f.Duration
	row.Score = f.Score
	row.FinishedAt = f.FinishedAt
	return clone(row), nil
}

// ListSolved implements play.SessionRepository.
func (s *SessionStore) ListSolved(ctx context.Context, puzzleID ulid.ULID, limit int) ([]*play.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []*play.Session
	for _, row := range s.rows {
		if row.PuzzleID == puzzleID && row.Status == play.StatusSolved {
			out = append(out, clone(row))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *play.Session) int {
		if a.Score != b.Score {
			return cmpDuration(a.Score, b.Score)
		}
		if c := a.FinishedAt.Compare(b.FinishedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SolvedPuzzleIDs implements play.SessionRepository.
func (s *SessionStore) SolvedPuzzleIDs(ctx context.Context, playerID uuid.UUID) ([]ulid.ULID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []ulid.ULID
	for key, row := range s.rows {
		if key.PlayerID == playerID && row.Status == play.StatusSolved {
			ids = append(ids, key.PuzzleID)
		}
	}
	slices.SortFunc(ids, func(a, b ulid.ULID) int { return a.Compare(b) })
	return ids, nil
}

func clone(s *play.Session) *play.Session {
	c := *s
	return &c
}

func cmpDuration(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
