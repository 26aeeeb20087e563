// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package memstore

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/pkg/errutil"
)

// PuzzleStore is an in-memory puzzle.Repository.
type PuzzleStore struct {
	mu     sync.RWMutex
	byID   map[ulid.ULID]*puzzle.Puzzle
	byDate map[string]*puzzle.Puzzle
}

// NewPuzzleStore creates a PuzzleStore holding the given puzzles.
// A later puzzle with an already used date is skipped with a warning.
func NewPuzzleStore(puzzles ...*puzzle.Puzzle) *PuzzleStore {
	s := &PuzzleStore{
		byID:   make(map[ulid.ULID]*puzzle.Puzzle),
		byDate: make(map[string]*puzzle.Puzzle),
	}
	for _, p := range puzzles {
		if err := s.Create(context.Background(), p); err != nil {
			slog.Warn("skipping puzzle", append(errutil.Attrs(err), "puzzle_id", p.ID.String())...)
		}
	}
	return s
}

var _ puzzle.Repository = (*PuzzleStore)(nil)

// GetByID implements puzzle.Reader.
func (s *PuzzleStore) GetByID(_ context.Context, id ulid.ULID) (*puzzle.Puzzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, oops.Code("PUZZLE_NOT_FOUND").With("puzzle_id", id.String()).Wrap(puzzle.ErrNotFound)
	}
	return p, nil
}

// GetByDate implements puzzle.Reader.
func (s *PuzzleStore) GetByDate(_ context.Context, date time.Time) (*puzzle.Puzzle, error) {
	key := puzzle.DateOf(date).Format(puzzle.DateLayout)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byDate[key]
	if !ok {
		return nil, oops.Code("PUZZLE_NOT_FOUND").With("date", key).Wrap(puzzle.ErrNotFound)
	}
	return p, nil
}

// Create implements puzzle.Repository.
func (s *PuzzleStore) Create(_ context.Context, p *puzzle.Puzzle) error {
	key := p.DateString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byDate[key]; ok {
		return oops.Code("PUZZLE_DUPLICATE_DATE").With("date", key).Wrap(puzzle.ErrDuplicateDate)
	}
	s.byID[p.ID] = p
	s.byDate[key] = p
	return nil
}

// ListBefore implements puzzle.Repository.
func (s *PuzzleStore) ListBefore(_ context.Context, date time.Time, limit int) ([]*puzzle.Puzzle, error) {
	cutoff := puzzle.DateOf(date)
	s.mu.RLock()
	var out []*puzzle.Puzzle
	for _, p := range s.byID {
		if p.Date.Before(cutoff) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *puzzle.Puzzle) int { return b.Date.Compare(a.Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
