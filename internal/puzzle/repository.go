// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package puzzle

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when no puzzle exists for the requested id or date.
var ErrNotFound = errors.New("puzzle not found")

// ErrDuplicateDate is returned by Create when a puzzle already exists for the date.
var ErrDuplicateDate = errors.New("puzzle already exists for date")

// Reader is the read-only puzzle lookup used by the session engine.
type Reader interface {
	// GetByID retrieves a puzzle by id.
	GetByID(ctx context.Context, id ulid.ULID) (*Puzzle, error)

	// GetByDate retrieves the puzzle for a calendar date.
	GetByDate(ctx context.Context, date time.Time) (*Puzzle, error)
}

// Repository manages puzzle persistence.
type Repository interface {
	Reader

	// Create stores a new puzzle. Returns ErrDuplicateDate when the date is taken.
	Create(ctx context.Context, p *Puzzle) error

	// ListBefore returns puzzles dated strictly before date, newest first.
	// A limit <= 0 returns all of them.
	ListBefore(ctx context.Context, date time.Time, limit int) ([]*Puzzle, error)
}
