// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package postgres implements puzzle.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/internal/store"
)

type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const puzzleColumns = `id, game_date, solution, clues, hints, external_game_id, created_at`

// PuzzleRepository implements puzzle.Repository using PostgreSQL.
type PuzzleRepository struct {
	pool poolIface
}

// NewPuzzleRepository creates a new PuzzleRepository.
func NewPuzzleRepository(pool poolIface) *PuzzleRepository {
	return &PuzzleRepository{pool: pool}
}

var _ puzzle.Repository = (*PuzzleRepository)(nil)

// GetByID implements puzzle.Reader.
func (r *PuzzleRepository) GetByID(ctx context.Context, id ulid.ULID) (*puzzle.Puzzle, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+puzzleColumns+`
		FROM puzzles
		WHERE id = $1
	`, id.String())

	p, err := scanPuzzle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PUZZLE_NOT_FOUND").With("puzzle_id", id.String()).Wrap(puzzle.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PUZZLE_GET_FAILED").
			With("operation", "get puzzle by id").
			With("puzzle_id", id.String()).
			Wrap(store.Classify(err))
	}
	return p, nil
}

// GetByDate implements puzzle.Reader.
func (r *PuzzleRepository) GetByDate(ctx context.Context, date time.Time) (*puzzle.Puzzle, error) {
	day := puzzle.DateOf(date)
	row := r.pool.QueryRow(ctx, `
		SELECT `+puzzleColumns+`
		FROM puzzles
		WHERE game_date = $1
	`, day)

	p, err := scanPuzzle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PUZZLE_NOT_FOUND").
			With("date", day.Format(puzzle.DateLayout)).
			Wrap(puzzle.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PUZZLE_GET_FAILED").
			With("operation", "get puzzle by date").
			With("date", day.Format(puzzle.DateLayout)).
			Wrap(store.Classify(err))
	}
	return p, nil
}

// Create implements puzzle.Repository.
func (r *PuzzleRepository) Create(ctx context.Context, p *puzzle.Puzzle) error {
	hints := p.Hints
	if hints == nil {
		hints = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO puzzles (id, game_date, solution, clues, hints, external_game_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		p.ID.String(),
		p.Date,
		p.Solution,
		p.Clues,
		hints,
		p.ExternalGameID,
		p.CreatedAt,
	)
	if store.IsUniqueViolation(err, "puzzles_game_date_key") {
		return oops.Code("PUZZLE_DUPLICATE_DATE").
			With("date", p.DateString()).
			Wrap(puzzle.ErrDuplicateDate)
	}
	if err != nil {
		return oops.Code("PUZZLE_CREATE_FAILED").
			With("operation", "insert puzzle").
			With("date", p.DateString()).
			Wrap(store.Classify(err))
	}
	return nil
}

// ListBefore implements puzzle.Repository.
func (r *PuzzleRepository) ListBefore(ctx context.Context, date time.Time, limit int) ([]*puzzle.Puzzle, error) {
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+puzzleColumns+`
		FROM puzzles
		WHERE game_date < $1
		ORDER BY game_date DESC
		LIMIT $2
	`, puzzle.DateOf(date), limitArg)
	if err != nil {
		return nil, oops.Code("PUZZLE_LIST_FAILED").
			With("operation", "list puzzles before date").
			Wrap(store.Classify(err))
	}
	defer rows.Close()

	var puzzles []*puzzle.Puzzle
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, oops.Code("PUZZLE_SCAN_FAILED").Wrap(err)
		}
		puzzles = append(puzzles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PUZZLE_ROWS_ERROR").Wrap(store.Classify(err))
	}
	return puzzles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPuzzle(row rowScanner) (*puzzle.Puzzle, error) {
	var (
		idStr    string
		p        puzzle.Puzzle
		extGame  *int64
		gameDate time.Time
	)
	if err := row.Scan(&idStr, &gameDate, &p.Solution, &p.Clues, &p.Hints, &extGame, &p.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PUZZLE_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	p.ID = id
	p.Date = puzzle.DateOf(gameDate)
	p.ExternalGameID = extGame
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
