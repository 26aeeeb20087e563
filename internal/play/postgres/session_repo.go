// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package postgres implements play.SessionRepository on PostgreSQL. Each
// mutation is one conditional statement, so the row-level lock taken by the
// UPDATE serializes concurrent requests for the same (player, puzzle).
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/play"
	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/internal/scoring"
	"github.com/dailymoji/dailymoji/internal/store"
)

// poolIface is the subset of *pgxpool.Pool used here; pgxmock implements it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionColumns = `id, player_id::text, puzzle_id, status, started_at, penalty_ms,
	hints_revealed, duration_ms, final_score_ms, finished_at`

// SessionRepository implements play.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

var _ play.SessionRepository = (*SessionRepository)(nil)

// Get implements play.SessionRepository.
func (r *SessionRepository) Get(ctx context.Context, key play.Key) (*play.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM play_sessions
		WHERE player_id = $1 AND puzzle_id = $2
	`, key.PlayerID.String(), key.PuzzleID.String())

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("player_id", key.PlayerID.String()).
			With("puzzle_id", key.PuzzleID.String()).
			Wrap(play.ErrSessionNotFound)
	}
	if err != nil {
		return nil, wrapKey("SESSION_GET_FAILED", "get session", key, err)
	}
	return s, nil
}

// CreateIfAbsent implements play.SessionRepository. ON CONFLICT DO NOTHING
// leaves the existing row untouched; it is then read back.
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, s *play.Session) (*play.Session, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO play_sessions (id, player_id, puzzle_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, puzzle_id) DO NOTHING
		RETURNING `+sessionColumns,
		s.ID.String(),
		s.PlayerID.String(),
		s.PuzzleID.String(),
		string(play.StatusStarted),
		s.StartedAt,
	)

	created, err := scanSession(row)
	switch {
	case err == nil:
		return created, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := r.Get(ctx, s.Key())
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case isForeignKeyViolation(err):
		return nil, false, oops.Code("SESSION_PUZZLE_MISSING").
			With("puzzle_id", s.PuzzleID.String()).
			Wrap(puzzle.ErrNotFound)
	default:
		return nil, false, wrapKey("SESSION_CREATE_FAILED", "insert play_session", s.Key(), err)
	}
}

// AddPenalty implements play.SessionRepository.
func (r *SessionRepository) AddPenalty(ctx context.Context, key play.Key, expectedHints int, cost time.Duration) (*play.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE play_sessions
		SET hints_revealed = hints_revealed + 1,
		    penalty_ms = penalty_ms + $4
		WHERE player_id = $1 AND puzzle_id = $2
		  AND status = 'started' AND hints_revealed = $3
		RETURNING `+sessionColumns,
		key.PlayerID.String(),
		key.PuzzleID.String(),
		expectedHints,
		scoring.Milliseconds(cost),
	)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_PENALTY_CONFLICT").
			With("expected_hints", expectedHints).
			Wrap(play.ErrConflict)
	}
	if err != nil {
		return nil, wrapKey("SESSION_PENALTY_FAILED", "add hint penalty", key, err)
	}
	return s, nil
}

// Finalize implements play.SessionRepository.
func (r *SessionRepository) Finalize(ctx context.Context, key play.Key, f play.Finalization) (*play.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE play_sessions
		SET status = 'solved',
		    duration_ms = $5,
		    final_score_ms = $6,
		    finished_at = $7
		WHERE player_id = $1 AND puzzle_id = $2
		  AND status = 'started' AND hints_revealed = $3 AND penalty_ms = $4
		RETURNING `+sessionColumns,
		key.PlayerID.String(),
		key.PuzzleID.String(),
		f.ExpectedHints,
		scoring.Milliseconds(f.Penalty),
		scoring.Milliseconds(f.Duration),
		scoring.Milliseconds(f.Score),
		f.FinishedAt,
	)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_FINALIZE_CONFLICT").
			With("expected_hints", f.ExpectedHints).
			Wrap(play.ErrConflict)
	}
	if err != nil {
		return nil, wrapKey("SESSION_FINALIZE_FAILED", "finalize session", key, err)
	}
	return s, nil
}

// ListSolved implements play.SessionRepository.
func (r *SessionRepository) ListSolved(ctx context.Context, puzzleID ulid.ULID, limit int) ([]*play.Session, error) {
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM play_sessions
		WHERE puzzle_id = $1 AND status = 'solved'
		ORDER BY final_score_ms, finished_at, id
		LIMIT $2
	`, puzzleID.String(), limitArg)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_SOLVED_FAILED").
			With("operation", "list solved sessions").
			With("puzzle_id", puzzleID.String()).
			Wrap(store.Classify(err))
	}
	defer rows.Close()

	var sessions []*play.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan solved session").
				Wrap(err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate solved sessions").
			Wrap(store.Classify(err))
	}
	return sessions, nil
}

// SolvedPuzzleIDs implements play.SessionRepository.
func (r *SessionRepository) SolvedPuzzleIDs(ctx context.Context, playerID uuid.UUID) ([]ulid.ULID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT puzzle_id
		FROM play_sessions
		WHERE player_id = $1 AND status = 'solved'
		ORDER BY puzzle_id
	`, playerID.String())
	if err != nil {
		return nil, oops.Code("SESSION_SOLVED_IDS_FAILED").
			With("player_id", playerID.String()).
			Wrap(store.Classify(err))
	}
	defer rows.Close()

	var ids []ulid.ULID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("SESSION_CORRUPT_PUZZLE_ID").With("puzzle_id", idStr).Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").Wrap(store.Classify(err))
	}
	return ids, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession scans one row. pgx.ErrNoRows is returned unwrapped for callers
// to translate.
func scanSession(row rowScanner) (*play.Session, error) {
	var (
		idStr       string
		playerIDStr string
		puzzleIDStr string
		statusStr   string
		startedAt   time.Time
		penaltyMs   int64
		hints       int
		durationMs  int64
		scoreMs     int64
		finishedAt  *time.Time
	)
	err := row.Scan(&idStr, &playerIDStr, &puzzleIDStr, &statusStr, &startedAt,
		&penaltyMs, &hints, &durationMs, &scoreMs, &finishedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	playerID, err := uuid.Parse(playerIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT_PLAYER_ID").With("player_id", playerIDStr).Wrap(err)
	}
	puzzleID, err := ulid.Parse(puzzleIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT_PUZZLE_ID").With("puzzle_id", puzzleIDStr).Wrap(err)
	}
	status, err := play.ParseStatus(statusStr)
	if err != nil {
		return nil, err
	}

	s := &play.Session{
		ID:            id,
		PlayerID:      playerID,
		PuzzleID:      puzzleID,
		Status:        status,
		StartedAt:     startedAt.UTC(),
		Penalty:       scoring.FromMilliseconds(penaltyMs),
		HintsRevealed: hints,
		Duration:      scoring.FromMilliseconds(durationMs),
		Score:         scoring.FromMilliseconds(scoreMs),
	}
	if finishedAt != nil {
		s.FinishedAt = finishedAt.UTC()
	}
	return s, nil
}

func wrapKey(code, operation string, key play.Key, err error) error {
	return oops.Code(code).
		With("operation", operation).
		With("player_id", key.PlayerID.String()).
		With("puzzle_id", key.PuzzleID.String()).
		Wrap(store.Classify(err))
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
