// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package leaderboard ranks solved sessions for a puzzle.
//
// Nothing is maintained incrementally: every query re-reads the solved
// sessions from the store, already ordered by score, finish instant and id.
package leaderboard

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/play"
)

// SolvedLister is the store access the ranker needs.
type SolvedLister interface {
	ListSolved(ctx context.Context, puzzleID ulid.ULID, limit int) ([]*play.Session, error)
	SolvedPuzzleIDs(ctx context.Context, playerID uuid.UUID) ([]ulid.ULID, error)
}

// Entry is one ranked solved session.
type Entry struct {
	Rank       int
	PlayerID   uuid.UUID
	PuzzleID   ulid.ULID
	Score      time.Duration
	FinishedAt time.Time
}

// Stats aggregates the solved sessions of one puzzle. Average and Best are nil
// when Count is zero.
type Stats struct {
	Count   int
	Average *time.Duration
	Best    *time.Duration
}

// PlayerStats summarizes a player's solved puzzles. Every pointer is nil when
// Played is zero.
type PlayerStats struct {
	Played       int
	AverageRank  *float64
	AverageScore *time.Duration
	BestRank     *int
}

// History is a player's ranked results, newest finish first.
type History struct {
	Entries []Entry
	Stats   PlayerStats
}

// Ranker answers leaderboard queries.
type Ranker struct {
	sessions SolvedLister
}

// NewRanker creates a Ranker over sessions.
func NewRanker(sessions SolvedLister) *Ranker {
	return &Ranker{sessions: sessions}
}

// TopN returns the n best entries for the puzzle. n <= 0 returns every entry.
func (r *Ranker) TopN(ctx context.Context, puzzleID ulid.ULID, n int) ([]Entry, error) {
	rows, err := r.sessions.ListSolved(ctx, puzzleID, n)
	if err != nil {
		return nil, oops.Code("LEADERBOARD_LIST_FAILED").With("puzzle_id", puzzleID.String()).Wrap(err)
	}
	return rank(rows), nil
}

// RankOf returns the player's dense rank on the puzzle. ok is false when the
// player has no solved session.
func (r *Ranker) RankOf(ctx context.Context, key play.Key) (entry Entry, ok bool, err error) {
	if key.PlayerID == uuid.Nil {
		return Entry{}, false, oops.Code("LEADERBOARD_NOT_AUTHENTICATED").Wrap(play.ErrNotAuthenticated)
	}
	rows, err := r.sessions.ListSolved(ctx, key.PuzzleID, 0)
	if err != nil {
		return Entry{}, false, oops.Code("LEADERBOARD_LIST_FAILED").
			With("puzzle_id", key.PuzzleID.String()).
			With("player_id", key.PlayerID.String()).
			Wrap(err)
	}
	for _, e := range rank(rows) {
		if e.PlayerID == key.PlayerID {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Stats returns count, mean and best score over every solved session.
func (r *Ranker) Stats(ctx context.Context, puzzleID ulid.ULID) (Stats, error) {
	rows, err := r.sessions.ListSolved(ctx, puzzleID, 0)
	if err != nil {
		return Stats{}, oops.Code("LEADERBOARD_LIST_FAILED").With("puzzle_id", puzzleID.String()).Wrap(err)
	}
	if len(rows) == 0 {
		return Stats{}, nil
	}
	var total time.Duration
	best := rows[0].Score
	for _, s := range rows {
		total += s.Score
		best = min(best, s.Score)
	}
	avg := (total / time.Duration(len(rows))).Round(time.Millisecond)
	return Stats{Count: len(rows), Average: &avg, Best: &best}, nil
}

// PlayerHistory ranks the player on every puzzle they solved. Ranks are
// computed against the current board, so later ties can move them.
func (r *Ranker) PlayerHistory(ctx context.Context, playerID uuid.UUID) (History, error) {
	if playerID == uuid.Nil {
		return History{}, oops.Code("LEADERBOARD_NOT_AUTHENTICATED").Wrap(play.ErrNotAuthenticated)
	}
	ids, err := r.sessions.SolvedPuzzleIDs(ctx, playerID)
	if err != nil {
		return History{}, oops.Code("LEADERBOARD_LIST_FAILED").With("player_id", playerID.String()).Wrap(err)
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		rows, err := r.sessions.ListSolved(ctx, id, 0)
		if err != nil {
			return History{}, oops.Code("LEADERBOARD_LIST_FAILED").
				With("puzzle_id", id.String()).
				With("player_id", playerID.String()).
				Wrap(err)
		}
		for _, e := range rank(rows) {
			if e.PlayerID == playerID {
				entries = append(entries, e)
				break
			}
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.FinishedAt.Compare(a.FinishedAt); c != 0 {
			return c
		}
		return b.PuzzleID.Compare(a.PuzzleID)
	})
	return History{Entries: entries, Stats: summarize(entries)}, nil
}

func summarize(entries []Entry) PlayerStats {
	if len(entries) == 0 {
		return PlayerStats{}
	}
	var (
		rankSum  int
		scoreSum time.Duration
	)
	best := entries[0].Rank
	for _, e := range entries {
		rankSum += e.Rank
		scoreSum += e.Score
		best = min(best, e.Rank)
	}
	n := len(entries)
	avgRank := math.Round(float64(rankSum)/float64(n)*10) / 10
	avgScore := (scoreSum / time.Duration(n)).Round(time.Millisecond)
	return PlayerStats{Played: n, AverageRank: &avgRank, AverageScore: &avgScore, BestRank: &best}
}

// rank assigns dense ranks to rows already in leaderboard order. Rows share a
// rank only when both score and finish instant are equal.
func rank(rows []*play.Session) []Entry {
	entries := make([]Entry, 0, len(rows))
	current := 0
	for i, s := range rows {
		if i == 0 || s.Score != rows[i-1].Score || !s.FinishedAt.Equal(rows[i-1].FinishedAt) {
			current++
		}
		entries = append(entries, Entry{
			Rank:       current,
			PlayerID:   s.PlayerID,
			PuzzleID:   s.PuzzleID,
			Score:      s.Score,
			FinishedAt: s.FinishedAt,
		})
	}
	return entries
}
