// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package play

import (
	"context"
	"time"

	"github.com/dailymoji/dailymoji/internal/scoring"
)

// SolvedEvent announces that a session was finalized.
type SolvedEvent struct {
	SessionID     string    `json:"session_id"`
	PlayerID      string    `json:"player_id"`
	PuzzleID      string    `json:"puzzle_id"`
	PuzzleDate    string    `json:"puzzle_date"`
	ScoreMs       int64     `json:"score_ms"`
	DurationMs    int64     `json:"duration_ms"`
	PenaltyMs     int64     `json:"penalty_ms"`
	HintsRevealed int       `json:"hints_revealed"`
	FinishedAt    time.Time `json:"finished_at"`
}

// NewSolvedEvent builds the event for a solved session.
func NewSolvedEvent(s *Session, puzzleDate string) SolvedEvent {
	return SolvedEvent{
		SessionID:     s.ID.String(),
		PlayerID:      s.PlayerID.String(),
		PuzzleID:      s.PuzzleID.String(),
		PuzzleDate:    puzzleDate,
		ScoreMs:       scoring.Milliseconds(s.Score),
		DurationMs:    scoring.Milliseconds(s.Duration),
		PenaltyMs:     scoring.Milliseconds(s.Penalty),
		HintsRevealed: s.HintsRevealed,
		FinishedAt:    s.FinishedAt,
	}
}

// Publisher delivers solved events to downstream consumers.
// Delivery is best effort; a publish failure never fails Submit.
type Publisher interface {
	PublishSolved(ctx context.Context, ev SolvedEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishSolved(context.Context, SolvedEvent) error { return nil }
