// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package play

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Key identifies the single session a player may have on a puzzle.
type Key struct {
	PlayerID uuid.UUID
	PuzzleID ulid.ULID
}

// Validate rejects keys without a player identity or puzzle.
func (k Key) Validate() error {
	if k.PlayerID == uuid.Nil {
		return oops.Code("PLAY_NOT_AUTHENTICATED").Wrap(ErrNotAuthenticated)
	}
	if k.PuzzleID.Compare(ulid.ULID{}) == 0 {
		return oops.Code("PLAY_INVALID_PUZZLE").
			With("player_id", k.PlayerID.String()).
			Errorf("puzzle ID cannot be zero")
	}
	return nil
}

// Status is the persisted lifecycle status of a session.
type Status string

// Persisted statuses. A missing row is the implicit idle state.
const (
	StatusStarted Status = "started"
	StatusSolved  Status = "solved"
)

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusStarted, StatusSolved:
		return st, nil
	default:
		return "", oops.Code("SESSION_INVALID_STATUS").With("status", s).Errorf("unknown session status %q", s)
	}
}

// Session is one player's attempt at one puzzle.
type Session struct {
	ID            ulid.ULID
	PlayerID      uuid.UUID
	PuzzleID      ulid.ULID
	Status        Status
	StartedAt     time.Time     // set once by the server
	Penalty       time.Duration // accumulated hint penalty
	HintsRevealed int
	Duration      time.Duration // elapsed wall time at finalize, excluding penalty
	Score         time.Duration // Duration + Penalty, written once
	FinishedAt    time.Time     // zero until solved
}

// NewSession creates a started session for key beginning at startedAt.
func NewSession(key Key, startedAt time.Time) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if startedAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_START").Errorf("start instant cannot be zero")
	}
	return &Session{
		ID:        ulid.Make(),
		PlayerID:  key.PlayerID,
		PuzzleID:  key.PuzzleID,
		Status:    StatusStarted,
		StartedAt: startedAt,
	}, nil
}

// Key returns the (player, puzzle) key of s.
func (s *Session) Key() Key {
	return Key{PlayerID: s.PlayerID, PuzzleID: s.PuzzleID}
}

// State is the tagged lifecycle variant of a session: NoSession, Started or Solved.
type State interface {
	isState()
}

// NoSession means no row exists for the key.
type NoSession struct{}

// Started wraps a session that can still reveal hints and accept guesses.
type Started struct {
	Session *Session
}

// Solved wraps a finalized, immutable session.
type Solved struct {
	Session *Session
}

func (NoSession) isState() {}
func (Started) isState()   {}
func (Solved) isState()    {}

// StateOf maps a stored row, possibly nil, to its State variant.
func StateOf(s *Session) State {
	switch {
	case s == nil:
		return NoSession{}
	case s.Status == StatusSolved:
		return Solved{Session: s}
	default:
		return Started{Session: s}
	}
}
