// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package puzzle

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/scoring"
)

// DateLayout is the calendar-date format used in URLs, seed files and the CLI.
const DateLayout = "2006-01-02"

// Puzzle is one day's puzzle. Puzzles are immutable once created.
type Puzzle struct {
	ID             ulid.ULID
	Date           time.Time // UTC midnight
	Solution       string
	Clues          []string // emoji clue symbols, in display order
	Hints          []string // at most scoring.MaxHints, in reveal order
	ExternalGameID *int64   // game-catalog id, nil when unknown
	CreatedAt      time.Time
}

// NewPuzzle creates a validated Puzzle.
// Blank clues and hints are dropped before validation.
func NewPuzzle(date time.Time, solution string, clues, hints []string, externalGameID *int64) (*Puzzle, error) {
	if date.IsZero() {
		return nil, oops.Code("PUZZLE_INVALID_DATE").Errorf("puzzle date cannot be zero")
	}
	solution = strings.TrimSpace(solution)
	if Normalize(solution) == "" {
		return nil, oops.Code("PUZZLE_INVALID_SOLUTION").
			With("solution", solution).
			Errorf("solution must contain at least one letter or digit")
	}

	clues = compact(clues)
	if len(clues) == 0 {
		return nil, oops.Code("PUZZLE_INVALID_CLUES").Errorf("puzzle needs at least one clue")
	}

	hints = compact(hints)
	if len(hints) > scoring.MaxHints {
		return nil, oops.Code("PUZZLE_TOO_MANY_HINTS").
			With("hints", len(hints)).
			Errorf("puzzle may have at most %d hints, got %d", scoring.MaxHints, len(hints))
	}

	return &Puzzle{
		ID:             ulid.Make(),
		Date:           DateOf(date),
		Solution:       solution,
		Clues:          clues,
		Hints:          hints,
		ExternalGameID: externalGameID,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Matches reports whether guess names this puzzle's solution.
func (p *Puzzle) Matches(guess string) bool {
	g := Normalize(guess)
	return g != "" && g == Normalize(p.Solution)
}

// Hint returns the hint revealed at the given zero-based position.
func (p *Puzzle) Hint(i int) (string, bool) {
	if i < 0 || i >= len(p.Hints) {
		return "", false
	}
	return p.Hints[i], true
}

// DateString formats the puzzle date with DateLayout.
func (p *Puzzle) DateString() string {
	return p.Date.Format(DateLayout)
}

// PublicView is what a player may see before solving.
type PublicView struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Clues     []string `json:"clues"`
	HintCount int      `json:"hint_count"`
}

// Public returns the view of p that does not leak the solution or hint texts.
func (p *Puzzle) Public() PublicView {
	return PublicView{
		ID:        p.ID.String(),
		Date:      p.DateString(),
		Clues:     append([]string(nil), p.Clues...),
		HintCount: len(p.Hints),
	}
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, oops.Code("PUZZLE_INVALID_DATE").
			With("date", s).
			Wrap(err)
	}
	return t, nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
