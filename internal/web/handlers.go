// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/leaderboard"
	"github.com/dailymoji/dailymoji/internal/play"
	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/internal/scoring"
)

// Query limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	DefaultArchiveLimit     = 30
	MaxArchiveLimit         = 365
	maxBodyBytes            = 4 << 10
)

type sessionView struct {
	ID            string     `json:"id"`
	PuzzleID      string     `json:"puzzle_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	PenaltyMs     int64      `json:"penalty_ms"`
	HintsRevealed int        `json:"hints_revealed"`
	DurationMs    *int64     `json:"duration_ms,omitempty"`
	ScoreMs       *int64     `json:"score_ms,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func viewSession(s *play.Session) sessionView {
	v := sessionView{
		ID:            s.ID.String(),
		PuzzleID:      s.PuzzleID.String(),
		Status:        string(s.Status),
		StartedAt:     s.StartedAt,
		PenaltyMs:     scoring.Milliseconds(s.Penalty),
		HintsRevealed: s.HintsRevealed,
	}
	if s.Status == play.StatusSolved {
		duration, score, finished := scoring.Milliseconds(s.Duration), scoring.Milliseconds(s.Score), s.FinishedAt
		v.DurationMs, v.ScoreMs, v.FinishedAt = &duration, &score, &finished
	}
	return v
}

type startView struct {
	Session sessionView `json:"session"`
	Resumed bool        `json:"resumed"`
	// Hints are the texts already revealed, so a resumed client can redraw them.
	Hints []string `json:"hints"`
}

type hintView struct {
	Ordinal int         `json:"ordinal"`
	Hint    string      `json:"hint"`
	CostMs  int64       `json:"cost_ms"`
	Session sessionView `json:"session"`
}

type guessRequest struct {
	Guess           string `json:"guess"`
	ClientPenaltyMs *int64 `json:"client_penalty_ms"`
}

type guessView struct {
	Correct bool        `json:"correct"`
	Session sessionView `json:"session"`
}

type entryView struct {
	Rank       int       `json:"rank"`
	PlayerID   string    `json:"player_id"`
	ScoreMs    int64     `json:"score_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

func viewEntry(e leaderboard.Entry) entryView {
	return entryView{
		Rank:       e.Rank,
		PlayerID:   e.PlayerID.String(),
		ScoreMs:    scoring.Milliseconds(e.Score),
		FinishedAt: e.FinishedAt,
	}
}

type leaderboardView struct {
	PuzzleID string      `json:"puzzle_id"`
	Date     string      `json:"date"`
	Entries  []entryView `json:"entries"`
}

type rankView struct {
	Ranked bool       `json:"ranked"`
	Entry  *entryView `json:"entry,omitempty"`
}

type statsView struct {
	Count     int    `json:"count"`
	AverageMs *int64 `json:"average_ms"`
	BestMs    *int64 `json:"best_ms"`
}

type historyEntryView struct {
	PuzzleID   string    `json:"puzzle_id"`
	Date       string    `json:"date"`
	Rank       int       `json:"rank"`
	ScoreMs    int64     `json:"score_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

type playerStatsView struct {
	Played         int      `json:"played"`
	AverageRank    *float64 `json:"average_rank"`
	AverageScoreMs *int64   `json:"average_score_ms"`
	BestRank       *int     `json:"best_rank"`
}

type historyView struct {
	Entries []historyEntryView `json:"entries"`
	Stats   playerStatsView    `json:"stats"`
}

type archiveItem struct {
	puzzle.PublicView
	Solved bool `json:"solved"`
}

type archiveView struct {
	Before  string        `json:"before"`
	Puzzles []archiveItem `json:"puzzles"`
}

// player reads the caller's identity from the configured header.
func (a *api) player(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(a.playerHeader))
	if raw == "" {
		return uuid.Nil, oops.Code("WEB_PLAYER_MISSING").With("header", a.playerHeader).Wrap(play.ErrNotAuthenticated)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, oops.Code("WEB_PLAYER_INVALID").With("header", a.playerHeader).Wrap(play.ErrNotAuthenticated)
	}
	return id, nil
}

// date resolves the {date} path value. "today" means the current UTC date.
func (a *api) date(r *http.Request) (time.Time, error) {
	raw := r.PathValue("date")
	if raw == "today" {
		return puzzle.DateOf(a.clock.Now()), nil
	}
	d, err := puzzle.ParseDate(raw)
	if err != nil {
		return time.Time{}, badRequest("WEB_INVALID_DATE", "date must be YYYY-MM-DD or today, got %q", raw)
	}
	return d, nil
}

func (a *api) puzzleFor(r *http.Request) (*puzzle.Puzzle, error) {
	d, err := a.date(r)
	if err != nil {
		return nil, err
	}
	return a.puzzles.GetByDate(r.Context(), d)
}

// playKey resolves both the player and the puzzle of a play request.
func (a *api) playKey(r *http.Request) (play.Key, *puzzle.Puzzle, error) {
	playerID, err := a.player(r)
	if err != nil {
		return play.Key{}, nil, err
	}
	p, err := a.puzzleFor(r)
	if err != nil {
		return play.Key{}, nil, err
	}
	return play.Key{PlayerID: playerID, PuzzleID: p.ID}, p, nil
}

func limitParam(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return 0, badRequest("WEB_INVALID_LIMIT", "limit must be between 1 and %d", maxLimit)
	}
	return n, nil
}

func (a *api) getPuzzle(r *http.Request) (int, any, error) {
	p, err := a.puzzleFor(r)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, p.Public(), nil
}

func (a *api) start(r *http.Request) (int, any, error) {
	key, p, err := a.playKey(r)
	if err != nil {
		return 0, nil, err
	}
	res, err := a.sessions.Start(r.Context(), key)
	if err != nil {
		return 0, nil, err
	}
	hints := make([]string, 0, res.Session.HintsRevealed)
	for i := range res.Session.HintsRevealed {
		if text, ok := p.Hint(i); ok {
			hints = append(hints, text)
		}
	}
	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	return status, startView{Session: viewSession(res.Session), Resumed: res.Resumed, Hints: hints}, nil
}

func (a *api) revealHint(r *http.Request) (int, any, error) {
	key, _, err := a.playKey(r)
	if err != nil {
		return 0, nil, err
	}
	res, err := a.sessions.RevealHint(r.Context(), key)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, hintView{
		Ordinal: res.Ordinal,
		Hint:    res.Hint,
		CostMs:  scoring.Milliseconds(res.Cost),
		Session: viewSession(res.Session),
	}, nil
}

func (a *api) submit(r *http.Request) (int, any, error) {
	key, _, err := a.playKey(r)
	if err != nil {
		return 0, nil, err
	}

	var req guessRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, badRequest("WEB_EMPTY_BODY", "request body is required")
		}
		return 0, nil, badRequest("WEB_INVALID_BODY", "invalid request body: %v", err)
	}
	if strings.TrimSpace(req.Guess) == "" {
		return 0, nil, badRequest("WEB_EMPTY_GUESS", "guess is required")
	}
	var clientPenalty *time.Duration
	if req.ClientPenaltyMs != nil {
		if *req.ClientPenaltyMs < 0 {
			return 0, nil, badRequest("WEB_INVALID_PENALTY", "client_penalty_ms must not be negative")
		}
		d := scoring.FromMilliseconds(*req.ClientPenaltyMs)
		clientPenalty = &d
	}

	res, err := a.sessions.Submit(r.Context(), key, req.Guess, clientPenalty)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, guessView{Correct: res.Correct, Session: viewSession(res.Session)}, nil
}

func (a *api) leaderboard(r *http.Request) (int, any, error) {
	limit, err := limitParam(r, DefaultLeaderboardLimit, MaxLeaderboardLimit)
	if err != nil {
		return 0, nil, err
	}
	p, err := a.puzzleFor(r)
	if err != nil {
		return 0, nil, err
	}
	entries, err := a.board.TopN(r.Context(), p.ID, limit)
	if err != nil {
		return 0, nil, err
	}
	view := leaderboardView{PuzzleID: p.ID.String(), Date: p.DateString(), Entries: make([]entryView, 0, len(entries))}
	for _, e := range entries {
		view.Entries = append(view.Entries, viewEntry(e))
	}
	return http.StatusOK, view, nil
}

func (a *api) rank(r *http.Request) (int, any, error) {
	key, _, err := a.playKey(r)
	if err != nil {
		return 0, nil, err
	}
	e, ok, err := a.board.RankOf(r.Context(), key)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return http.StatusOK, rankView{}, nil
	}
	v := viewEntry(e)
	return http.StatusOK, rankView{Ranked: true, Entry: &v}, nil
}

func (a *api) stats(r *http.Request) (int, any, error) {
	p, err := a.puzzleFor(r)
	if err != nil {
		return 0, nil, err
	}
	st, err := a.board.Stats(r.Context(), p.ID)
	if err != nil {
		return 0, nil, err
	}
	view := statsView{Count: st.Count}
	if st.Average != nil {
		ms := scoring.Milliseconds(*st.Average)
		view.AverageMs = &ms
	}
	if st.Best != nil {
		ms := scoring.Milliseconds(*st.Best)
		view.BestMs = &ms
	}
	return http.StatusOK, view, nil
}

// archive lists puzzles before a date. The solved flags are filled in only
// when the request carries a player identity.
func (a *api) archive(r *http.Request) (int, any, error) {
	before := puzzle.DateOf(a.clock.Now())
	if raw := r.URL.Query().Get("before"); raw != "" {
		d, err := puzzle.ParseDate(raw)
		if err != nil {
			return 0, nil, badRequest("WEB_INVALID_DATE", "before must be YYYY-MM-DD, got %q", raw)
		}
		before = d
	}
	limit, err := limitParam(r, DefaultArchiveLimit, MaxArchiveLimit)
	if err != nil {
		return 0, nil, err
	}

	var solved map[ulid.ULID]bool
	if r.Header.Get(a.playerHeader) != "" {
		playerID, err := a.player(r)
		if err != nil {
			return 0, nil, err
		}
		if solved, err = a.sessions.SolvedPuzzles(r.Context(), playerID); err != nil {
			return 0, nil, err
		}
	}

	puzzles, err := a.puzzles.ListBefore(r.Context(), before, limit)
	if err != nil {
		return 0, nil, err
	}
	view := archiveView{Before: before.Format(puzzle.DateLayout), Puzzles: make([]archiveItem, 0, len(puzzles))}
	for _, p := range puzzles {
		view.Puzzles = append(view.Puzzles, archiveItem{PublicView: p.Public(), Solved: solved[p.ID]})
	}
	return http.StatusOK, view, nil
}

func (a *api) playerHistory(r *http.Request) (int, any, error) {
	playerID, err := a.player(r)
	if err != nil {
		return 0, nil, err
	}
	h, err := a.board.PlayerHistory(r.Context(), playerID)
	if err != nil {
		return 0, nil, err
	}
	view := historyView{
		Entries: make([]historyEntryView, 0, len(h.Entries)),
		Stats: playerStatsView{
			Played:      h.Stats.Played,
			AverageRank: h.Stats.AverageRank,
			BestRank:    h.Stats.BestRank,
		},
	}
	if h.Stats.AverageScore != nil {
		ms := scoring.Milliseconds(*h.Stats.AverageScore)
		view.Stats.AverageScoreMs = &ms
	}
	for _, e := range h.Entries {
		p, err := a.puzzles.GetByID(r.Context(), e.PuzzleID)
		if err != nil {
			return 0, nil, err
		}
		view.Entries = append(view.Entries, historyEntryView{
			PuzzleID:   e.PuzzleID.String(),
			Date:       p.DateString(),
			Rank:       e.Rank,
			ScoreMs:    scoring.Milliseconds(e.Score),
			FinishedAt: e.FinishedAt,
		})
	}
	return http.StatusOK, view, nil
}
