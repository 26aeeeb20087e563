// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailymoji/dailymoji/internal/leaderboard"
	"github.com/dailymoji/dailymoji/internal/memstore"
	"github.com/dailymoji/dailymoji/internal/observability"
	"github.com/dailymoji/dailymoji/internal/play"
	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/internal/store"
)

var (
	today     = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	yesterday = today.AddDate(0, 0, -1)
	t0        = today.Add(9 * time.Hour)
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

type env struct {
	t        *testing.T
	clock    *clockwork.FakeClock
	handler  http.Handler
	puzzle   *puzzle.Puzzle
	previous *puzzle.Puzzle
	sessions *memstore.SessionStore
	manager  *play.Manager
	metrics  *observability.Metrics
	player   uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	p, err := puzzle.NewPuzzle(today, "Stardew Valley", []string{"🐔", "🌱", "🎣"}, []string{"ConcernedApe", "2016", "Pelican Town"}, nil)
	require.NoError(t, err)
	prev, err := puzzle.NewPuzzle(yesterday, "Portal", []string{"🔵", "🟠", "🍰"}, []string{"Valve"}, nil)
	require.NoError(t, err)

	e := &env{
		t:        t,
		clock:    clockwork.NewFakeClockAt(t0),
		puzzle:   p,
		previous: prev,
		sessions: memstore.NewSessionStore(),
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		player:   uuid.New(),
	}
	puzzles := memstore.NewPuzzleStore(p, prev)
	e.manager, err = play.NewManager(e.sessions, puzzles, play.WithClock(e.clock))
	require.NoError(t, err)
	e.handler = NewHandler(puzzles, e.manager, leaderboard.NewRanker(e.sessions), Options{
		Clock:   e.clock,
		Metrics: e.metrics,
	})
	return e
}

func (e *env) do(method, path, player, body string) (int, response) {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if player != "" {
		req.Header.Set(DefaultPlayerHeader, player)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp response
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	assert.Equal(e.t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func decodeData[T any](t *testing.T, resp response) T {
	t.Helper()
	require.True(t, resp.Success, "error: %+v", resp.Error)
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestAPI_PlayThrough(t *testing.T) {
	e := newEnv(t)
	me := e.player.String()

	code, resp := e.do(http.MethodGet, "/api/puzzles/2026-10-17", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(resp.Data), "Stardew")
	assert.NotContains(t, string(resp.Data), "Pelican")
	view := decodeData[puzzle.PublicView](t, resp)
	assert.Equal(t, 3, view.HintCount)

	code, resp = e.do(http.MethodPost, "/api/puzzles/today/start", me, "")
	require.Equal(t, http.StatusCreated, code)
	started := decodeData[startView](t, resp)
	assert.False(t, started.Resumed)
	assert.Equal(t, "started", started.Session.Status)
	assert.Equal(t, t0, started.Session.StartedAt)

	for i, wantCost := range []int64{2000, 5000} {
		code, resp = e.do(http.MethodPost, "/api/puzzles/2026-10-17/hints", me, "")
		require.Equal(t, http.StatusOK, code)
		hint := decodeData[hintView](t, resp)
		assert.Equal(t, i+1, hint.Ordinal)
		assert.Equal(t, wantCost, hint.CostMs)
	}

	e.clock.Advance(10 * time.Second)
	code, resp = e.do(http.MethodPost, "/api/puzzles/2026-10-17/start", me, "")
	require.Equal(t, http.StatusOK, code)
	resumed := decodeData[startView](t, resp)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, t0, resumed.Session.StartedAt, "resume keeps the original start")
	assert.Equal(t, []string{"ConcernedApe", "2016"}, resumed.Hints)
	assert.Equal(t, int64(7000), resumed.Session.PenaltyMs)

	code, resp = e.do(http.MethodPost, "/api/puzzles/2026-10-17/guesses", me, `{"guess":"Harvest Moon"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[guessView](t, resp).Correct)

	e.clock.Advance(15 * time.Second)
	code, resp = e.do(http.MethodPost, "/api/puzzles/2026-10-17/guesses", me, `{"guess":"stardew-valley!","client_penalty_ms":7000}`)
	require.Equal(t, http.StatusOK, code)
	solved := decodeData[guessView](t, resp)
	require.True(t, solved.Correct)
	assert.Equal(t, "solved", solved.Session.Status)
	require.NotNil(t, solved.Session.ScoreMs)
	assert.Equal(t, int64(32000), *solved.Session.ScoreMs)
	assert.Equal(t, int64(25000), *solved.Session.DurationMs)

	code, resp = e.do(http.MethodPost, "/api/puzzles/2026-10-17/guesses", me, `{"guess":"stardew valley"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(play.KindAlreadySolved), resp.Error.Kind)

	code, resp = e.do(http.MethodGet, "/api/puzzles/2026-10-17/leaderboard", "", "")
	require.Equal(t, http.StatusOK, code)
	board := decodeData[leaderboardView](t, resp)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, entryView{Rank: 1, PlayerID: me, ScoreMs: 32000, FinishedAt: t0.Add(25 * time.Second)}, board.Entries[0])

	code, resp = e.do(http.MethodGet, "/api/puzzles/2026-10-17/rank", me, "")
	require.Equal(t, http.StatusOK, code)
	rank := decodeData[rankView](t, resp)
	assert.True(t, rank.Ranked)
	assert.Equal(t, 1, rank.Entry.Rank)

	code, resp = e.do(http.MethodGet, "/api/puzzles/2026-10-17/stats", "", "")
	require.Equal(t, http.StatusOK, code)
	stats := decodeData[statsView](t, resp)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, int64(32000), *stats.AverageMs)
	assert.Equal(t, int64(32000), *stats.BestMs)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.HTTPRequests.WithLabelValues("start", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.HTTPRequests.WithLabelValues("submit", "409")))
}

func TestAPI_Errors(t *testing.T) {
	e := newEnv(t)
	me := e.player.String()

	tests := []struct {
		name    string
		method  string
		path    string
		player  string
		body    string
		code    int
		kind    string
		message string
	}{
		{"missing player", http.MethodPost, "/api/puzzles/2026-10-17/start", "", "", http.StatusUnauthorized, "NotAuthenticated", "player identity required"},
		{"invalid player", http.MethodPost, "/api/puzzles/2026-10-17/start", "not-a-uuid", "", http.StatusUnauthorized, "NotAuthenticated", "player identity required"},
		{"nil player", http.MethodGet, "/api/puzzles/2026-10-17/rank", uuid.Nil.String(), "", http.StatusUnauthorized, "NotAuthenticated", "player identity required"},
		{"bad date", http.MethodGet, "/api/puzzles/17-10-2026", "", "", http.StatusBadRequest, KindBadRequest, `date must be YYYY-MM-DD or today, got "17-10-2026"`},
		{"no puzzle", http.MethodGet, "/api/puzzles/2026-10-18", "", "", http.StatusNotFound, "NotFound", "not found"},
		{"hint before start", http.MethodPost, "/api/puzzles/2026-10-17/hints", me, "", http.StatusConflict, "InvalidState", "puzzle not started"},
		{"guess before start", http.MethodPost, "/api/puzzles/2026-10-17/guesses", me, `{"guess":"x"}`, http.StatusConflict, "InvalidState", "puzzle not started"},
		{"empty body", http.MethodPost, "/api/puzzles/2026-10-17/guesses", me, "", http.StatusBadRequest, KindBadRequest, "request body is required"},
		{"empty guess", http.MethodPost, "/api/puzzles/2026-10-17/guesses", me, `{"guess":"  "}`, http.StatusBadRequest, KindBadRequest, "guess is required"},
		{"negative penalty", http.MethodPost, "/api/puzzles/2026-10-17/guesses", me, `{"guess":"x","client_penalty_ms":-1}`, http.StatusBadRequest, KindBadRequest, "client_penalty_ms must not be negative"},
		{"limit too large", http.MethodGet, "/api/puzzles/2026-10-17/leaderboard?limit=101", "", "", http.StatusBadRequest, KindBadRequest, "limit must be between 1 and 100"},
		{"limit zero", http.MethodGet, "/api/puzzles/2026-10-17/leaderboard?limit=0", "", "", http.StatusBadRequest, KindBadRequest, "limit must be between 1 and 100"},
		{"bad archive date", http.MethodGet, "/api/archive?before=yesterday", "", "", http.StatusBadRequest, KindBadRequest, `before must be YYYY-MM-DD, got "yesterday"`},
		{"unknown route", http.MethodGet, "/api/nope", "", "", http.StatusNotFound, "NotFound", "no such route"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := e.do(tt.method, tt.path, tt.player, tt.body)
			assert.Equal(t, tt.code, code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, resp.Error.Kind)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestAPI_HintsExhausted(t *testing.T) {
	e := newEnv(t)
	me := e.player.String()

	code, _ := e.do(http.MethodPost, "/api/puzzles/2026-10-16/start", me, "")
	require.Equal(t, http.StatusCreated, code)
	code, _ = e.do(http.MethodPost, "/api/puzzles/2026-10-16/hints", me, "")
	require.Equal(t, http.StatusOK, code)

	code, resp := e.do(http.MethodPost, "/api/puzzles/2026-10-16/hints", me, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "InvalidState", resp.Error.Kind)
	assert.Equal(t, "no hints left", resp.Error.Message)
}

func TestAPI_Archive(t *testing.T) {
	e := newEnv(t)
	me := e.player.String()

	_, err := e.manager.Start(context.Background(), play.Key{PlayerID: e.player, PuzzleID: e.previous.ID})
	require.NoError(t, err)
	_, err = e.manager.Submit(context.Background(), play.Key{PlayerID: e.player, PuzzleID: e.previous.ID}, "portal", nil)
	require.NoError(t, err)

	code, resp := e.do(http.MethodGet, "/api/archive", me, "")
	require.Equal(t, http.StatusOK, code)
	archive := decodeData[archiveView](t, resp)
	assert.Equal(t, "2026-10-17", archive.Before)
	require.Len(t, archive.Puzzles, 1, "today's puzzle is not archived yet")
	assert.Equal(t, e.previous.ID.String(), archive.Puzzles[0].ID)
	assert.True(t, archive.Puzzles[0].Solved)

	code, resp = e.do(http.MethodGet, "/api/archive?before=2026-10-18", "", "")
	require.Equal(t, http.StatusOK, code)
	archive = decodeData[archiveView](t, resp)
	require.Len(t, archive.Puzzles, 2)
	assert.Equal(t, "2026-10-17", archive.Puzzles[0].Date)
	assert.False(t, archive.Puzzles[1].Solved, "anonymous callers see no solved flags")
}

func TestAPI_RankUnsolved(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(http.MethodGet, "/api/puzzles/2026-10-17/rank", e.player.String(), "")
	require.Equal(t, http.StatusOK, code)
	rank := decodeData[rankView](t, resp)
	assert.False(t, rank.Ranked)
	assert.Nil(t, rank.Entry)

	code, resp = e.do(http.MethodGet, "/api/puzzles/2026-10-17/stats", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":0,"average_ms":null,"best_ms":null}`, string(resp.Data))
}

func TestAPI_PlayerHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	me := e.player.String()

	code, resp := e.do(http.MethodGet, "/api/players/me/history", me, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"entries":[],"stats":{"played":0,"average_rank":null,"average_score_ms":null,"best_rank":null}}`, string(resp.Data))

	solveAfter := func(player uuid.UUID, p *puzzle.Puzzle, answer string, took time.Duration) {
		t.Helper()
		key := play.Key{PlayerID: player, PuzzleID: p.ID}
		_, err := e.manager.Start(ctx, key)
		require.NoError(t, err)
		e.clock.Advance(took)
		res, err := e.manager.Submit(ctx, key, answer, nil)
		require.NoError(t, err)
		require.True(t, res.Correct)
	}
	solveAfter(uuid.New(), e.puzzle, "Stardew Valley", 2*time.Second)
	solveAfter(e.player, e.previous, "portal", 4*time.Second)
	solveAfter(e.player, e.puzzle, "stardew valley", 6*time.Second)

	code, resp = e.do(http.MethodGet, "/api/players/me/history", me, "")
	require.Equal(t, http.StatusOK, code)
	h := decodeData[historyView](t, resp)
	require.Len(t, h.Entries, 2)
	assert.Equal(t, historyEntryView{
		PuzzleID:   e.puzzle.ID.String(),
		Date:       "2026-10-17",
		Rank:       2,
		ScoreMs:    6000,
		FinishedAt: t0.Add(12 * time.Second),
	}, h.Entries[0])
	assert.Equal(t, "2026-10-16", h.Entries[1].Date)
	assert.Equal(t, 1, h.Entries[1].Rank)
	assert.Equal(t, int64(4000), h.Entries[1].ScoreMs)

	assert.Equal(t, 2, h.Stats.Played)
	require.NotNil(t, h.Stats.AverageRank)
	assert.InDelta(t, 1.5, *h.Stats.AverageRank, 0.001)
	require.NotNil(t, h.Stats.AverageScoreMs)
	assert.Equal(t, int64(5000), *h.Stats.AverageScoreMs)
	require.NotNil(t, h.Stats.BestRank)
	assert.Equal(t, 1, *h.Stats.BestRank)

	code, resp = e.do(http.MethodGet, "/api/players/me/history", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "NotAuthenticated", resp.Error.Kind)
}

type failingBoard struct {
	err error
}

func (b failingBoard) TopN(context.Context, ulid.ULID, int) ([]leaderboard.Entry, error) {
	return nil, b.err
}

func (b failingBoard) RankOf(context.Context, play.Key) (leaderboard.Entry, bool, error) {
	return leaderboard.Entry{}, false, b.err
}

func (b failingBoard) Stats(context.Context, ulid.ULID) (leaderboard.Stats, error) {
	return leaderboard.Stats{}, b.err
}

func (b failingBoard) PlayerHistory(context.Context, uuid.UUID) (leaderboard.History, error) {
	return leaderboard.History{}, b.err
}

func TestAPI_StoreFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"transient", oops.Code("SESSION_LIST_SOLVED_FAILED").Wrap(store.ErrUnavailable), http.StatusServiceUnavailable, "StoreUnavailable"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "StoreUnavailable"},
		{"unknown", oops.Errorf("corrupt row"), http.StatusInternalServerError, "Internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.handler = NewHandler(memstore.NewPuzzleStore(e.puzzle), e.manager, failingBoard{err: tt.err}, Options{Clock: e.clock})

			code, resp := e.do(http.MethodGet, "/api/puzzles/2026-10-17/leaderboard", "", "")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.kind, resp.Error.Kind)
			assert.NotContains(t, resp.Error.Message, "corrupt")
		})
	}
}

func TestAPI_CustomPlayerHeaderAndCORS(t *testing.T) {
	e := newEnv(t)
	h := NewHandler(memstore.NewPuzzleStore(e.puzzle), e.manager, leaderboard.NewRanker(e.sessions), Options{
		PlayerHeader:   "X-Dailymoji-User",
		AllowedOrigins: []string{"https://dailymoji.example"},
		Clock:          e.clock,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/puzzles/2026-10-17/start", nil)
	req.Header.Set("X-Dailymoji-User", e.player.String())
	req.Header.Set("Origin", "https://dailymoji.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "https://dailymoji.example", rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/puzzles/2026-10-17/hints", nil)
	preflight.Header.Set("Origin", "https://dailymoji.example")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Header.Set("Access-Control-Request-Headers", "x-dailymoji-user")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://dailymoji.example", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/api/puzzles/2026-10-17", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Lifecycle(t *testing.T) {
	e := newEnv(t)
	s := NewServer("127.0.0.1:0", e.handler)
	errCh, err := s.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr() + "/api/puzzles/2026-10-17")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	_, open := <-errCh
	assert.False(t, open)
}
