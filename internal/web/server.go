// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package web exposes puzzle play and the leaderboard as a JSON HTTP API.
//
// Every response is an envelope {"success", "data", "error": {"kind", "message"}}.
// The player is identified by a UUID in a configurable request header set by
// the upstream auth layer.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/rs/cors"

	"github.com/dailymoji/dailymoji/internal/httpserve"
	"github.com/dailymoji/dailymoji/internal/leaderboard"
	"github.com/dailymoji/dailymoji/internal/observability"
	"github.com/dailymoji/dailymoji/internal/play"
	"github.com/dailymoji/dailymoji/internal/puzzle"
)

// Puzzles is the puzzle access the API needs.
type Puzzles interface {
	GetByID(ctx context.Context, id ulid.ULID) (*puzzle.Puzzle, error)
	GetByDate(ctx context.Context, date time.Time) (*puzzle.Puzzle, error)
	ListBefore(ctx context.Context, date time.Time, limit int) ([]*puzzle.Puzzle, error)
}

// Sessions runs the session lifecycle. *play.Manager implements it.
type Sessions interface {
	Start(ctx context.Context, key play.Key) (play.StartResult, error)
	RevealHint(ctx context.Context, key play.Key) (play.HintResult, error)
	Submit(ctx context.Context, key play.Key, guess string, clientPenalty *time.Duration) (play.SubmitResult, error)
	SolvedPuzzles(ctx context.Context, playerID uuid.UUID) (map[ulid.ULID]bool, error)
}

// Leaderboard answers ranking queries. *leaderboard.Ranker implements it.
type Leaderboard interface {
	TopN(ctx context.Context, puzzleID ulid.ULID, n int) ([]leaderboard.Entry, error)
	RankOf(ctx context.Context, key play.Key) (leaderboard.Entry, bool, error)
	Stats(ctx context.Context, puzzleID ulid.ULID) (leaderboard.Stats, error)
	PlayerHistory(ctx context.Context, playerID uuid.UUID) (leaderboard.History, error)
}

// Defaults for Options.
const (
	DefaultPlayerHeader = "X-Player-ID"
	DefaultOpTimeout    = 5 * time.Second
)

// Options configures the API handler.
type Options struct {
	PlayerHeader   string
	AllowedOrigins []string
	// OpTimeout bounds the context of every request.
	OpTimeout time.Duration
	Clock     clockwork.Clock
	Logger    *slog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

type api struct {
	puzzles      Puzzles
	sessions     Sessions
	board        Leaderboard
	playerHeader string
	opTimeout    time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewHandler returns the API routes wrapped in CORS handling.
func NewHandler(puzzles Puzzles, sessions Sessions, board Leaderboard, opts Options) http.Handler {
	a := &api{
		puzzles:      puzzles,
		sessions:     sessions,
		board:        board,
		playerHeader: opts.PlayerHeader,
		opTimeout:    opts.OpTimeout,
		clock:        opts.Clock,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
	if a.playerHeader == "" {
		a.playerHeader = DefaultPlayerHeader
	}
	if a.opTimeout <= 0 {
		a.opTimeout = DefaultOpTimeout
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	mux := http.NewServeMux()
	a.route(mux, "GET /api/puzzles/{date}", "puzzle", a.getPuzzle)
	a.route(mux, "POST /api/puzzles/{date}/start", "start", a.start)
	a.route(mux, "POST /api/puzzles/{date}/hints", "reveal_hint", a.revealHint)
	a.route(mux, "POST /api/puzzles/{date}/guesses", "submit", a.submit)
	a.route(mux, "GET /api/puzzles/{date}/leaderboard", "leaderboard", a.leaderboard)
	a.route(mux, "GET /api/puzzles/{date}/rank", "rank", a.rank)
	a.route(mux, "GET /api/puzzles/{date}/stats", "stats", a.stats)
	a.route(mux, "GET /api/archive", "archive", a.archive)
	a.route(mux, "GET /api/players/me/history", "player_history", a.playerHistory)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Error: &errorBody{Kind: string(play.KindNotFound), Message: "no such route"}})
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", a.playerHeader},
	})
	return c.Handler(mux)
}

// handlerFunc returns the success status and payload, or an error.
type handlerFunc func(r *http.Request) (int, any, error)

func (a *api) route(mux *http.ServeMux, pattern, name string, h handlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), a.opTimeout)
		defer cancel()
		r = r.WithContext(ctx)

		status := a.serve(w, r, h)

		if a.metrics != nil {
			a.metrics.HTTPRequests.WithLabelValues(name, strconv.Itoa(status)).Inc()
			a.metrics.HTTPDuration.WithLabelValues(name).Observe(time.Since(began).Seconds())
		}
	})
}

func (a *api) serve(w http.ResponseWriter, r *http.Request, h handlerFunc) (status int) {
	defer func() {
		if p := recover(); p != nil {
			a.logger.ErrorContext(r.Context(), "panic in handler", "panic", p, "path", r.URL.Path)
			status = http.StatusInternalServerError
			writeJSON(w, status, envelope{Error: &errorBody{Kind: string(play.KindInternal), Message: publicMessages[play.KindInternal]}})
		}
	}()

	status, data, err := h(r)
	if err != nil {
		kind, _ := describe(err)
		status = statusOf(kind)
		writeError(w, r, a.logger, err)
		return status
	}
	writeData(w, status, data)
	return status
}

// NewServer creates a server for handler on addr.
func NewServer(addr string, handler http.Handler) *httpserve.Server {
	return httpserve.New("http", addr, handler)
}
