// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

//go:build integration

package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/dailymoji/dailymoji/internal/leaderboard"
	"github.com/dailymoji/dailymoji/internal/play"
	playpg "github.com/dailymoji/dailymoji/internal/play/postgres"
	"github.com/dailymoji/dailymoji/internal/puzzle"
	puzzlepg "github.com/dailymoji/dailymoji/internal/puzzle/postgres"
	"github.com/dailymoji/dailymoji/internal/web"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Playing the daily puzzle", func() {
	var (
		ctx    context.Context
		clock  *clockwork.FakeClock
		server *httptest.Server
	)
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	call := func(method, path string, player uuid.UUID, body string) (int, envelope) {
		req, err := http.NewRequestWithContext(ctx, method, server.URL+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		if player != uuid.Nil {
			req.Header.Set(web.DefaultPlayerHeader, player.String())
		}
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		var env envelope
		Expect(json.Unmarshal(raw, &env)).To(Succeed(), "body: %s", raw)
		return resp.StatusCode, env
	}

	BeforeEach(func() {
		ctx = context.Background()
		_, err := pool.Exec(ctx, `TRUNCATE play_sessions, puzzles`)
		Expect(err).NotTo(HaveOccurred())

		puzzles := puzzlepg.NewPuzzleRepository(pool)
		p, err := puzzle.NewPuzzle(day, "Hollow Knight", []string{"🐛", "🗡️", "🕳️"}, []string{"Team Cherry", "Hallownest", "2017"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(puzzles.Create(ctx, p)).To(Succeed())

		sessions := playpg.NewSessionRepository(pool)
		clock = clockwork.NewFakeClockAt(day.Add(8 * time.Hour))
		manager, err := play.NewManager(sessions, puzzles, play.WithClock(clock))
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(web.NewHandler(puzzles, manager, leaderboard.NewRanker(sessions), web.Options{Clock: clock}))
		DeferCleanup(server.Close)
	})

	It("scores a solve with hints and ranks it", func() {
		player := uuid.New()

		code, env := call(http.MethodPost, "/api/puzzles/today/start", player, "")
		Expect(code).To(Equal(http.StatusCreated))
		Expect(env.Success).To(BeTrue())

		code, _ = call(http.MethodPost, "/api/puzzles/today/hints", player, "")
		Expect(code).To(Equal(http.StatusOK))

		clock.Advance(40 * time.Second)
		code, env = call(http.MethodPost, "/api/puzzles/today/guesses", player, `{"guess":"hollow night"}`)
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(env.Data)).To(ContainSubstring(`"correct":false`))

		code, env = call(http.MethodPost, "/api/puzzles/today/guesses", player, `{"guess":"  HOLLOW KNIGHT "}`)
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(env.Data)).To(ContainSubstring(`"correct":true`))
		Expect(string(env.Data)).To(ContainSubstring(`"score_ms":42000`))

		code, env = call(http.MethodPost, "/api/puzzles/today/guesses", player, `{"guess":"Hollow Knight"}`)
		Expect(code).To(Equal(http.StatusConflict))
		Expect(env.Error.Kind).To(Equal("AlreadySolved"))

		code, env = call(http.MethodGet, "/api/puzzles/today/rank", player, "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(env.Data)).To(ContainSubstring(`"ranked":true`))
		Expect(string(env.Data)).To(ContainSubstring(`"rank":1`))
	})

	It("resumes a started session instead of restarting the clock", func() {
		player := uuid.New()
		code, _ := call(http.MethodPost, "/api/puzzles/today/start", player, "")
		Expect(code).To(Equal(http.StatusCreated))

		clock.Advance(time.Minute)
		code, env := call(http.MethodPost, "/api/puzzles/today/start", player, "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(env.Data)).To(ContainSubstring(`"resumed":true`))
		Expect(string(env.Data)).To(ContainSubstring(`"started_at":"2026-10-17T08:00:00Z"`))
	})

	It("answers unknown dates with NotFound", func() {
		code, env := call(http.MethodGet, "/api/puzzles/2026-10-18", uuid.Nil, "")
		Expect(code).To(Equal(http.StatusNotFound))
		Expect(env.Error.Kind).To(Equal("NotFound"))
	})
})
