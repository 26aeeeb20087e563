// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

//go:build integration

package store_test

import (
	"context"
	"sync"
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
)

var day = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

func mustPuzzle(date time.Time, solution string) *puzzle.Puzzle {
	p, err := puzzle.NewPuzzle(date, solution, []string{"🧩"}, []string{"one", "two", "three"}, nil)
	Expect(err).NotTo(HaveOccurred())
	p.CreatedAt = p.CreatedAt.Truncate(time.Microsecond)
	return p
}

var _ = Describe("PuzzleRepository", func() {
	var repo *puzzlepg.PuzzleRepository
	ctx := context.Background()

	BeforeEach(func() {
		truncate()
		repo = puzzlepg.NewPuzzleRepository(pool)
	})

	It("round-trips a puzzle by id and date", func() {
		p := mustPuzzle(day, "Return of the Obra Dinn")
		Expect(repo.Create(ctx, p)).To(Succeed())

		byID, err := repo.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Solution).To(Equal(p.Solution))
		Expect(byID.Hints).To(Equal(p.Hints))

		byDate, err := repo.GetByDate(ctx, day.Add(20*time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(byDate.ID).To(Equal(p.ID))
	})

	It("rejects a second puzzle for the same date", func() {
		Expect(repo.Create(ctx, mustPuzzle(day, "Inside"))).To(Succeed())
		err := repo.Create(ctx, mustPuzzle(day, "Limbo"))
		Expect(err).To(MatchError(puzzle.ErrDuplicateDate))
	})

	It("lists earlier puzzles newest first", func() {
		for i := range 4 {
			Expect(repo.Create(ctx, mustPuzzle(day.AddDate(0, 0, -i), "Braid"))).To(Succeed())
		}
		got, err := repo.ListBefore(ctx, day, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].Date).To(Equal(day.AddDate(0, 0, -1)))
		Expect(got[1].Date).To(Equal(day.AddDate(0, 0, -2)))
	})
})

var _ = Describe("SessionRepository", func() {
	var (
		sessions *playpg.SessionRepository
		p        *puzzle.Puzzle
		key      play.Key
	)
	ctx := context.Background()
	t0 := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		truncate()
		p = mustPuzzle(day, "Celeste")
		Expect(puzzlepg.NewPuzzleRepository(pool).Create(ctx, p)).To(Succeed())
		sessions = playpg.NewSessionRepository(pool)
		key = play.Key{PlayerID: uuid.New(), PuzzleID: p.ID}
	})

	It("creates at most one session per player and puzzle", func() {
		first, err := play.NewSession(key, t0)
		Expect(err).NotTo(HaveOccurred())
		stored, created, err := sessions.CreateIfAbsent(ctx, first)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())
		Expect(stored.StartedAt).To(Equal(t0))

		second, err := play.NewSession(key, t0.Add(time.Minute))
		Expect(err).NotTo(HaveOccurred())
		stored, created, err = sessions.CreateIfAbsent(ctx, second)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())
		Expect(stored.ID).To(Equal(first.ID))
		Expect(stored.StartedAt).To(Equal(t0))
	})

	It("reports a missing puzzle as not found", func() {
		s, err := play.NewSession(play.Key{PlayerID: uuid.New(), PuzzleID: mustPuzzle(day, "x").ID}, t0)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = sessions.CreateIfAbsent(ctx, s)
		Expect(play.KindOf(err)).To(Equal(play.KindNotFound))
	})

	It("applies conditional writes only when the precondition holds", func() {
		s, err := play.NewSession(key, t0)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = sessions.CreateIfAbsent(ctx, s)
		Expect(err).NotTo(HaveOccurred())

		updated, err := sessions.AddPenalty(ctx, key, 0, 2*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Penalty).To(Equal(2 * time.Second))

		_, err = sessions.AddPenalty(ctx, key, 0, 2*time.Second)
		Expect(err).To(MatchError(play.ErrConflict))

		fin := play.Finalization{
			ExpectedHints: 1,
			Penalty:       2 * time.Second,
			Duration:      10 * time.Second,
			Score:         12 * time.Second,
			FinishedAt:    t0.Add(10 * time.Second),
		}
		solved, err := sessions.Finalize(ctx, key, fin)
		Expect(err).NotTo(HaveOccurred())
		Expect(solved.Status).To(Equal(play.StatusSolved))
		Expect(solved.FinishedAt).To(Equal(fin.FinishedAt))

		_, err = sessions.Finalize(ctx, key, fin)
		Expect(err).To(MatchError(play.ErrConflict))

		ids, err := sessions.SolvedPuzzleIDs(ctx, key.PlayerID)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(ConsistOf(p.ID))
	})

	It("orders solved sessions for the leaderboard", func() {
		finish := func(score time.Duration, at time.Time) uuid.UUID {
			k := play.Key{PlayerID: uuid.New(), PuzzleID: p.ID}
			s, err := play.NewSession(k, t0)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = sessions.CreateIfAbsent(ctx, s)
			Expect(err).NotTo(HaveOccurred())
			_, err = sessions.Finalize(ctx, k, play.Finalization{Duration: score, Score: score, FinishedAt: at})
			Expect(err).NotTo(HaveOccurred())
			return k.PlayerID
		}
		finish(4200*time.Millisecond, t0.Add(time.Minute))
		late := finish(1800*time.Millisecond, t0.Add(3*time.Minute))
		early := finish(1800*time.Millisecond, t0.Add(2*time.Minute))
		finish(9000*time.Millisecond, t0.Add(time.Minute))

		ranker := leaderboard.NewRanker(sessions)
		top, err := ranker.TopN(ctx, p.ID, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(4))
		Expect(top[0].PlayerID).To(Equal(early))
		Expect(top[1].PlayerID).To(Equal(late))
		Expect(top[2].Score).To(Equal(4200 * time.Millisecond))
		Expect(top[3].Score).To(Equal(9000 * time.Millisecond))

		e, ok, err := ranker.RankOf(ctx, play.Key{PlayerID: early, PuzzleID: p.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(e.Rank).To(Equal(1))

		stats, err := ranker.Stats(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Count).To(Equal(4))
		Expect(*stats.Best).To(Equal(1800 * time.Millisecond))
	})
})

var _ = Describe("Manager on PostgreSQL", func() {
	var (
		manager *play.Manager
		clock   *clockwork.FakeClock
		p       *puzzle.Puzzle
	)
	ctx := context.Background()

	BeforeEach(func() {
		truncate()
		puzzles := puzzlepg.NewPuzzleRepository(pool)
		p = mustPuzzle(day, "Hades")
		Expect(puzzles.Create(ctx, p)).To(Succeed())

		clock = clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
		var err error
		manager, err = play.NewManager(playpg.NewSessionRepository(pool), puzzles,
			play.WithClock(clock), play.WithConflictRetries(50))
		Expect(err).NotTo(HaveOccurred())
	})

	It("keeps exactly one session under concurrent starts", func() {
		key := play.Key{PlayerID: uuid.New(), PuzzleID: p.ID}
		var wg sync.WaitGroup
		results := make(chan play.StartResult, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				res, err := manager.Start(ctx, key)
				Expect(err).NotTo(HaveOccurred())
				results <- res
			}()
		}
		wg.Wait()
		close(results)

		created := 0
		var id string
		for res := range results {
			if !res.Resumed {
				created++
			}
			if id == "" {
				id = res.Session.ID.String()
			}
			Expect(res.Session.ID.String()).To(Equal(id))
		}
		Expect(created).To(Equal(1))
	})

	It("charges each hint once under concurrent reveals", func() {
		key := play.Key{PlayerID: uuid.New(), PuzzleID: p.ID}
		_, err := manager.Start(ctx, key)
		Expect(err).NotTo(HaveOccurred())

		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := manager.RevealHint(ctx, key); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(ok).To(Equal(3))

		clock.Advance(15 * time.Second)
		res, err := manager.Submit(ctx, key, "hades", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Correct).To(BeTrue())
		Expect(res.Session.Score).To(Equal(32 * time.Second))
	})

	It("finalizes once under concurrent correct submits", func() {
		key := play.Key{PlayerID: uuid.New(), PuzzleID: p.ID}
		_, err := manager.Start(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		clock.Advance(time.Minute)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			correct int
			already int
		)
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := manager.Submit(ctx, key, "Hades", nil)
				mu.Lock()
				defer mu.Unlock()
				if err == nil && res.Correct {
					correct++
				} else if play.KindOf(err) == play.KindAlreadySolved {
					already++
				}
			}()
		}
		wg.Wait()
		Expect(correct).To(Equal(1))
		Expect(already).To(Equal(5))
	})
})
