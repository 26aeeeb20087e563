// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dailymoji/dailymoji/internal/leaderboard"
	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/internal/scoring"
)

type leaderboardConfig struct {
	date    string
	limit   int
	json    bool
	timeout time.Duration
}

// leaderboardReport is the --json output.
type leaderboardReport struct {
	PuzzleID  string             `json:"puzzle_id"`
	Date      string             `json:"date"`
	Solved    int                `json:"solved"`
	AverageMs *int64             `json:"average_ms"`
	BestMs    *int64             `json:"best_ms"`
	Entries   []leaderboardEntry `json:"entries"`
}

type leaderboardEntry struct {
	Rank       int       `json:"rank"`
	PlayerID   string    `json:"player_id"`
	ScoreMs    int64     `json:"score_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

func newLeaderboardCmd(a *app) *cobra.Command {
	cfg := &leaderboardConfig{}

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard of a puzzle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLeaderboard(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.date, "date", "", "puzzle date YYYY-MM-DD (default today, UTC)")
	cmd.Flags().IntVar(&cfg.limit, "limit", 10, "number of entries (0 for all)")
	cmd.Flags().BoolVar(&cfg.json, "json", false, "print JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 10*time.Second, "timeout for database operations")

	return cmd
}

func (a *app) runLeaderboard(cmd *cobra.Command, cfg *leaderboardConfig) error {
	day := puzzle.DateOf(time.Now())
	if cfg.date != "" {
		d, err := puzzle.ParseDate(cfg.date)
		if err != nil {
			return err
		}
		day = d
	}
	if cfg.limit < 0 {
		return oops.Code("INVALID_LIMIT").Errorf("limit must not be negative, got %d", cfg.limit)
	}
	if err := a.requirePostgres("leaderboard"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	backend, err := a.deps.OpenBackend(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	report, err := buildLeaderboard(ctx, backend.Puzzles, leaderboard.NewRanker(backend.Sessions), day, cfg.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return nil
	}

	fmt.Fprintf(out, "Puzzle %s (%s): %d solved", report.Date, report.PuzzleID, report.Solved)
	if report.AverageMs != nil {
		fmt.Fprintf(out, ", average %s, best %s", formatMs(*report.AverageMs), formatMs(*report.BestMs))
	}
	fmt.Fprintln(out)
	if len(report.Entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tPLAYER\tFINISHED")
	for _, e := range report.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Rank, formatMs(e.ScoreMs), e.PlayerID, e.FinishedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func buildLeaderboard(ctx context.Context, puzzles puzzle.Reader, ranker *leaderboard.Ranker, day time.Time, limit int) (*leaderboardReport, error) {
	p, err := puzzles.GetByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	entries, err := ranker.TopN(ctx, p.ID, limit)
	if err != nil {
		return nil, err
	}
	stats, err := ranker.Stats(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	report := &leaderboardReport{
		PuzzleID: p.ID.String(),
		Date:     p.DateString(),
		Solved:   stats.Count,
		Entries:  make([]leaderboardEntry, 0, len(entries)),
	}
	if stats.Average != nil {
		avg, best := scoring.Milliseconds(*stats.Average), scoring.Milliseconds(*stats.Best)
		report.AverageMs, report.BestMs = &avg, &best
	}
	for _, e := range entries {
		report.Entries = append(report.Entries, leaderboardEntry{
			Rank:       e.Rank,
			PlayerID:   e.PlayerID.String(),
			ScoreMs:    scoring.Milliseconds(e.Score),
			FinishedAt: e.FinishedAt,
		})
	}
	return report, nil
}

// formatMs renders a millisecond score as seconds, e.g. 32.5s.
func formatMs(ms int64) string {
	return scoring.FromMilliseconds(ms).String()
}
