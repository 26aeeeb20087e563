// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dailymoji/dailymoji/internal/puzzle"
)

// Default timeout for the seed command.
const defaultSeedTimeout = 30 * time.Second

type seedConfig struct {
	only    string
	dryRun  bool
	timeout time.Duration
}

// seedReport counts what a seed run did.
type seedReport struct {
	Created  int
	Existing int
	Filtered int
}

func newSeedCmd(a *app) *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Load puzzles from a seed file",
		Long: `Validates a YAML seed file against the puzzle seed schema and creates one
puzzle per entry. Dates that already have a puzzle are left untouched, so the
command can be re-run safely.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSeed(cmd, args[0], cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.only, "only", "", "only seed dates matching this glob (e.g. 2026-10-*)")
	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "validate the file without writing")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations")

	return cmd
}

func (a *app) runSeed(cmd *cobra.Command, path string, cfg *seedConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	puzzles, filtered, err := loadSeed(data, cfg.only)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if cfg.dryRun {
		cmd.Printf("%s is valid: %d puzzles (%d filtered out)\n", path, len(puzzles), filtered)
		return nil
	}
	if err := a.requirePostgres("seed"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	backend, err := a.deps.OpenBackend(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	report, err := createPuzzles(ctx, backend.Puzzles, puzzles, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	report.Filtered = filtered
	cmd.Printf("Seed complete: %d created, %d already present, %d filtered out\n",
		report.Created, report.Existing, report.Filtered)
	a.logger.Info("seed complete",
		"path", path,
		"created", report.Created,
		"existing", report.Existing,
		"filtered", report.Filtered)
	return nil
}

// loadSeed parses a seed file and keeps the puzzles whose date matches only.
// An empty pattern keeps everything.
func loadSeed(data []byte, only string) (puzzles []*puzzle.Puzzle, filtered int, err error) {
	file, err := puzzle.ParseSeedFile(data)
	if err != nil {
		return nil, 0, err
	}
	all, err := file.Build()
	if err != nil {
		return nil, 0, err
	}
	if only == "" {
		return all, 0, nil
	}

	g, err := glob.Compile(only)
	if err != nil {
		return nil, 0, oops.Code("SEED_INVALID_GLOB").With("pattern", only).Wrap(err)
	}
	for _, p := range all {
		if g.Match(p.DateString()) {
			puzzles = append(puzzles, p)
		} else {
			filtered++
		}
	}
	return puzzles, filtered, nil
}

// createPuzzles inserts puzzles, skipping dates that already have one.
func createPuzzles(ctx context.Context, repo puzzle.Repository, puzzles []*puzzle.Puzzle, out io.Writer) (seedReport, error) {
	var report seedReport
	for _, p := range puzzles {
		err := repo.Create(ctx, p)
		switch {
		case err == nil:
			report.Created++
			fmt.Fprintf(out, "  + %s %s\n", p.DateString(), p.ID)
		case errors.Is(err, puzzle.ErrDuplicateDate):
			report.Existing++
			fmt.Fprintf(out, "  = %s already has a puzzle, skipped\n", p.DateString())
		default:
			return report, oops.Code("SEED_FAILED").With("date", p.DateString()).Wrap(err)
		}
	}
	return report, nil
}
