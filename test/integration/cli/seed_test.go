// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

//go:build integration

package cli_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const seedYAML = `format_version: "1.0.0"
puzzles:
  - date: "2026-10-16"
    solution: Portal
    clues: ["🍰", "🔵", "🟠"]
  - date: "2026-10-17"
    solution: Stardew Valley
    clues: ["🌾", "🐔", "⛏️"]
    hints: ["Farming sim", "Pelican Town", "2016"]
`

var _ = Describe("Admin commands", func() {
	var (
		ctx      context.Context
		seedFile string
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx)
		seedFile = filepath.Join(GinkgoT().TempDir(), "puzzles.yaml")
		Expect(os.WriteFile(seedFile, []byte(seedYAML), 0o600)).To(Succeed())

		out, err := dailymoji(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", out)
		Expect(out).To(ContainSubstring("Applied 2 migration(s)"))
	})

	It("reports the schema as current after migrating", func() {
		out, err := dailymoji(ctx, "migrate", "status")
		Expect(err).NotTo(HaveOccurred(), "status failed: %s", out)
		Expect(out).To(ContainSubstring("Current version: 2 (clean)"))
		Expect(out).To(ContainSubstring("Pending (0):"))
	})

	It("seeds puzzles idempotently", func() {
		out, err := dailymoji(ctx, "seed", seedFile)
		Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", out)
		Expect(out).To(ContainSubstring("Seed complete: 2 created, 0 already present"))

		out, err = dailymoji(ctx, "seed", seedFile)
		Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", out)
		Expect(out).To(ContainSubstring("Seed complete: 0 created, 2 already present"))

		var count int
		Expect(pool.QueryRow(ctx, `SELECT COUNT(*) FROM puzzles`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(2))
	})

	It("prints an empty leaderboard for a fresh puzzle", func() {
		out, err := dailymoji(ctx, "seed", seedFile)
		Expect(err).NotTo(HaveOccurred(), "seed failed: %s", out)

		out, err = dailymoji(ctx, "--log-level=error", "leaderboard", "--date", "2026-10-17", "--json")
		Expect(err).NotTo(HaveOccurred(), "leaderboard failed: %s", out)

		var report struct {
			Date    string `json:"date"`
			Solved  int    `json:"solved"`
			Entries []any  `json:"entries"`
		}
		Expect(json.Unmarshal([]byte(out), &report)).To(Succeed())
		Expect(report.Date).To(Equal("2026-10-17"))
		Expect(report.Solved).To(BeZero())
		Expect(report.Entries).To(BeEmpty())
	})

	It("rolls back every migration", func() {
		out, err := dailymoji(ctx, "migrate", "down", "--all")
		Expect(err).NotTo(HaveOccurred(), "down failed: %s", out)
		Expect(out).To(ContainSubstring("Rolled back all migrations"))
	})
})
