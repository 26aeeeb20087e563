// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Command gen-schema writes the puzzle seed file JSON Schema.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dailymoji/dailymoji/internal/puzzle"
)

func main() {
	outPath := filepath.Join("schemas", "puzzles.schema.json")
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	schema, err := puzzle.GenerateSeedSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", outPath)
}
