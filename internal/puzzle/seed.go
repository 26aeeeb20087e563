// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package puzzle

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// SupportedSeedFormat is the range of seed file format versions this build reads.
const SupportedSeedFormat = ">= 1.0.0, < 2.0.0"

// SeedFile is a YAML document listing puzzles to load with `dailymoji seed`.
type SeedFile struct {
	FormatVersion string       `yaml:"format_version" json:"format_version" jsonschema:"required,minLength=1,description=Seed file format version (semver)"`
	Puzzles       []SeedPuzzle `yaml:"puzzles" json:"puzzles" jsonschema:"required,minItems=1"`
}

// SeedPuzzle is one puzzle entry of a SeedFile.
type SeedPuzzle struct {
	Date           string   `yaml:"date" json:"date" jsonschema:"required,pattern=^[0-9]{4}-[0-9]{2}-[0-9]{2}$"`
	Solution       string   `yaml:"solution" json:"solution" jsonschema:"required,minLength=1"`
	Clues          []string `yaml:"clues" json:"clues" jsonschema:"required,minItems=1"`
	Hints          []string `yaml:"hints,omitempty" json:"hints,omitempty" jsonschema:"maxItems=3"`
	ExternalGameID *int64   `yaml:"external_game_id,omitempty" json:"external_game_id,omitempty"`
}

// ParseSeedFile validates data against the seed schema and decodes it.
func ParseSeedFile(data []byte) (*SeedFile, error) {
	if len(data) == 0 {
		return nil, oops.Code("SEED_EMPTY").Errorf("seed data is empty")
	}
	if err := ValidateSeedSchema(data); err != nil {
		return nil, oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
	}

	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("SEED_YAML_INVALID").Wrap(err)
	}
	if err := f.checkFormat(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *SeedFile) checkFormat() error {
	v, err := semver.NewVersion(f.FormatVersion)
	if err != nil {
		return oops.Code("SEED_FORMAT_INVALID").
			With("format_version", f.FormatVersion).
			Wrap(err)
	}
	c, err := semver.NewConstraint(SupportedSeedFormat)
	if err != nil {
		return oops.Code("SEED_FORMAT_INVALID").Wrap(err)
	}
	if !c.Check(v) {
		return oops.Code("SEED_FORMAT_UNSUPPORTED").
			With("format_version", f.FormatVersion).
			With("supported", SupportedSeedFormat).
			Errorf("seed format %s is not supported", f.FormatVersion)
	}
	return nil
}

// Build creates validated puzzles from the seed entries.
// Two entries for the same date are rejected.
func (f *SeedFile) Build() ([]*Puzzle, error) {
	out := make([]*Puzzle, 0, len(f.Puzzles))
	seen := make(map[string]int, len(f.Puzzles))
	for i, sp := range f.Puzzles {
		date, err := ParseDate(sp.Date)
		if err != nil {
			return nil, oops.With("entry", i).Wrap(err)
		}
		key := date.Format(DateLayout)
		if prev, dup := seen[key]; dup {
			return nil, oops.Code("SEED_DUPLICATE_DATE").
				With("date", key).
				With("entry", i).
				With("previous_entry", prev).
				Errorf("date %s appears more than once", key)
		}
		seen[key] = i

		p, err := NewPuzzle(date, sp.Solution, sp.Clues, sp.Hints, sp.ExternalGameID)
		if err != nil {
			return nil, oops.With("entry", i).With("date", key).Wrap(err)
		}
		out = append(out, p)
	}
	return out, nil
}
