// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/config"
	"github.com/dailymoji/dailymoji/internal/events"
	"github.com/dailymoji/dailymoji/internal/memstore"
	"github.com/dailymoji/dailymoji/internal/observability"
	"github.com/dailymoji/dailymoji/internal/play"
	playpg "github.com/dailymoji/dailymoji/internal/play/postgres"
	"github.com/dailymoji/dailymoji/internal/puzzle"
	puzzlepg "github.com/dailymoji/dailymoji/internal/puzzle/postgres"
	"github.com/dailymoji/dailymoji/internal/store"
)

// Deps contains injectable dependencies for the subcommands.
// Nil fields use their default implementations.
type Deps struct {
	// OpenBackend opens the puzzle and session stores selected by cfg.
	// Default: openBackend
	OpenBackend func(ctx context.Context, cfg *config.Config) (*Backend, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// EventsConnector connects the solved-event publisher.
	// Default: events.Connect
	EventsConnector func(cfg events.Config, logger *slog.Logger) (EventPublisher, error)
}

// Backend is an opened set of stores.
type Backend struct {
	Puzzles  puzzle.Repository
	Sessions play.SessionRepository
	// Ready reports whether the backend can serve traffic.
	Ready observability.ReadinessChecker
	// Close releases the backend. It is never nil.
	Close func()
}

// Migrator wraps the methods used by migrate from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// EventPublisher is a play.Publisher that must be closed on shutdown.
type EventPublisher interface {
	play.Publisher
	Close() error
}

var _ Migrator = (*store.Migrator)(nil)

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenBackend == nil {
		out.OpenBackend = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.EventsConnector == nil {
		out.EventsConnector = func(cfg events.Config, logger *slog.Logger) (EventPublisher, error) {
			return events.Connect(cfg, logger)
		}
	}
	return &out
}

func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return &Backend{
			Puzzles:  memstore.NewPuzzleStore(),
			Sessions: memstore.NewSessionStore(),
			Close:    func() {},
		}, nil
	case config.DriverPostgres:
		pool, err := store.OpenPool(ctx, store.PoolConfig{
			URL:         cfg.Database.URL,
			MaxConns:    cfg.Database.MaxConns,
			PingTimeout: cfg.Database.OpTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &Backend{
			Puzzles:  puzzlepg.NewPuzzleRepository(pool),
			Sessions: playpg.NewSessionRepository(pool),
			Ready:    pool.Ping,
			Close:    pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_STORE_DRIVER_INVALID").With("driver", cfg.Store.Driver).Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// requirePostgres fails commands that only make sense against a durable store.
func (a *app) requirePostgres(command string) error {
	if a.cfg.Store.Driver != config.DriverPostgres {
		return oops.Code("COMMAND_NEEDS_POSTGRES").
			With("command", command).
			With("driver", a.cfg.Store.Driver).
			Errorf("%s requires the postgres store", command)
	}
	return nil
}
