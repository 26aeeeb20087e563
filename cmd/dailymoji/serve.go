// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dailymoji/dailymoji/internal/events"
	"github.com/dailymoji/dailymoji/internal/leaderboard"
	"github.com/dailymoji/dailymoji/internal/observability"
	"github.com/dailymoji/dailymoji/internal/play"
	"github.com/dailymoji/dailymoji/internal/web"
	"github.com/dailymoji/dailymoji/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

type serveConfig struct {
	seedFile string
}

func newServeCmd(a *app) *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the puzzle API",
		Long: `Serve the JSON API for puzzle play and the leaderboard, plus metrics and
health checks on the metrics address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.seedFile, "seed", "", "load puzzles from a seed file before serving")

	return cmd
}

func (a *app) runServe(ctx context.Context, cmd *cobra.Command, cfg *serveConfig) error {
	backend, err := a.deps.OpenBackend(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	a.logger.Info("store opened", "driver", a.cfg.Store.Driver)

	if cfg.seedFile != "" {
		data, err := os.ReadFile(cfg.seedFile)
		if err != nil {
			return oops.Code("SEED_READ_FAILED").With("path", cfg.seedFile).Wrap(err)
		}
		puzzles, _, err := loadSeed(data, "")
		if err != nil {
			return oops.With("path", cfg.seedFile).Wrap(err)
		}
		report, err := createPuzzles(ctx, backend.Puzzles, puzzles, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.logger.Info("seeded puzzles", "created", report.Created, "existing", report.Existing)
	}

	managerOpts := []play.ManagerOption{play.WithLogger(a.logger)}
	if a.cfg.NATS.URL != "" {
		publisher, err := a.deps.EventsConnector(events.Config{
			URL:           a.cfg.NATS.URL,
			SubjectPrefix: a.cfg.NATS.SubjectPrefix,
		}, a.logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				errutil.LogError(a.logger, "failed to drain event publisher", closeErr)
			}
		}()
		managerOpts = append(managerOpts, play.WithPublisher(publisher))
		a.logger.Info("publishing solved events", "nats_url", a.cfg.NATS.URL)
	}

	manager, err := play.NewManager(backend.Sessions, backend.Puzzles, managerOpts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obs     *observability.Server
		metrics *observability.Metrics
	)
	if a.cfg.Metrics.Addr != "" {
		obs = observability.NewServer(a.cfg.Metrics.Addr, backend.Ready, play.RegisterMetrics)
		obsErrs, err := obs.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", a.logger)
		metrics = obs.Metrics()
	}

	handler := web.NewHandler(backend.Puzzles, manager, leaderboard.NewRanker(backend.Sessions), web.Options{
		PlayerHeader:   a.cfg.HTTP.PlayerHeader,
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
		OpTimeout:      a.cfg.Database.OpTimeout,
		Logger:         a.logger,
		Metrics:        metrics,
	})
	api := web.NewServer(a.cfg.HTTP.Addr, handler)
	apiErrs, err := api.Start()
	if err != nil {
		stopServer(obs, a.logger)
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrs, "http", a.logger)

	cmd.Printf("Dailymoji listening on %s\n", api.Addr())
	a.logger.Info("dailymoji ready", "http_addr", api.Addr(), "store", a.cfg.Store.Driver)

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := api.Stop(shutdownCtx); err != nil {
		errutil.LogError(a.logger, "error stopping http server", err)
	}
	stopServer(obs, a.logger)

	a.logger.Info("shutdown complete")
	return nil
}

func stopServer(s *observability.Server, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		errutil.LogError(logger, "error stopping observability server", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errs <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			logger.Error("server failed, shutting down", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
