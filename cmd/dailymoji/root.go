// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dailymoji/dailymoji/internal/config"
	"github.com/dailymoji/dailymoji/internal/logging"
	"github.com/dailymoji/dailymoji/internal/xdg"
)

// app carries state shared by every subcommand once the config is loaded.
type app struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
	deps       *Deps
}

// NewRootCmd creates the root command for the dailymoji CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	a := &app{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "dailymoji",
		Short: "Dailymoji - the daily emoji game puzzle",
		Long: `Dailymoji serves one emoji puzzle per day. The server owns the clock,
the hint penalties and the final score, and ranks solved sessions on a leaderboard.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/dailymoji/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newSeedCmd(a))
	cmd.AddCommand(newLeaderboardCmd(a))

	return cmd
}

// load reads and validates the config and installs the default logger.
func (a *app) load(cmd *cobra.Command) error {
	path := a.configFile
	if path == "" {
		found, err := xdg.FindConfigFile()
		if err != nil {
			return err
		}
		path = found
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.Setup(logging.Options{
		Service: "dailymoji",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	if path != "" {
		logger.Debug("loaded config file", "path", path)
	}
	return nil
}
