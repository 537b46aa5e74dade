// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMarket/cmd/marketstats/config"
	"github.com/AleutianAI/AleutianMarket/pkg/logging"
	"github.com/AleutianAI/AleutianMarket/pkg/ux"
)

// app carries the state shared by every subcommand once the root
// PersistentPreRunE has run.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	outputMode string

	cfg     config.MarketConfig
	logger  *logging.Logger
	printer func(cmd *cobra.Command) *ux.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "marketstats",
		Short: "Statistics over a marketplace app catalog",
		Long: `marketstats loads a catalog of marketplace app records, keeps an
in-memory snapshot with precomputed statistics, and answers listing,
distribution and frequency queries over HTTP or as CLI reports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to marketstats.yaml (default $MARKETSTATS_CONFIG)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before MARKETSTATS_* overrides")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.StringVarP(&a.outputMode, "output", "o", "auto", "report style: auto, rich or plain")

	root.AddCommand(
		newServeCmd(a),
		newReportCmd(a),
		newGraphsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	logCfg := cfg.Logging
	logCfg.Output = cmd.ErrOrStderr()
	a.logger = logging.New(logCfg)
	slog.SetDefault(a.logger.Slog())

	mode, err := ux.ParseMode(a.outputMode)
	if err != nil {
		return err
	}
	a.printer = func(c *cobra.Command) *ux.Printer {
		return ux.NewPrinter(c.OutOrStdout(), mode)
	}
	return nil
}
