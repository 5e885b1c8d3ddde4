// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Matrixci - Matrixci validates a library against every supported toolchain version and target platform before a change is merged.
It resolves the version matrix from project metadata, runs the stage pipeline for every cell and reports every incompatibility in one run.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/matrixci/cmd/matrixci/internal/clierr"
	"github.com/bartekus/matrixci/internal/config"
	"github.com/bartekus/matrixci/internal/ctxlog"
	"github.com/bartekus/matrixci/internal/projectroot"
)

// loadProject finds the project root from --dir, loads its configuration,
// applies the global flag overrides and validates the result.
func loadProject(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("dir")
	root, err := projectroot.Find(dir)
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitConfig, "locating project", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitConfig, "loading configuration", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	return cfg, nil
}

// withLogger returns the command context carrying a logger built from cfg.
func withLogger(cmd *cobra.Command, cfg *config.Config) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.ErrOrStderr()
	if w == nil {
		w = os.Stderr
	}
	return ctxlog.WithLogger(ctx, ctxlog.New(cfg.Log.Level, cfg.Log.Format, w))
}
