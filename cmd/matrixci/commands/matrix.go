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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/matrixci/cmd/matrixci/internal/clierr"
	"github.com/bartekus/matrixci/internal/orchestrator"
	"github.com/bartekus/matrixci/internal/report"
)

type planOptions struct {
	json           bool
	minVersion     string
	currentVersion string
}

// NewMatrixCommand returns the `matrixci matrix` command.
func NewMatrixCommand() *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the job matrix without running it",
		Long:  "Resolves the toolchain versions and prints the jobs a run would execute, in execution order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := planFor(cmd, opts)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), plan)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), report.NewPrinter(cmd.OutOrStdout(), true).Matrix(plan.Jobs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the matrix as JSON")
	addVersionFlags(cmd, &opts.minVersion, &opts.currentVersion)
	return cmd
}

// NewVersionsCommand returns the `matrixci versions` command.
func NewVersionsCommand() *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Print the resolved toolchain versions",
		Long:  "Prints the minimum-supported version followed by the pinned current version, one per line.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject(cmd)
			if err != nil {
				return err
			}
			o := orchestrator.New(cfg, orchestrator.Options{
				MinVersion:     opts.minVersion,
				CurrentVersion: opts.currentVersion,
			})
			vs, err := o.Resolver().Resolve(withLogger(cmd, cfg))
			if err != nil {
				return clierr.Classify(err)
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), map[string]any{"versions": vs})
			}
			for _, v := range vs {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the versions as JSON")
	addVersionFlags(cmd, &opts.minVersion, &opts.currentVersion)
	return cmd
}

func planFor(cmd *cobra.Command, opts *planOptions) (*orchestrator.Plan, error) {
	cfg, err := loadProject(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, clierr.Classify(err)
	}
	o := orchestrator.New(cfg, orchestrator.Options{
		MinVersion:     opts.minVersion,
		CurrentVersion: opts.currentVersion,
	})
	plan, err := o.Plan(withLogger(cmd, cfg))
	if err != nil {
		return nil, clierr.Classify(err)
	}
	return plan, nil
}
