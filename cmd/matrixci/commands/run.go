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
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bartekus/matrixci/cmd/matrixci/internal/clierr"
	"github.com/bartekus/matrixci/internal/config"
	"github.com/bartekus/matrixci/internal/orchestrator"
	"github.com/bartekus/matrixci/internal/report"
)

type runOptions struct {
	json           bool
	noColor        bool
	concurrency    int
	stageTimeout   time.Duration
	keepWorkDirs   bool
	minVersion     string
	currentVersion string
}

// NewRunCommand returns the `matrixci run` command.
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve the job matrix and run every job",
		Long: `Resolves the minimum and pinned toolchain versions, expands them against the
configured platforms and runs setup, build, test, style and doc for every job.
A failing job never stops the others. Exits non-zero unless every job passed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}

	addVersionFlags(cmd, &opts.minVersion, &opts.currentVersion)
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the run outcome as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "maximum jobs running at once (0 = number of CPUs)")
	cmd.Flags().DurationVar(&opts.stageTimeout, "stage-timeout", 0, "fail a stage that runs longer than this (0 = no limit)")
	cmd.Flags().BoolVar(&opts.keepWorkDirs, "keep-work-dirs", false, "keep job working directories after the run")

	return cmd
}

func addVersionFlags(cmd *cobra.Command, minVersion, currentVersion *string) {
	cmd.Flags().StringVar(minVersion, "min-version", "", "use this minimum version instead of reading the manifest")
	cmd.Flags().StringVar(currentVersion, "current-version", "", "use this current version instead of reading the pinned descriptor")
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadProject(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if cmd.Flags().Changed("stage-timeout") {
		cfg.StageTimeout = config.Duration(opts.stageTimeout)
	}
	if cmd.Flags().Changed("keep-work-dirs") {
		cfg.KeepWorkDirs = opts.keepWorkDirs
	}
	if err := cfg.Validate(); err != nil {
		return clierr.Classify(err)
	}

	ctx := withLogger(cmd, cfg)
	stdout := cmd.OutOrStdout()

	progress := stdout
	if opts.json {
		progress = cmd.ErrOrStderr()
	}
	o := orchestrator.New(cfg, orchestrator.Options{
		MinVersion:     opts.minVersion,
		CurrentVersion: opts.currentVersion,
		Progress:       progress,
	})

	plan, err := o.Plan(ctx)
	if err != nil {
		return clierr.Classify(err)
	}

	out, err := o.Execute(ctx, plan)
	if out == nil {
		return clierr.Classify(err)
	}

	if opts.json {
		if perr := printJSON(stdout, out); perr != nil {
			return perr
		}
	} else {
		_, _ = io.WriteString(stdout, "\n"+report.NewPrinter(stdout, opts.noColor).Summary(out))
	}
	if err != nil {
		return err
	}

	switch {
	case out.Cancelled:
		return clierr.New(clierr.ExitCancelled, "run cancelled")
	case !out.Succeeded():
		return clierr.Newf(clierr.ExitRunFailed, "run failed: %d of %d job(s) failed", len(out.Failures), len(out.Jobs))
	}
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
