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

	"github.com/bartekus/matrixci/internal/report"
)

// NewReportCommand returns the `matrixci report` command.
func NewReportCommand() *cobra.Command {
	var (
		asJSON  bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the outcome of the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject(cmd)
			if err != nil {
				return err
			}
			last, err := report.NewStore(cfg.Path(cfg.ReportDir)).ReadRun()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if last == nil {
				_, _ = fmt.Fprintln(out, "No run report found.")
				return nil
			}
			if asJSON {
				return printJSON(out, last)
			}
			_, _ = fmt.Fprint(out, report.NewPrinter(out, noColor).Summary(last))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}
