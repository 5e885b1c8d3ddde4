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
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd constructs the matrixci root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("MATRIXCI_BUILD_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "matrixci",
		Short:         "Matrixci - toolchain x platform CI orchestrator",
		Long:          "Matrixci resolves the toolchain versions to test, expands them against the declared platforms and runs the stage pipeline for every job.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringP("dir", "C", ".", "directory inside the project to run from")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of matrixci",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "matrixci version %s\n", version)
		},
	})

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewMatrixCommand())
	cmd.AddCommand(NewVersionsCommand())
	cmd.AddCommand(NewReportCommand())

	return cmd
}
