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
	"github.com/spf13/cobra"
)

func newUnitCmd(a *app) *cobra.Command {
	var (
		file      string
		input     string
		inputFile string
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "unit NAME -f workflow.yaml",
		Short: "Execute a single unit of a workflow, ignoring its edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest(file)
			if err != nil {
				return err
			}
			in, err := resolveInput(cmd.InOrStdin(), inputFile, input, cmd.Flags().Changed("input"), m)
			if err != nil {
				return err
			}
			wf, err := a.buildWorkflow(m, nil)
			if err != nil {
				return err
			}

			out, err := wf.ExecuteUnit(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), jsonOut)
			if jsonOut {
				return p.JSON(map[string]string{"unit": args[0], "output": out})
			}
			p.Line("%s", out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "workflow manifest")
	f.StringVarP(&input, "input", "i", "", "unit input")
	f.StringVar(&inputFile, "input-file", "", "read the input from a file, or - for stdin")
	f.BoolVar(&jsonOut, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file")

	return cmd
}
