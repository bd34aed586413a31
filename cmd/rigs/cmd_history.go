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

	"github.com/M4n5ter/rigs/services/workflow/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded runs",
	}
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON")

	withStore := func(cmd *cobra.Command, fn func(history.Store) error) error {
		store, err := a.openHistory(cmd.Context())
		if err != nil {
			return err
		}
		if store == nil {
			return errHistoryDisabled
		}
		defer store.Close()
		return fn(store)
	}

	var (
		workflow string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store history.Store) error {
				recs, err := store.List(cmd.Context(), workflow, limit)
				if err != nil {
					return err
				}
				return newPrinter(cmd.OutOrStdout(), jsonOut).Records(recs)
			})
		},
	}
	list.Flags().StringVarP(&workflow, "workflow", "w", "", "only runs of this workflow")
	list.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "maximum runs to show")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store history.Store) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return newPrinter(cmd.OutOrStdout(), jsonOut).Record(rec)
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
