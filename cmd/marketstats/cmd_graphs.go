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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMarket/services/catalog/stats"
)

func newGraphsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "graphs",
		Short: "List the graph ids accepted by report and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer(cmd)
			rows := [][]string{}
			for _, g := range stats.DefaultRegistry(time.Now).Graphs() {
				clock := ""
				if g.TimeDependent {
					clock = "yes"
				}
				rows = append(rows, []string{g.ID, string(g.Kind), g.Title, clock})
			}
			p.Table([]string{"id", "kind", "title", "time-dependent"}, rows)
			return nil
		},
	}
}
