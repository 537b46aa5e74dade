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
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMarket/pkg/ux"
	"github.com/AleutianAI/AleutianMarket/pkg/validation"
	"github.com/AleutianAI/AleutianMarket/services/catalog"
	"github.com/AleutianAI/AleutianMarket/services/catalog/filter"
	"github.com/AleutianAI/AleutianMarket/services/catalog/observability"
	"github.com/AleutianAI/AleutianMarket/services/catalog/rebuild"
	"github.com/AleutianAI/AleutianMarket/services/catalog/snapshot"
	"github.com/AleutianAI/AleutianMarket/services/catalog/stats"
)

type reportOptions struct {
	source  string
	graphs  []string
	filters []string
	n       int
	bins    int
	width   int
}

func newReportCmd(a *app) *cobra.Command {
	opts := reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild the catalog once and print statistics",
		Long: `report loads the catalog from one source, then prints the global summary
and one table per requested graph. Filters use the same keys as the HTTP
query string, for example --filter author=Mozilla --filter min_ratings=10.`,
		Example: `  marketstats report --graph category --graph rating -n 5
  marketstats report --source file --filter library=jquery -o plain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, a, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.source, "source", "", "rebuild source (default rebuild.default_source)")
	f.StringArrayVarP(&opts.graphs, "graph", "g", []string{"author", "category", "rating"}, "graph id to print; repeatable")
	f.StringArrayVarP(&opts.filters, "filter", "f", nil, "criterion key=value applied before aggregation; repeatable")
	f.IntVarP(&opts.n, "top", "n", 0, "frequency buckets (default query.default_buckets)")
	f.IntVar(&opts.bins, "bins", 8, "histogram bins for distribution graphs")
	f.IntVar(&opts.width, "width", 30, "bar width in cells")
	return cmd
}

func runReport(cmd *cobra.Command, a *app, opts reportOptions) error {
	p := a.printer(cmd)

	crit, err := parseFilters(opts.filters)
	if err != nil {
		return err
	}
	n := opts.n
	if n <= 0 {
		n = a.cfg.Query.DefaultBuckets
	}
	n = min(n, validation.MaxBuckets)

	registry := stats.DefaultRegistry(time.Now)
	graphs := make([]stats.GraphDescriptor, 0, len(opts.graphs))
	for _, id := range opts.graphs {
		g, err := registry.Lookup(id)
		if err != nil {
			return err
		}
		graphs = append(graphs, g)
	}

	snap, err := loadSnapshot(cmd.Context(), a, opts.source, func(s rebuild.JobState) {
		if !p.Plain() && s.Total > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%s", p.ProgressBar(s.Processed, s.Total, 30))
		}
	})
	if !p.Plain() {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	records := filter.Filter(snap.Catalog.Records(), crit, time.Now())

	p.Title(fmt.Sprintf("Catalog from %s (snapshot %d)", snap.Source, snap.Version))
	printSummary(p, snap, len(records), crit)

	for _, g := range graphs {
		fmt.Fprintln(cmd.OutOrStdout())
		p.Title(g.Title)
		if g.Kind == stats.KindDistribution {
			printDistribution(p, stats.Distribution(records, g.Getter), opts.bins, opts.width)
			continue
		}
		res := stats.Frequency(records, g.Getter, n)
		rows := make([]ux.BarRow, len(res.Buckets))
		for i, b := range res.Buckets {
			rows[i] = ux.BarRow{Label: b.Label, Count: b.Count}
		}
		p.BarChart(rows, res.Total, opts.width)
		p.Info(fmt.Sprintf("%d distinct values over %d apps", res.Distinct, res.Total))
	}
	return nil
}

// loadSnapshot runs one rebuild in-process and returns the published
// snapshot.
func loadSnapshot(ctx context.Context, a *app, sourceName string, progress func(rebuild.JobState)) (*snapshot.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	svcCfg := a.cfg.Service()
	svcCfg.RebuildOnStart = false
	svcCfg.RebuildInterval = 0
	svcCfg.File.Watch = false

	svc, err := catalog.New(svcCfg, slog.Default(), observability.NewQueryMetrics(prometheus.NewRegistry()))
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	if sourceName == "" {
		sourceName = svc.DefaultSource()
	}
	ctrl := svc.Controller()
	if _, _, err := ctrl.Start(sourceName); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for ctrl.IsRunning() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			progress(ctrl.Progress())
		}
	}

	state, err := ctrl.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if state.Phase == rebuild.PhaseFailed {
		return nil, fmt.Errorf("rebuild from %s failed: %s", state.Source, state.Error)
	}
	progress(state)
	return svc.Store().Current(), nil
}

func parseFilters(raw []string) (filter.Criteria, error) {
	q := url.Values{}
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return filter.Criteria{}, fmt.Errorf("invalid filter %q: want key=value", kv)
		}
		q.Add(strings.TrimSpace(key), value)
	}
	return filter.FromQuery(q), nil
}

func printSummary(p *ux.Printer, snap *snapshot.Snapshot, matched int, crit filter.Criteria) {
	s := snap.Summary
	pairs := [][2]string{
		{"apps", strconv.Itoa(s.TotalApps)},
		{"authors", strconv.Itoa(s.DistinctAuthors)},
		{"with manifest", strconv.Itoa(s.WithManifest)},
		{"manifest errors", strconv.Itoa(s.ManifestErrors)},
		{"with appcache", strconv.Itoa(s.AppcacheApps)},
		{"rated", strconv.Itoa(s.RatedApps)},
		{"reviewed", strconv.Itoa(s.ReviewedApps)},
		{"ratings", strconv.FormatInt(s.TotalRatings, 10)},
		{"package bytes", strconv.FormatInt(s.TotalPackageBytes, 10)},
	}
	if s.OldestCreated != nil && s.NewestCreated != nil {
		pairs = append(pairs, [2]string{"created", s.OldestCreated.Format("2006-01-02") + " .. " + s.NewestCreated.Format("2006-01-02")})
	}
	if !crit.IsEmpty() {
		pairs = append(pairs, [2]string{"matching filter", strconv.Itoa(matched)})
	}
	p.KeyValues("Summary", pairs)
}

func printDistribution(p *ux.Printer, res stats.DistributionResult, bins, width int) {
	sum := res.Summary()
	p.KeyValues("Values", [][2]string{
		{"count", fmt.Sprintf("%d of %d", sum.Count, res.Total)},
		{"min", formatNumber(sum.Min)},
		{"median", formatNumber(sum.Median)},
		{"mean", formatNumber(sum.Mean)},
		{"max", formatNumber(sum.Max)},
	})
	if sum.Count == 0 || bins <= 0 {
		return
	}
	hist := res.Histogram(bins)
	rows := make([]ux.BarRow, len(hist))
	for i, b := range hist {
		rows[i] = ux.BarRow{
			Label: formatNumber(b.Lower) + " .. " + formatNumber(b.Upper),
			Count: b.Count,
		}
	}
	p.BarChart(rows, sum.Count, width)
}

// formatNumber rounds to two decimals and drops trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
