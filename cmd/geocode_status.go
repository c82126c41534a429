package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ryan-williams/nj-crashes/internal/geocode"
	"github.com/ryan-williams/nj-crashes/internal/load"
)

var geocodeStatusCmd = &cobra.Command{
	Use:   "geocode-status",
	Short: "Show SRI/milepost geocode coverage for the configured crash file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		records, err := load.Crashes(cfg.Data.CrashesCSV)
		if err != nil {
			return err
		}
		table, err := load.MilePosts(cfg.Data.MilePostsCSV)
		if err != nil {
			return err
		}

		results, err := geocode.All(ctx, records, table)
		if err != nil {
			return err
		}

		counts := geocode.Outcomes(results)
		total := len(results)

		type line struct {
			label string
			count int
		}
		lines := []line{{label: "geocoded", count: counts[""]}}
		for _, reason := range []geocode.Reason{
			geocode.NoSRI, geocode.NoMP, geocode.SRINotFound, geocode.MPNotFound,
		} {
			lines = append(lines, line{label: string(reason), count: counts[reason]})
		}
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].count > lines[j].count })

		fmt.Printf("geocode outcomes over %d records:\n", total)
		for _, l := range lines {
			pct := 0.0
			if total > 0 {
				pct = float64(l.count) / float64(total) * 100
			}
			fmt.Printf("  %-18s %8d  %5.1f%%\n", l.label, l.count, pct)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeStatusCmd)
}
