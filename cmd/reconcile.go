package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryan-williams/nj-crashes/internal/county"
	"github.com/ryan-williams/nj-crashes/internal/density"
	"github.com/ryan-williams/nj-crashes/internal/load"
	"github.com/ryan-williams/nj-crashes/internal/pipeline"
	"github.com/ryan-williams/nj-crashes/internal/reconcile"
	"github.com/ryan-williams/nj-crashes/internal/store"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run the full crash location reconciliation pipeline",
	Long: `Loads crash records, the SRI/milepost table, and county polygons; geocodes
every record, assigns counties to reported and interpolated coordinates,
merges the two coordinate sources per the fallback policy, partitions the
result by the NJ boundary, and optionally persists the run to SQLite.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		policy, _ := cmd.Flags().GetString("policy")
		keep, _ := cmd.Flags().GetStringSlice("keep")
		noStore, _ := cmd.Flags().GetBool("no-store")

		if policy == "" {
			policy = cfg.Reconcile.Policy
		}
		if len(keep) == 0 {
			keep = cfg.Reconcile.KeepVariants
		}

		in, err := loadInputs()
		if err != nil {
			return err
		}

		opts := pipeline.Options{
			Reconcile: reconcile.Options{Policy: reconcile.Variant(policy)},
		}
		for _, v := range keep {
			opts.Reconcile.Keep = append(opts.Reconcile.Keep, reconcile.Variant(v))
		}

		out, err := pipeline.Run(ctx, in, opts)
		if err != nil {
			return err
		}

		inside := out.Partition.Inside()
		outside := out.Partition.Outside()
		stats := out.Result.Stats

		fmt.Printf("reconciled %d/%d records (%d dropped), %d in NJ, %d outside\n",
			stats.Retained, stats.Input, stats.Dropped, len(inside), len(outside))

		if noStore {
			return nil
		}
		return saveRun(ctx, policy, out)
	},
}

func init() {
	reconcileCmd.Flags().String("policy", "", "fallback policy: o, i, io, or oi (default from config)")
	reconcileCmd.Flags().StringSlice("keep", nil, "variant columns to retain (o,i,io,oi)")
	reconcileCmd.Flags().Bool("no-store", false, "skip persisting the run")
	rootCmd.AddCommand(reconcileCmd)
}

// loadInputs reads the three reference datasets named in config.
func loadInputs() (pipeline.Inputs, error) {
	var in pipeline.Inputs

	records, err := load.Crashes(cfg.Data.CrashesCSV)
	if err != nil {
		return in, err
	}
	table, err := load.MilePosts(cfg.Data.MilePostsCSV)
	if err != nil {
		return in, err
	}

	var counties *county.Set
	if cfg.Data.CountyShapefile != "" {
		counties, err = county.LoadShapefile(cfg.Data.CountyShapefile, cfg.Data.CountyNameField)
		if err != nil {
			return in, err
		}
	} else {
		zap.L().Warn("no county shapefile configured, skipping county assignment")
	}

	in.Records = records
	in.MilePosts = table
	in.Counties = counties
	return in, nil
}

// saveRun persists a completed pipeline run with per-row density weights.
func saveRun(ctx context.Context, policy string, out *pipeline.Output) error {
	if cfg.Store.Path == "" {
		return eris.New("reconcile: store.path not configured (use --no-store to skip)")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	inside := out.Partition.Inside()
	inRegion := make(map[int]bool, len(inside))
	for _, r := range inside {
		inRegion[r.ID] = true
	}

	weighted := density.Annotate(out.Result.Records)
	rows := make([]store.CrashRow, 0, len(weighted))
	for _, w := range weighted {
		row := store.CrashRow{
			ID:       w.ID,
			Date:     w.Date,
			Severity: w.Severity,
			Lat:      w.Lat,
			OCC:      w.OCC,
			ICC:      w.ICC,
			InRegion: inRegion[w.ID],
			Count:    w.Count,
			Radius:   w.Radius,
		}
		// Retained records always carry a longitude.
		if w.Lon != nil {
			row.Lon = *w.Lon
		}
		rows = append(rows, row)
	}

	stats := out.Result.Stats
	run := store.Run{
		ID:           uuid.NewString(),
		Policy:       policy,
		InputRows:    stats.Input,
		RetainedRows: stats.Retained,
		DroppedRows:  stats.Dropped,
		InRegion:     len(inside),
		OutRegion:    len(out.Partition.Outside()),
		CreatedAt:    time.Now(),
	}
	if err := st.SaveRun(ctx, run, rows); err != nil {
		return err
	}

	zap.L().Info("run persisted",
		zap.String("run_id", run.ID),
		zap.Int("rows", len(rows)),
		zap.String("path", cfg.Store.Path),
	)
	fmt.Printf("run %s saved to %s\n", run.ID, cfg.Store.Path)
	return nil
}
