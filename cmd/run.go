package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"parcellink/internal/database"
	"parcellink/internal/report"
	"parcellink/internal/resolve"
	"parcellink/internal/types"
)

func runCmd(a *app) *cobra.Command {
	var toStore bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the building-parcel mapping and join assessments",
		Long: `Load the building and parcel layers and the assessment file, link every
building to its parcel(s) and write building_parcel_mapping.csv,
building_assessments.csv and mapping_summary.txt to the output directory.

Examples:
  parcellink run
  parcellink run --config boston.yaml --store`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			buildings, parcels, res, err := a.resolveAll()
			if err != nil {
				return err
			}
			if err := a.writeResults(res, len(parcels)); err != nil {
				return err
			}
			a.log.Infof("Wrote results to %s in %v", a.cfg.Output.Dir, time.Since(start).Truncate(time.Millisecond))

			if !toStore {
				return nil
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.storeResults(ctx, buildings, res, nil)
		},
	}
	cmd.Flags().BoolVar(&toStore, "store", false, "also write results to the configured database")
	return cmd
}

func (a *app) writeResults(res resolve.Result, totalParcels int) error {
	if err := report.WriteFile(a.outPath(report.MappingFile), func(w io.Writer) error {
		return report.WriteMappings(w, res.Mappings)
	}); err != nil {
		return err
	}
	if err := report.WriteFile(a.outPath(report.AssessmentFile), func(w io.Writer) error {
		return report.WriteAssessments(w, res.Joined)
	}); err != nil {
		return err
	}
	return report.WriteFile(a.outPath(report.SummaryFile), func(w io.Writer) error {
		return report.WriteSummary(w, report.NewSummary(res, totalParcels))
	})
}

// storeResults replaces the derived tables with this run's output. links
// is skipped when nil.
func (a *app) storeResults(ctx context.Context, buildings []types.Building, res resolve.Result, links []types.VoterLink) error {
	if a.cfg.Store.Driver == "" {
		return fmt.Errorf("no store driver configured (set store.driver or DB_DRIVER)")
	}
	store, err := database.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DB, a.log)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", a.cfg.Store.Driver, err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := a.log.WithField("run_id", runID)

	if err := store.ReplaceBuildings(ctx, runID, buildings); err != nil {
		return err
	}
	if err := store.ReplaceMappings(ctx, runID, res.Mappings); err != nil {
		return err
	}
	if err := store.ReplaceAssessments(ctx, runID, res.Joined); err != nil {
		return err
	}
	if links != nil {
		if err := store.ReplaceVoterLinks(ctx, runID, links); err != nil {
			return err
		}
	}
	log.WithField("rows", len(res.Mappings)).Info("Stored run")
	return nil
}
