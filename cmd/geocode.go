package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"parcellink/internal/geocode"
	"parcellink/internal/report"
)

func geocodeCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Reverse geocode building centroids to street addresses",
		Long: `Look up a street address for every building that has none, using the
Google Maps reverse geocoding API (GOOGLE_MAPS_API_KEY). Addresses already
in building_addresses.csv are reused, so an interrupted run resumes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := geocode.New(a.cfg.Geocode, a.log)
			if err != nil {
				return err
			}

			buildings, err := a.loadBuildings()
			if err != nil {
				return err
			}
			if err := a.applySavedAddresses(buildings); err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if !cmd.Flags().Changed("max") {
				limit = a.cfg.Geocode.MaxBuildings
			}
			stats, fillErr := g.Fill(ctx, buildings, limit)
			a.log.WithFields(logrus.Fields{
				"attempted": stats.Attempted,
				"geocoded":  stats.Geocoded,
				"failed":    stats.Failed,
				"skipped":   stats.Skipped,
			}).Info("Reverse geocoding finished")

			// Whatever was found is saved, including on interrupt.
			if err := report.WriteFile(a.outPath(report.AddressFile), func(w io.Writer) error {
				return report.WriteAddresses(w, buildings)
			}); err != nil {
				return err
			}
			return fillErr
		},
	}
	cmd.Flags().IntVar(&limit, "max", 0, "maximum lookups this run (0 = no limit)")
	return cmd
}
