package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"parcellink/internal/report"
	"parcellink/internal/types"
	"parcellink/internal/voters"
)

func votersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "voters",
		Short: "Link voter roll entries to buildings by street address",
		Long: `Match each voter's street address to a building address (from the layer's
address fields or an earlier geocode run) and write voters_buildings.csv.
Unmatched voters are kept with an empty STRUCT_ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildings, err := a.loadBuildings()
			if err != nil {
				return err
			}
			if err := a.applySavedAddresses(buildings); err != nil {
				return err
			}
			links, err := a.linkVoters(buildings)
			if err != nil {
				return err
			}
			return report.WriteFile(a.outPath(report.VoterLinkFile), func(w io.Writer) error {
				return report.WriteVoterLinks(w, links)
			})
		},
	}
}

func (a *app) linkVoters(buildings []types.Building) ([]types.VoterLink, error) {
	roll, err := a.loader.LoadVoters(a.cfg.Inputs.Voters)
	if err != nil {
		return nil, fmt.Errorf("failed to load voters: %w", err)
	}
	linker := voters.NewLinker(buildings, a.cfg.Geocode.MaxDistanceM, a.log)
	if a.cfg.Geocode.NearestFallback {
		linker.EnableNearest(buildings)
	}
	links, _ := linker.Link(roll)
	return links, nil
}
