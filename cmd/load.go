package main

import (
	"github.com/spf13/cobra"

	"parcellink/internal/types"
)

func loadCmd(a *app) *cobra.Command {
	var withVoters bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Recompute the mapping and replace the database tables",
		Long: `Recompute the building-parcel mapping and assessment join and replace the
store's derived tables, one transaction per table. With --voters the voter
links are recomputed from saved building addresses and stored as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			buildings, _, res, err := a.resolveAll()
			if err != nil {
				return err
			}

			var links []types.VoterLink
			if withVoters {
				if err := a.applySavedAddresses(buildings); err != nil {
					return err
				}
				if links, err = a.linkVoters(buildings); err != nil {
					return err
				}
			}
			return a.storeResults(ctx, buildings, res, links)
		},
	}
	cmd.Flags().BoolVar(&withVoters, "voters", false, "also store voter links")
	return cmd
}
