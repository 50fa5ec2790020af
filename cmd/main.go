package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"parcellink/internal/config"
	"parcellink/internal/ingest"
	"parcellink/internal/logging"
	"parcellink/internal/report"
	"parcellink/internal/resolve"
	"parcellink/internal/types"
)

const appName = "parcellink"

var Version = "dev"

// app carries what every subcommand needs. It is built in the root
// command's PersistentPreRunE once flags are parsed.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	loader *ingest.Loader
}

func main() {
	a := &app{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Link building footprints to tax parcels, assessments and voters",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.LogLevel = lvl
			}
			a.cfg = cfg
			a.log = logging.New(appName, cfg.LogLevel, os.Stderr)
			a.loader = ingest.NewLoader(cfg.Resolve, a.log)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(runCmd(a))
	rootCmd.AddCommand(scrapeCmd(a))
	rootCmd.AddCommand(geocodeCmd(a))
	rootCmd.AddCommand(votersCmd(a))
	rootCmd.AddCommand(loadCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(reviewCmd(a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) outPath(name string) string {
	return filepath.Join(a.cfg.Output.Dir, name)
}

func (a *app) loadBuildings() ([]types.Building, error) {
	buildings, err := a.loader.LoadBuildings(a.cfg.Inputs.Buildings, a.cfg.Inputs.BuildingsCRS == "wgs84")
	if err != nil {
		return nil, fmt.Errorf("failed to load buildings: %w", err)
	}
	return buildings, nil
}

// loadLayers reads both layers. Building addresses from an earlier geocode
// run are attached when that file exists.
func (a *app) loadLayers() ([]types.Building, []types.Parcel, error) {
	buildings, err := a.loadBuildings()
	if err != nil {
		return nil, nil, err
	}
	parcels, err := a.loader.LoadParcels(a.cfg.Inputs.Parcels, a.cfg.Inputs.ParcelsCRS == "wgs84")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load parcels: %w", err)
	}
	return buildings, parcels, nil
}

// applySavedAddresses attaches addresses from building_addresses.csv if
// the geocode command has produced one.
func (a *app) applySavedAddresses(buildings []types.Building) error {
	path := a.outPath(report.AddressFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	addrs, err := a.loader.LoadAddresses(path)
	if err != nil {
		return fmt.Errorf("failed to load building addresses: %w", err)
	}
	n := ingest.ApplyAddresses(buildings, addrs)
	a.log.Infof("Attached %d saved building addresses", n)
	return nil
}

// resolveAll loads every input and runs the resolution pipeline.
func (a *app) resolveAll() ([]types.Building, []types.Parcel, resolve.Result, error) {
	buildings, parcels, err := a.loadLayers()
	if err != nil {
		return nil, nil, resolve.Result{}, err
	}
	assessments, err := a.loader.LoadAssessments(a.cfg.Inputs.Assessments)
	if err != nil {
		return nil, nil, resolve.Result{}, fmt.Errorf("failed to load assessments: %w", err)
	}
	res := resolve.Run(a.cfg.Resolve.LocalIDPrefix, buildings, parcels, assessments, a.log)
	return buildings, parcels, res, nil
}
