package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"parcellink/internal/report"
	"parcellink/internal/scrape"
)

func scrapeCmd(a *app) *cobra.Command {
	var (
		limit   int
		mapping string
	)

	cmd := &cobra.Command{
		Use:   "scrape [parcel-id...]",
		Short: "Scrape current assessments from the city assessing site",
		Long: `Fetch the details page of every mapped parcel (or the parcel ids given as
arguments) and write scraped_assessments.csv and scrape_failures.csv.
Progress is checkpointed; rerunning skips parcels already scraped.
Ctrl-C saves a checkpoint and writes what was gathered so far.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if len(ids) == 0 {
				if mapping == "" {
					mapping = a.outPath(report.MappingFile)
				}
				var err error
				if ids, err = a.loader.LoadMappedParcelIDs(mapping); err != nil {
					return fmt.Errorf("failed to read parcel ids (run 'parcellink run' first?): %w", err)
				}
			}
			if limit > 0 && len(ids) > limit {
				ids = ids[:limit]
			}

			scraper, err := scrape.New(a.cfg.Scrape, a.log)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(a.cfg.Scrape.CheckpointPath), 0o755); err != nil {
				return fmt.Errorf("failed to create checkpoint directory: %w", err)
			}
			checkpoint, err := scrape.OpenCheckpoint(a.cfg.Scrape.CheckpointPath)
			if err != nil {
				return err
			}
			defer checkpoint.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			batch := &scrape.Batch{
				Fetcher:    scraper,
				Checkpoint: checkpoint,
				Every:      a.cfg.Scrape.CheckpointEvery,
				Log:        a.log,
			}
			a.log.Infof("Scraping %d parcels from %s", len(ids), a.cfg.Scrape.BaseURL)
			outcomes, runErr := batch.Run(ctx, ids)
			if runErr != nil && !errors.Is(runErr, ctx.Err()) {
				return runErr
			}

			if err := report.WriteFile(a.outPath(report.ScrapedFile), func(w io.Writer) error {
				return scrape.WriteResults(w, outcomes)
			}); err != nil {
				return err
			}
			if err := report.WriteFile(a.outPath(report.ScrapeFailsFile), func(w io.Writer) error {
				return scrape.WriteFailures(w, outcomes)
			}); err != nil {
				return err
			}
			if runErr != nil {
				a.log.Warn("Scrape interrupted; rerun to resume from the checkpoint")
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "scrape at most this many parcels (0 = all)")
	cmd.Flags().StringVar(&mapping, "mapping", "", "mapping CSV to take parcel ids from (default: output dir)")
	return cmd
}
