package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Fetcher fetches the details for one parcel.
type Fetcher interface {
	Fetch(ctx context.Context, parcelID string) (*Details, error)
}

// Batch scrapes a list of parcels, checkpointing outcomes every Every
// records. Parcels already scraped successfully in the checkpoint are not
// fetched again.
type Batch struct {
	Fetcher    Fetcher
	Checkpoint *Checkpoint
	Every      int
	Log        logrus.FieldLogger

	now func() time.Time
}

// Run processes ids in order and returns one outcome per distinct id. A
// failed parcel is recorded and the batch moves on. When ctx is cancelled
// the pending outcomes are checkpointed and ctx.Err() is returned along
// with the outcomes gathered so far.
func (b *Batch) Run(ctx context.Context, ids []string) ([]Outcome, error) {
	now := b.now
	if now == nil {
		now = time.Now
	}
	every := b.Every
	if every <= 0 {
		every = 1
	}

	prior, err := b.Checkpoint.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var (
		outcomes []Outcome
		pending  []Outcome
		seen     = make(map[string]bool, len(ids))
		resumed  int
		failed   int
	)

	flush := func() error {
		if err := b.Checkpoint.Save(pending); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		pending = pending[:0]
		return nil
	}

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if o, ok := prior[id]; ok && o.Success {
			outcomes = append(outcomes, o)
			resumed++
			continue
		}

		if ctx.Err() != nil {
			break
		}

		details, err := b.Fetcher.Fetch(ctx, id)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			break
		}

		o := Outcome{ParcelID: id, ScrapedAt: now().UTC()}
		if err != nil {
			o.Reason = err.Error()
			failed++
			b.Log.WithField("parcel_id", id).WithError(err).Warn("Failed to scrape parcel")
		} else {
			o.Success = true
			o.Details = details
		}
		outcomes = append(outcomes, o)
		pending = append(pending, o)

		if len(pending) >= every {
			if err := flush(); err != nil {
				return outcomes, err
			}
			b.Log.Infof("Checkpoint: %d/%d parcels processed (%d failed)", len(outcomes), len(seen), failed)
		}
	}

	if err := flush(); err != nil {
		return outcomes, err
	}

	b.Log.WithFields(logrus.Fields{
		"processed": len(outcomes),
		"resumed":   resumed,
		"failed":    failed,
	}).Info("Scrape batch finished")

	return outcomes, ctx.Err()
}
