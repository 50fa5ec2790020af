package scrape

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var outcomesBucket = []byte("outcomes")

// Outcome is the result of scraping one parcel.
type Outcome struct {
	ParcelID  string    `json:"parcel_id"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	Details   *Details  `json:"details,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Checkpoint persists outcomes in a bbolt file so an interrupted batch can
// resume. Outcomes are keyed by parcel id; a later write replaces an
// earlier one.
type Checkpoint struct {
	db *bolt.DB
}

// OpenCheckpoint opens or creates the checkpoint file at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint '%v': %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(outcomesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating outcomes bucket: %w", err)
	}
	return &Checkpoint{db: db}, nil
}

// Close syncs and closes the checkpoint file.
func (c *Checkpoint) Close() error {
	if err := c.db.Sync(); err != nil {
		return fmt.Errorf("syncing checkpoint: %w", err)
	}
	return c.db.Close()
}

// Save writes outcomes in one transaction.
func (c *Checkpoint) Save(outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(outcomesBucket)
		for _, o := range outcomes {
			data, err := json.Marshal(o)
			if err != nil {
				return fmt.Errorf("encoding outcome for %s: %w", o.ParcelID, err)
			}
			if err := b.Put([]byte(o.ParcelID), data); err != nil {
				return fmt.Errorf("saving outcome for %s: %w", o.ParcelID, err)
			}
		}
		return nil
	})
}

// Load returns every stored outcome keyed by parcel id.
func (c *Checkpoint) Load() (map[string]Outcome, error) {
	out := make(map[string]Outcome)
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(outcomesBucket).ForEach(func(k, v []byte) error {
			var o Outcome
			if err := json.Unmarshal(v, &o); err != nil {
				return fmt.Errorf("decoding outcome for %s: %w", k, err)
			}
			out[string(k)] = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
