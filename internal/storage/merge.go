package storage

import (
	"fmt"
	"log/slog"

	"github.com/IshaanNene/lbcscraper/internal/types"
)

// Merge folds batches into existing, in order, with the URL replace rule
// of types.Collection, and re-indexes the result densely. existing has the
// lowest priority because it is added first.
func Merge(existing []types.Listing, batches ...[]types.Listing) []types.Listing {
	c := types.NewCollection()
	c.AddAll(existing)
	for _, batch := range batches {
		c.AddAll(batch)
	}
	return c.Records()
}

// MergeStore merges freshly scraped batches into a persisted collection.
type MergeStore struct {
	store  RecordStore
	logger *slog.Logger
}

// NewMergeStore creates a MergeStore over store.
func NewMergeStore(store RecordStore, logger *slog.Logger) *MergeStore {
	return &MergeStore{
		store:  store,
		logger: logger.With("component", "merge_store"),
	}
}

// Merge loads the stored collection, merges batches into it, saves the
// result and returns it.
func (m *MergeStore) Merge(batches ...[]types.Listing) ([]types.Listing, error) {
	existing, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load existing records: %w", err)
	}

	incoming := 0
	for _, b := range batches {
		incoming += len(b)
	}

	merged := Merge(existing, batches...)
	if err := m.store.Save(merged); err != nil {
		return nil, fmt.Errorf("save merged records: %w", err)
	}

	m.logger.Info("records merged",
		"path", m.store.Path(),
		"existing", len(existing),
		"incoming", incoming,
		"total", len(merged),
		"new", len(merged)-len(existing),
	)
	return merged, nil
}

// Variant is the output of one rental search, furnished or not.
type Variant struct {
	Furnished bool
	Records   []types.Listing
}

// StampFurnished returns copies of records carrying the furnished flag.
func StampFurnished(records []types.Listing, furnished bool) []types.Listing {
	out := make([]types.Listing, len(records))
	for i, r := range records {
		c := r.Clone()
		c.Furnished = types.Bool(furnished)
		out[i] = c
	}
	return out
}

// CombineVariants stamps every variant with its flag and merges them, in
// order, into one densely indexed collection.
func CombineVariants(variants ...Variant) []types.Listing {
	batches := make([][]types.Listing, 0, len(variants))
	for _, v := range variants {
		batches = append(batches, StampFurnished(v.Records, v.Furnished))
	}
	return Merge(nil, batches...)
}
