package storage

import (
	"github.com/IshaanNene/lbcscraper/internal/types"
)

// RecordStore persists a whole collection of listings.
type RecordStore interface {
	// Load returns the stored listings. A store that does not exist yet
	// yields an empty result, not an error.
	Load() ([]types.Listing, error)

	// Save replaces the stored listings.
	Save(records []types.Listing) error

	// Path identifies the store in logs.
	Path() string
}
