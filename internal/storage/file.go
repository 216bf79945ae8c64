package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IshaanNene/lbcscraper/internal/types"
)

// JSONFile stores listings as an indented JSON array in one file.
type JSONFile struct {
	path   string
	logger *slog.Logger
}

// NewJSONFile creates a JSON record store at path.
func NewJSONFile(path string, logger *slog.Logger) *JSONFile {
	return &JSONFile{
		path:   path,
		logger: logger.With("component", "json_file", "path", path),
	}
}

// Path implements RecordStore.
func (s *JSONFile) Path() string { return s.path }

// Load implements RecordStore.
func (s *JSONFile) Load() ([]types.Listing, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &types.StorageError{Path: s.path, Op: "open", Err: err}
	}
	defer f.Close()

	var records []types.Listing
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &types.StorageError{Path: s.path, Op: "decode", Err: err}
	}

	s.logger.Debug("records loaded", "count", len(records))
	return records, nil
}

// Save implements RecordStore. The file is written to a temporary sibling
// and renamed into place so readers never see a partial array.
func (s *JSONFile) Save(records []types.Listing) error {
	if records == nil {
		records = []types.Listing{}
	}
	if err := writeJSONAtomic(s.path, records); err != nil {
		return &types.StorageError{Path: s.path, Op: "write", Err: err}
	}
	s.logger.Info("JSON written", "records", len(records))
	return nil
}

// ReadListings loads the listings stored at path.
func ReadListings(path string, logger *slog.Logger) ([]types.Listing, error) {
	return NewJSONFile(path, logger).Load()
}

// WriteListings replaces the listings stored at path.
func WriteListings(path string, records []types.Listing, logger *slog.Logger) error {
	return NewJSONFile(path, logger).Save(records)
}

func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode JSON: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
