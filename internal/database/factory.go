package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"parc-go/internal/config"
)

// NewIndexFromConfig opens the index at the configured database path,
// creating and migrating the file on first use. The parent directory is
// created if needed.
func NewIndexFromConfig(cfg *config.Config) (*SQLiteIndex, error) {
	path := cfg.DatabasePath
	if path == "" {
		return nil, fmt.Errorf("database_path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return NewSQLiteIndex(path)
}

// CreateBoundIndex creates a fresh index at path and binds it to an
// archive location in one step. Fails when the index is already bound.
func CreateBoundIndex(path, name, description, archiveLocation string, now time.Time) (*SQLiteIndex, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	idx, err := NewSQLiteIndex(path)
	if err != nil {
		return nil, err
	}

	if err := idx.InitBinding(name, description, archiveLocation, now); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}
