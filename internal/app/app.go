// Package app is the application layer between the CLI and the archive
// pipeline. It constructs all dependencies from config, exposes high-level
// operations, and manages the index and log-file lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"parc-go/internal/archive"
	"parc-go/internal/config"
	"parc-go/internal/database"
	"parc-go/internal/discover"
	"parc-go/internal/exifdate"
	"parc-go/internal/filter"
	"parc-go/internal/fs"
)

// App wires the configured components together. Every CLI invocation gets
// a fresh App tagged with a unique run ID; the run ID prefixes every log
// line so interleaved runs in a shared log file stay attributable.
type App struct {
	cfg     *config.Config
	index   *database.SQLiteIndex
	logger  archive.Logger
	clock   archive.Clock
	logFile *os.File
	runID   string
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := archive.UUIDGenerator{}.New()
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	index, err := database.NewIndexFromConfig(cfg)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening index: %w", err)
	}

	return &App{
		cfg:     cfg,
		index:   index,
		logger:  &slogAdapter{l: logger},
		clock:   archive.RealClock{},
		logFile: logFile,
		runID:   runID,
	}, nil
}

// RunID returns this invocation's log-correlation ID.
func (a *App) RunID() string {
	return a.runID
}

// InitArchive creates the index database and binds it to a new archive
// location in one step, creating the location directory. It is the only
// path that creates a bound index, and it refuses to touch an existing
// database file, bound or not.
func InitArchive(cfg *config.Config, name, description, location string) (*archive.Binding, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DatabasePath != ":memory:" {
		if _, err := os.Stat(cfg.DatabasePath); err == nil {
			return nil, fmt.Errorf("index database already exists at %s", cfg.DatabasePath)
		}
	}

	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("resolving archive location: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating archive location: %w", err)
	}

	idx, err := database.CreateBoundIndex(cfg.DatabasePath, name, description, abs, time.Now())
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	return idx.Binding()
}

// ArchiveInfo returns the archive binding. Errors when the index has not
// been bound yet.
func (a *App) ArchiveInfo() (*archive.Binding, error) {
	b, err := a.index.Binding()
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("index is not bound to an archive; run 'parc archive init' first")
	}
	return b, nil
}

// RelocateArchive rebinds the index to a new archive location. The caller
// is responsible for having moved the archived files there; the directory
// must already exist. Returns the absolute location stored in the binding.
func (a *App) RelocateArchive(location string) (string, error) {
	if _, err := a.ArchiveInfo(); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("resolving archive location: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("checking archive location: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("archive location %s is not a directory", abs)
	}

	if err := a.index.UpdateArchiveLocation(abs); err != nil {
		return "", err
	}
	a.logger.Info("archive relocated", "location", abs)
	return abs, nil
}

// BackupIndex writes a consistent snapshot of the index database to
// destPath. The target must not exist yet.
func (a *App) BackupIndex(destPath string) (string, error) {
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return "", fmt.Errorf("resolving backup path: %w", err)
	}
	if _, err := os.Stat(abs); err == nil {
		return "", fmt.Errorf("backup target %s already exists", abs)
	}

	if err := a.index.BackupTo(abs); err != nil {
		return "", err
	}
	a.logger.Info("index backed up", "path", abs)
	return abs, nil
}

// SetVideoArchive routes videos to a separate archive root, creating it.
// An empty location disables the separation.
func (a *App) SetVideoArchive(location string) error {
	if _, err := a.ArchiveInfo(); err != nil {
		return err
	}

	abs := ""
	if location != "" {
		var err error
		if abs, err = filepath.Abs(location); err != nil {
			return fmt.Errorf("resolving video archive location: %w", err)
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return fmt.Errorf("creating video archive location: %w", err)
		}
	}

	if err := a.index.SetVideoArchive(abs); err != nil {
		return err
	}
	if abs == "" {
		a.logger.Info("separate video archive disabled")
	} else {
		a.logger.Info("separate video archive enabled", "location", abs)
	}
	return nil
}

// Run executes the ingest pipeline over sources. When sources is empty the
// configured source directories are used.
func (a *App) Run(ctx context.Context, sources []string) (*archive.Summary, error) {
	binding, err := a.ArchiveInfo()
	if err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		sources = a.cfg.SourceDirectories
	}

	fsmgr := fs.NewOSFilesystemManager()
	scanner := discover.NewScanner(a.cfg.FileEndings, a.cfg.IncludeSubdirectories, a.logger)
	classifier := filter.New(filterOptions(a.cfg))
	fingerprinter := archive.NewFingerprinter(fsmgr,
		a.cfg.PartialHash.Enabled, a.cfg.PartialHash.Bytes, a.cfg.PartialHash.MinFileSize)
	organizer := archive.NewOrganizer(binding,
		a.cfg.GroupByYear, a.cfg.GroupByDay, a.cfg.MoveFiles, a.logger)
	oracle := exifdate.NewOracle(a.logger)

	svc := archive.NewService(a.index, scanner, classifier, fingerprinter,
		organizer, oracle, a.logger, a.clock, a.cfg.BatchSize)

	if p := newProgressPrinter(os.Stderr); p != nil {
		svc.Progress = p.Observe
		defer p.Finish()
	}

	return svc.Run(ctx, sources)
}

// Stats is the archive report for the stats command.
type Stats struct {
	Binding *archive.Binding
	ByYear  []database.YearCount
}

// Stats refreshes the photo counter and returns per-year archive counts.
func (a *App) Stats() (*Stats, error) {
	binding, err := a.ArchiveInfo()
	if err != nil {
		return nil, err
	}

	if binding.TotalPhotos, err = a.index.RefreshTotalPhotos(); err != nil {
		return nil, err
	}

	byYear, err := a.index.CountByYear()
	if err != nil {
		return nil, err
	}
	return &Stats{Binding: binding, ByYear: byYear}, nil
}

// filterOptions maps the config block onto the classifier thresholds.
func filterOptions(cfg *config.Config) filter.Options {
	return filter.Options{
		Enabled:                  cfg.Filter.Enabled,
		MinFileSize:              cfg.Filter.MinFileSize,
		MinWidth:                 cfg.Filter.MinWidth,
		MinHeight:                cfg.Filter.MinHeight,
		MaxWidth:                 cfg.Filter.MaxWidth,
		MaxHeight:                cfg.Filter.MaxHeight,
		ExcludeSquareSmallerThan: cfg.Filter.ExcludeSquareSmallerThan,
		RequireExif:              cfg.Filter.RequireExif,
		ExcludedFilenamePatterns: cfg.Filter.ExcludedFilenamePatterns,
	}
}

// Close closes the index and the log file.
func (a *App) Close() error {
	var firstErr error

	if err := a.index.Close(); err != nil {
		firstErr = fmt.Errorf("closing index: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
