package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Default thresholds. Every one of them can be overridden in the config
// file.
const (
	DefaultBatchSize              = 100
	DefaultPartialHashBytes       = 16384
	DefaultPartialHashMinFileSize = 1048576

	DefaultMinPhotoFileSize = 51200
	DefaultMinPhotoWidth    = 800
	DefaultMinPhotoHeight   = 600
	DefaultMaxPhotoWidth    = 50000
	DefaultMaxPhotoHeight   = 50000
	DefaultMinSquareSize    = 400
)

// DefaultFileEndings is the default extension allow-list for discovery.
var DefaultFileEndings = []string{".jpg", ".jpeg", ".png", ".heic", ".tif", ".mov", ".mp4"}

// DefaultExcludedPatterns are filename substrings that mark icons,
// thumbnails and other web graphics.
var DefaultExcludedPatterns = []string{"favicon", "icon", "logo", "thumb", "button", "badge", "sprite"}

// Config represents the main configuration for parc.
type Config struct {
	BaseDir      string `toml:"base_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`

	SourceDirectories     []string `toml:"source_directory"`
	IncludeSubdirectories bool     `toml:"include_subdirectories"`
	FileEndings           []string `toml:"file_endings"`

	BatchSize   int  `toml:"batch_size"`
	GroupByYear bool `toml:"group_by_year"`
	GroupByDay  bool `toml:"group_by_day"`
	CopyFiles   bool `toml:"copy_files"`
	MoveFiles   bool `toml:"move_files"`

	PartialHash PartialHashConfig `toml:"partial_hash"`
	Filter      FilterConfig      `toml:"filter"`
}

// PartialHashConfig controls the two-stage hashing optimization.
type PartialHashConfig struct {
	Enabled bool `toml:"enabled"`
	// Bytes is the prefix length hashed in stage one.
	Bytes int `toml:"bytes"`
	// MinFileSize is the threshold below which files skip straight to the
	// full hash.
	MinFileSize int64 `toml:"min_file_size"`
}

// FilterConfig holds the photo classifier thresholds.
type FilterConfig struct {
	Enabled                  bool     `toml:"enabled"`
	MinFileSize              int64    `toml:"min_file_size"`
	MinWidth                 int      `toml:"min_width"`
	MinHeight                int      `toml:"min_height"`
	MaxWidth                 int      `toml:"max_width"`
	MaxHeight                int      `toml:"max_height"`
	ExcludeSquareSmallerThan int      `toml:"exclude_square_smaller_than"`
	RequireExif              bool     `toml:"require_exif"`
	ExcludedFilenamePatterns []string `toml:"excluded_filename_patterns"`
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:               baseDir,
		LogDir:                filepath.Join(baseDir, "log"),
		DatabasePath:          filepath.Join(baseDir, "parc.db"),
		IncludeSubdirectories: true,
		FileEndings:           append([]string(nil), DefaultFileEndings...),
		BatchSize:             DefaultBatchSize,
		GroupByYear:           true,
		GroupByDay:            true,
		CopyFiles:             true,
		PartialHash: PartialHashConfig{
			Enabled:     true,
			Bytes:       DefaultPartialHashBytes,
			MinFileSize: DefaultPartialHashMinFileSize,
		},
		Filter: FilterConfig{
			Enabled:                  true,
			MinFileSize:              DefaultMinPhotoFileSize,
			MinWidth:                 DefaultMinPhotoWidth,
			MinHeight:                DefaultMinPhotoHeight,
			MaxWidth:                 DefaultMaxPhotoWidth,
			MaxHeight:                DefaultMaxPhotoHeight,
			ExcludeSquareSmallerThan: DefaultMinSquareSize,
			ExcludedFilenamePatterns: append([]string(nil), DefaultExcludedPatterns...),
		},
	}
}

// Validate rejects invalid option combinations. An empty file_endings
// list is valid and accepts every file.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.CopyFiles && c.MoveFiles {
		return fmt.Errorf("copy_files and move_files are mutually exclusive")
	}
	if !c.CopyFiles && !c.MoveFiles {
		return fmt.Errorf("one of copy_files or move_files must be set")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be >= 0, got %d", c.BatchSize)
	}
	if c.PartialHash.Enabled {
		if c.PartialHash.Bytes <= 0 {
			return fmt.Errorf("partial_hash.bytes must be positive, got %d", c.PartialHash.Bytes)
		}
		if c.PartialHash.MinFileSize < 0 {
			return fmt.Errorf("partial_hash.min_file_size must be >= 0, got %d", c.PartialHash.MinFileSize)
		}
	}
	if c.Filter.Enabled {
		if c.Filter.MinFileSize < 0 {
			return fmt.Errorf("filter.min_file_size must be >= 0, got %d", c.Filter.MinFileSize)
		}
		if c.Filter.MinWidth > c.Filter.MaxWidth {
			return fmt.Errorf("filter.min_width %d exceeds filter.max_width %d", c.Filter.MinWidth, c.Filter.MaxWidth)
		}
		if c.Filter.MinHeight > c.Filter.MaxHeight {
			return fmt.Errorf("filter.min_height %d exceeds filter.max_height %d", c.Filter.MinHeight, c.Filter.MaxHeight)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and validates it.
// Defaults are applied first, so a sparse file only overrides the keys
// it names.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := NewConfig("")
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
