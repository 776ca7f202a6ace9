// Package filter decides whether a candidate file is a genuine photograph
// or incidental graphic debris (icons, thumbnails, web assets).
//
// Checks run in a fixed order, cheapest first, short-circuiting on the
// first failure: filename pattern, file size, decodability, dimensions,
// small-square icon, required capture metadata.
package filter

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Reason identifies why a file was rejected.
type Reason string

const (
	ReasonFilenamePattern  Reason = "filename_pattern"
	ReasonFileSizeTooSmall Reason = "file_size_too_small"
	ReasonImageReadError   Reason = "image_read_error"
	ReasonDimensions       Reason = "dimensions_out_of_range"
	ReasonSmallSquareIcon  Reason = "small_square_icon"
	ReasonMissingExifData  Reason = "missing_exif_data"
)

// Verdict is the classification result for one file.
type Verdict struct {
	Pass   bool
	Reason Reason // set only when Pass is false
}

// Options configures the classifier thresholds.
type Options struct {
	Enabled                  bool
	MinFileSize              int64
	MinWidth                 int
	MinHeight                int
	MaxWidth                 int
	MaxHeight                int
	ExcludeSquareSmallerThan int
	RequireExif              bool
	ExcludedFilenamePatterns []string
}

// Statistics are per-run classification counters.
type Statistics struct {
	TotalChecked int
	TotalPassed  int

	ByFilename   int
	BySize       int
	ByReadError  int
	ByDimensions int
	BySquare     int
	ByExif       int
}

// TotalFiltered returns the number of rejected files.
func (s Statistics) TotalFiltered() int {
	return s.TotalChecked - s.TotalPassed
}

// ReasonCount pairs a rejection reason with its per-run count.
type ReasonCount struct {
	Reason Reason
	Count  int
}

// ByReason returns the non-zero rejection counters in check order, for
// end-of-run reporting.
func (s Statistics) ByReason() []ReasonCount {
	all := []ReasonCount{
		{ReasonFilenamePattern, s.ByFilename},
		{ReasonFileSizeTooSmall, s.BySize},
		{ReasonImageReadError, s.ByReadError},
		{ReasonDimensions, s.ByDimensions},
		{ReasonSmallSquareIcon, s.BySquare},
		{ReasonMissingExifData, s.ByExif},
	}
	var out []ReasonCount
	for _, rc := range all {
		if rc.Count > 0 {
			out = append(out, rc)
		}
	}
	return out
}

// Classifier applies the ordered photo heuristics and accumulates
// statistics. Not safe for concurrent use; the pipeline is sequential.
type Classifier struct {
	opts  Options
	stats Statistics
}

// New creates a Classifier. When opts.Enabled is false every file passes
// trivially and counters stay at zero.
func New(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Classify runs the checks against the file at path.
func (c *Classifier) Classify(path string) Verdict {
	if !c.opts.Enabled {
		return Verdict{Pass: true}
	}

	c.stats.TotalChecked++

	if !c.checkFilename(path) {
		c.stats.ByFilename++
		return Verdict{Reason: ReasonFilenamePattern}
	}

	if !c.checkFileSize(path) {
		c.stats.BySize++
		return Verdict{Reason: ReasonFileSizeTooSmall}
	}

	cfg, err := decodeConfig(path)
	if err != nil {
		// A file we cannot decode is conservatively not a photo.
		c.stats.ByReadError++
		return Verdict{Reason: ReasonImageReadError}
	}

	if !c.checkDimensions(cfg) {
		c.stats.ByDimensions++
		return Verdict{Reason: ReasonDimensions}
	}

	if !c.checkSquareIcon(cfg) {
		c.stats.BySquare++
		return Verdict{Reason: ReasonSmallSquareIcon}
	}

	if c.opts.RequireExif && !hasExif(path) {
		c.stats.ByExif++
		return Verdict{Reason: ReasonMissingExifData}
	}

	c.stats.TotalPassed++
	return Verdict{Pass: true}
}

// Statistics returns a copy of the accumulated counters.
func (c *Classifier) Statistics() Statistics {
	return c.stats
}

func (c *Classifier) checkFilename(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, pattern := range c.opts.ExcludedFilenamePatterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(name, strings.ToLower(pattern)) {
			return false
		}
	}
	return true
}

func (c *Classifier) checkFileSize(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Unreadable size counts as failing the size check.
		return false
	}
	return info.Size() >= c.opts.MinFileSize
}

func (c *Classifier) checkDimensions(cfg image.Config) bool {
	if cfg.Width < c.opts.MinWidth || cfg.Height < c.opts.MinHeight {
		return false
	}
	if cfg.Width > c.opts.MaxWidth || cfg.Height > c.opts.MaxHeight {
		return false
	}
	return true
}

func (c *Classifier) checkSquareIcon(cfg image.Config) bool {
	// Icons and logos are typically small perfect squares. Non-square
	// small images are left to the dimension bounds.
	if cfg.Width == cfg.Height && cfg.Width < c.opts.ExcludeSquareSmallerThan {
		return false
	}
	return true
}

// decodeConfig reads just enough of the image to get its dimensions.
func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

// hasExif reports whether the file carries decodable capture metadata.
func hasExif(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = exif.Decode(f)
	return err == nil
}
