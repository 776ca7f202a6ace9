// Package exifdate resolves a file's creation date for archive placement.
//
// Embedded EXIF capture metadata (DateTimeOriginal) is always preferred
// over filesystem timestamps when it is present and parseable; otherwise
// the file's modification time is used, and when nothing at all is
// recoverable a fixed sentinel date (1000-01-01) marks the file for human
// review.
package exifdate

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"parc-go/internal/archive"
)

// Oracle implements archive.DateOracle against the real filesystem.
type Oracle struct {
	logger archive.Logger
}

// NewOracle creates an Oracle.
func NewOracle(logger archive.Logger) *Oracle {
	return &Oracle{logger: logger}
}

// CreationDate returns the creation date for the file at path. It never
// fails; the sentinel date is the worst case.
func (o *Oracle) CreationDate(path string) archive.Date {
	if t, ok := o.exifDate(path); ok {
		return dateFromTime(t)
	}

	info, err := os.Stat(path)
	if err != nil {
		o.logger.Warn("no date recoverable, using sentinel", "path", path, "error", err)
		return archive.SentinelDate()
	}
	return dateFromTime(info.ModTime())
}

// exifDate extracts DateTimeOriginal (falling back to DateTime) from the
// file's EXIF block. Returns false when the file has no usable metadata.
func (o *Oracle) exifDate(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// Normal for formats without EXIF support.
		return time.Time{}, false
	}

	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	// Guard against zeroed or nonsense capture dates some cameras write.
	if t.Year() < 1800 || t.Year() > time.Now().Year()+1 {
		o.logger.Debug("implausible capture date ignored", "path", path, "date", t)
		return time.Time{}, false
	}
	return t, true
}

func dateFromTime(t time.Time) archive.Date {
	return archive.Date{
		Year:  t.Format("2006"),
		Month: t.Format("01"),
		Day:   t.Format("02"),
	}
}

var _ archive.DateOracle = (*Oracle)(nil)
