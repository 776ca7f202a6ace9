package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// videoExtensions marks files routed to the video archive when the binding
// enables a separate one.
var videoExtensions = map[string]bool{
	".mov": true,
	".mp4": true,
	".avi": true,
	".mkv": true,
}

// IsVideoExtension reports whether ext (with leading dot, any case) is a
// video extension.
func IsVideoExtension(ext string) bool {
	return videoExtensions[strings.ToLower(ext)]
}

// Placement is the result of archiving one file.
type Placement struct {
	// Path is where the file's content lives in the archive.
	Path string
	// AlreadyPresent means a byte-identical file was already at the
	// destination, so nothing was written.
	AlreadyPresent bool
	// Renamed means the base name collided with different content and a
	// numeric suffix was appended.
	Renamed bool
}

// Placer archives a new unique file under its creation date.
type Placer interface {
	Place(srcPath string, date Date) (Placement, error)
}

// Organizer computes date-partitioned destination paths and performs the
// copy or move. The two grouping toggles yield one of four folder schemes:
// YYYY/MM/DD, YYYY/MM, YYYY-MM/DD, YYYY-MM.
type Organizer struct {
	PhotoRoot            string
	VideoRoot            string
	SeparateVideoArchive bool

	GroupByYear bool
	GroupByDay  bool

	// Move deletes the source after a successful copy.
	Move bool

	logger Logger
}

// NewOrganizer creates an Organizer archiving into the binding's roots.
func NewOrganizer(binding *Binding, groupByYear, groupByDay, move bool, logger Logger) *Organizer {
	return &Organizer{
		PhotoRoot:            binding.ArchiveLocation,
		VideoRoot:            binding.VideoArchiveLocation,
		SeparateVideoArchive: binding.SeparateVideoArchive,
		GroupByYear:          groupByYear,
		GroupByDay:           groupByDay,
		Move:                 move,
		logger:               logger,
	}
}

// DestinationDir returns the archive directory for a file with the given
// date and extension, without creating it.
func (o *Organizer) DestinationDir(date Date, ext string) string {
	root := o.PhotoRoot
	if o.SeparateVideoArchive && o.VideoRoot != "" && IsVideoExtension(ext) {
		root = o.VideoRoot
	}

	if o.GroupByYear {
		if o.GroupByDay {
			return filepath.Join(root, date.Year, date.Month, date.Day)
		}
		return filepath.Join(root, date.Year, date.Month)
	}
	if o.GroupByDay {
		return filepath.Join(root, date.Year+"-"+date.Month, date.Day)
	}
	return filepath.Join(root, date.Year+"-"+date.Month)
}

// Place archives srcPath under its date directory.
//
// A same-name file at the destination is compared byte-for-byte: identical
// means the file is already archived and nothing is written; different
// content gets an incrementing numeric suffix so both versions survive for
// human review. Nothing is ever overwritten.
func (o *Organizer) Place(srcPath string, date Date) (Placement, error) {
	destDir := o.DestinationDir(date, filepath.Ext(srcPath))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return Placement{}, fmt.Errorf("creating archive directory %s: %w", destDir, err)
	}

	target := filepath.Join(destDir, filepath.Base(srcPath))
	renamed := false

	if _, err := os.Stat(target); err == nil {
		identical, err := filesIdentical(srcPath, target)
		if err != nil {
			return Placement{}, fmt.Errorf("comparing %s with %s: %w", srcPath, target, err)
		}
		if identical {
			o.logger.Debug("identical file already archived", "path", target)
			if o.Move {
				if err := os.Remove(srcPath); err != nil {
					return Placement{}, fmt.Errorf("removing source %s: %w", srcPath, err)
				}
			}
			return Placement{Path: target, AlreadyPresent: true}, nil
		}
		target, err = uniqueName(target)
		if err != nil {
			return Placement{}, err
		}
		renamed = true
		o.logger.Warn("name collision with different content", "target", target)
	} else if !os.IsNotExist(err) {
		return Placement{}, fmt.Errorf("stat %s: %w", target, err)
	}

	if err := copyContents(srcPath, target); err != nil {
		return Placement{}, err
	}

	if o.Move {
		if err := os.Remove(srcPath); err != nil {
			return Placement{}, fmt.Errorf("removing source %s after move: %w", srcPath, err)
		}
	}

	o.logger.Info("file archived", "source", srcPath, "target", target)
	return Placement{Path: target, Renamed: renamed}, nil
}

// copyContents copies the file's bytes exactly. No metadata rewriting: the
// content hash of the copy must equal the source's.
func copyContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return nil
}

// uniqueName appends _1, _2, ... before the extension until a free sibling
// name is found.
func uniqueName(target string) (string, error) {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}
}

// filesIdentical compares two files byte-for-byte in fixed-size chunks.
func filesIdentical(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, hashChunkSize)
	bufB := make([]byte, hashChunkSize)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}

var _ Placer = (*Organizer)(nil)
