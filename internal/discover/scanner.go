// Package discover enumerates candidate files under the configured source
// roots, filters them by extension allow-list, and corrects extensions
// that do not match the file's actual content type.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"parc-go/internal/archive"
)

// Scanner walks source roots and produces an order-stable, deduplicated
// list of candidate file paths.
type Scanner struct {
	// Recursive descends into subdirectories.
	Recursive bool
	// Endings is the extension allow-list (lowercase, with leading dot).
	// Empty accepts every file.
	Endings []string

	logger archive.Logger
}

// NewScanner creates a Scanner. Endings are normalized to lowercase.
func NewScanner(endings []string, recursive bool, logger archive.Logger) *Scanner {
	normalized := make([]string, 0, len(endings))
	for _, e := range endings {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		normalized = append(normalized, e)
	}
	return &Scanner{Recursive: recursive, Endings: normalized, logger: logger}
}

// Discover enumerates candidates under every source root. A root that
// fails to enumerate is logged and skipped; the scan continues with the
// remaining roots. The result is sorted and deduplicated.
func (s *Scanner) Discover(sources []string) ([]string, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no source directories configured")
	}

	unique := make(map[string]bool)
	var failedRoots int

	for _, source := range sources {
		paths, err := s.scanRoot(source)
		if err != nil {
			s.logger.Error("source root skipped", "source", source, "error", err)
			failedRoots++
			continue
		}
		for _, p := range paths {
			unique[p] = true
		}
		s.logger.Info("source scanned", "source", source, "files", len(paths))
	}

	if failedRoots == len(sources) {
		return nil, fmt.Errorf("all %d source roots failed to enumerate", failedRoots)
	}

	out := make([]string, 0, len(unique))
	for p := range unique {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// scanRoot lists candidate files under one source directory.
func (s *Scanner) scanRoot(source string) ([]string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", source, err)
	}

	var out []string
	collect := func(path string) {
		candidate := s.verify(path)
		if candidate == "" {
			return
		}
		if s.allowed(candidate) {
			out = append(out, candidate)
		}
	}

	if s.Recursive {
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				// One unreadable subtree does not abort the root.
				s.logger.Warn("walk error", "path", p, "error", err)
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			collect(p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", abs, err)
		}
		return out, nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		collect(filepath.Join(abs, entry.Name()))
	}
	return out, nil
}

// verify runs extension correction on a candidate and returns the path to
// use downstream. Correction failures are logged and the original path is
// kept; discovery never drops a file because renaming it failed.
func (s *Scanner) verify(path string) string {
	corrected, err := NormalizeExtension(path, s.logger)
	if err != nil {
		s.logger.Warn("extension correction failed", "path", path, "error", err)
		return path
	}
	if corrected != path {
		s.logger.Info("extension corrected", "from", path, "to", corrected)
	}
	return corrected
}

// allowed checks the (possibly corrected) extension against the allow-list.
func (s *Scanner) allowed(path string) bool {
	if len(s.Endings) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, e := range s.Endings {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}
