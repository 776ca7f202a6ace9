// Package fs provides the real-filesystem implementation of the read
// access the pipeline needs for hashing and stat checks.
package fs

import (
	"io"
	"io/fs"
	"os"

	"parc-go/internal/archive"
)

// OSFilesystemManager performs actual filesystem operations using the os
// package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a filesystem manager operating on the
// real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Stat returns file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Compile-time check that OSFilesystemManager implements the interface.
var _ archive.FilesystemManager = (*OSFilesystemManager)(nil)
