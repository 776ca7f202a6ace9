package archive

import (
	"io"
	"io/fs"
)

// FilesystemManager abstracts read access to candidate files so the
// fingerprinter and service can be tested without touching a real disk.
type FilesystemManager interface {
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns file info for a path.
	Stat(path string) (fs.FileInfo, error)
}
