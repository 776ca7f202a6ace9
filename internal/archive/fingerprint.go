package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// hashChunkSize is the read size for streamed hashing. Hashing never loads
// a whole file into memory regardless of its size.
const hashChunkSize = 4096

// Fingerprint is a file's content identity. FullHash is mandatory once
// computed; PartialHash is present only when the file met the large-file
// threshold, together with the prefix length used.
type Fingerprint struct {
	FullHash         string
	PartialHash      string
	PartialHashBytes int
}

// Fingerprinter computes streamed SHA-256 content hashes.
//
// Decision rule: when partial hashing is enabled and the file size is at
// least MinFileSize, only the cheap prefix hash is computed up front; the
// full hash follows once the index shows the prefix is worth confirming.
// Small files skip the prefix and hash fully in one pass.
type Fingerprinter struct {
	fsmgr FilesystemManager

	Enabled      bool
	PartialBytes int
	MinFileSize  int64
}

// NewFingerprinter creates a Fingerprinter reading through fsmgr.
func NewFingerprinter(fsmgr FilesystemManager, enabled bool, partialBytes int, minFileSize int64) *Fingerprinter {
	return &Fingerprinter{
		fsmgr:        fsmgr,
		Enabled:      enabled,
		PartialBytes: partialBytes,
		MinFileSize:  minFileSize,
	}
}

// UsePartial reports whether the two-stage path applies to a file of the
// given size.
func (f *Fingerprinter) UsePartial(size int64) bool {
	return f.Enabled && size >= f.MinFileSize
}

// FullHash returns the hex SHA-256 of the entire file.
func (f *Fingerprinter) FullHash(path string) (string, error) {
	r, err := f.fsmgr.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PartialHash returns the hex SHA-256 of the first PartialBytes bytes of
// the file. Files shorter than the prefix hash whatever is there.
func (f *Fingerprinter) PartialHash(path string) (string, error) {
	r, err := f.fsmgr.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, io.LimitReader(r, int64(f.PartialBytes)), buf); err != nil {
		return "", fmt.Errorf("partial hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
