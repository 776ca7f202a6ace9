package archive

import (
	"errors"
	"time"
)

// ErrDuplicateHash reports an insert that collided with an existing
// file_hash primary key. This is an expected integrity event signaling a
// true duplicate, not a failure.
var ErrDuplicateHash = errors.New("file hash already indexed")

// PhotoRecord is a persisted unique-photo row. Created exactly once per
// distinct FileHash; never updated or deleted by the engine.
type PhotoRecord struct {
	FileHash string
	// PartialHash is set only when the file met the large-file threshold.
	// PartialHashBytes records the prefix length used at insert time;
	// historical rows may carry a different length than the current run.
	PartialHash      string
	PartialHashBytes int
	FileSize         int64
	// FileName is the archived path of the file.
	FileName       string
	CreateDatetime string
	Year           string
	Month          string
	Day            string
}

// Binding is the singleton row tying one index database to one archive
// location. Set once at creation; only an explicit migration may change it.
type Binding struct {
	DatabaseName         string
	Description          string
	ArchiveLocation      string
	VideoArchiveLocation string
	SeparateVideoArchive bool
	CreatedDate          time.Time
	LastUsedDate         time.Time
	SchemaVersion        int
	TotalPhotos          int64
}

// Index is the persistent fingerprint store.
//
// Lookups and inserts during a run go through an IndexTx so that batched
// commits bound data loss on crash. The connection is exclusively owned by
// the pipeline for the run's duration.
type Index interface {
	// Binding returns the archive binding, or nil if the database has not
	// been bound to an archive location yet.
	Binding() (*Binding, error)

	// TouchLastUsed updates the binding's last_used_date.
	TouchLastUsed(now time.Time) error

	// RefreshTotalPhotos recounts unique_photos and stores the result in
	// the binding's denormalized counter. Returns the new count.
	RefreshTotalPhotos() (int64, error)

	// CountPhotos returns the number of unique photo records.
	CountPhotos() (int64, error)

	// Begin opens the run-scoped transaction.
	Begin() (IndexTx, error)

	// Close closes the underlying connection.
	Close() error
}

// IndexTx is a run-scoped transaction over the index. Checkpoint commits
// accumulated inserts and transparently opens a fresh transaction, so a
// crash loses at most the uncommitted remainder of the current batch.
type IndexTx interface {
	// HasHash reports whether a full hash is already indexed. Sees rows
	// inserted earlier in this transaction.
	HasHash(fullHash string) (bool, error)

	// HashesByPartial returns all full hashes sharing a partial hash.
	HashesByPartial(partialHash string) ([]string, error)

	// InsertUniquePhoto inserts a new record. A primary-key collision is
	// returned as ErrDuplicateHash.
	InsertUniquePhoto(rec PhotoRecord) error

	// Checkpoint commits and begins a new transaction.
	Checkpoint() error

	// Commit commits the final batch and ends the transaction.
	Commit() error

	// Rollback discards uncommitted inserts. Safe to call after Commit.
	Rollback() error
}
