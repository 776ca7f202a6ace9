// Package database implements the persistent fingerprint index on SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"parc-go/internal/archive"
	"parc-go/internal/database/migrations"
)

// SQLiteIndex implements the archive.Index interface using SQLite.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// NewSQLiteIndex opens (and migrates) an index database at path.
// path can be a file path or ":memory:" for an in-memory index.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating index schema: %w", err)
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. This is exported for tools and tests that need a properly
// configured connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps the run-scoped transaction and the
	// binding queries on the same SQLite handle. Required for :memory:,
	// where each pooled connection would otherwise see its own empty
	// database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}

// Binding operations

// InitBinding creates the singleton archive binding row. Fails if the
// index is already bound.
func (s *SQLiteIndex) InitBinding(name, description, archiveLocation string, now time.Time) error {
	version, err := migrations.SchemaVersion(s.db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO archive_binding
			(id, database_name, description, archive_location, created_date, last_used_date, schema_version)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		name, description, archiveLocation,
		now.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339), version)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("index is already bound to an archive")
		}
		return fmt.Errorf("creating archive binding: %w", err)
	}
	return nil
}

// Binding returns the archive binding, or nil if the index has not been
// bound yet.
func (s *SQLiteIndex) Binding() (*archive.Binding, error) {
	var b archive.Binding
	var created, lastUsed string

	err := s.db.QueryRow(`
		SELECT database_name, description, archive_location,
		       video_archive_location, separate_video_archive,
		       created_date, last_used_date, schema_version, total_photos
		FROM archive_binding WHERE id = 1`).
		Scan(&b.DatabaseName, &b.Description, &b.ArchiveLocation,
			&b.VideoArchiveLocation, &b.SeparateVideoArchive,
			&created, &lastUsed, &b.SchemaVersion, &b.TotalPhotos)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not bound
		}
		return nil, fmt.Errorf("reading archive binding: %w", err)
	}

	if b.CreatedDate, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parsing binding created_date %q: %w", created, err)
	}
	if b.LastUsedDate, err = time.Parse(time.RFC3339, lastUsed); err != nil {
		return nil, fmt.Errorf("parsing binding last_used_date %q: %w", lastUsed, err)
	}
	return &b, nil
}

// SetVideoArchive configures a separate archive root for video files.
// An empty location disables the separation.
func (s *SQLiteIndex) SetVideoArchive(location string) error {
	separate := location != ""
	res, err := s.db.Exec(
		"UPDATE archive_binding SET video_archive_location = ?, separate_video_archive = ? WHERE id = 1",
		location, separate)
	if err != nil {
		return fmt.Errorf("updating video archive: %w", err)
	}
	return requireBoundRow(res)
}

// UpdateArchiveLocation rebinds the index to a new archive location. This
// is a deliberate admin operation: the pipeline itself never moves a
// binding, so nothing here verifies the archived files were relocated.
func (s *SQLiteIndex) UpdateArchiveLocation(location string) error {
	res, err := s.db.Exec(
		"UPDATE archive_binding SET archive_location = ? WHERE id = 1", location)
	if err != nil {
		return fmt.Errorf("updating archive location: %w", err)
	}
	return requireBoundRow(res)
}

// TouchLastUsed updates the binding's last_used_date.
func (s *SQLiteIndex) TouchLastUsed(now time.Time) error {
	res, err := s.db.Exec(
		"UPDATE archive_binding SET last_used_date = ? WHERE id = 1",
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("updating last-used date: %w", err)
	}
	return requireBoundRow(res)
}

// RefreshTotalPhotos recounts unique_photos into the binding's
// denormalized counter and returns the new count.
func (s *SQLiteIndex) RefreshTotalPhotos() (int64, error) {
	count, err := s.CountPhotos()
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec("UPDATE archive_binding SET total_photos = ? WHERE id = 1", count)
	if err != nil {
		return 0, fmt.Errorf("updating photo count: %w", err)
	}
	if err := requireBoundRow(res); err != nil {
		return 0, err
	}
	return count, nil
}

// requireBoundRow turns an update that matched no row into a clear error
// about the missing binding.
func requireBoundRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("index is not bound to an archive")
	}
	return nil
}

// Photo queries

// CountPhotos returns the number of unique photo records.
func (s *SQLiteIndex) CountPhotos() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM unique_photos").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting photos: %w", err)
	}
	return count, nil
}

// YearCount is the number of archived photos for one year partition.
type YearCount struct {
	Year  string
	Count int64
}

// CountByYear returns per-year photo counts, oldest year first. The
// sentinel year groups files whose capture date could not be recovered.
func (s *SQLiteIndex) CountByYear() ([]YearCount, error) {
	rows, err := s.db.Query("SELECT create_year, COUNT(*) FROM unique_photos GROUP BY create_year ORDER BY create_year")
	if err != nil {
		return nil, fmt.Errorf("counting photos by year: %w", err)
	}
	defer rows.Close()

	var out []YearCount
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return nil, fmt.Errorf("scanning year count: %w", err)
		}
		out = append(out, yc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating year counts: %w", err)
	}
	return out, nil
}

// Begin opens the run-scoped transaction.
func (s *SQLiteIndex) Begin() (archive.IndexTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &indexTx{db: s.db, tx: tx}, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteIndex) Path() string {
	return s.path
}

// CheckMigrations verifies the index schema is up-to-date.
func (s *SQLiteIndex) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the index at destPath using VACUUM INTO.
func (s *SQLiteIndex) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// indexTx is the run-scoped transaction. Checkpoint commits and
// transparently reopens, so the caller holds one IndexTx for the whole
// run.
type indexTx struct {
	db   *sql.DB
	tx   *sql.Tx
	done bool
}

func (t *indexTx) HasHash(fullHash string) (bool, error) {
	var one int
	err := t.tx.QueryRow("SELECT 1 FROM unique_photos WHERE file_hash = ?", fullHash).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("looking up hash: %w", err)
	}
	return true, nil
}

func (t *indexTx) HashesByPartial(partialHash string) ([]string, error) {
	rows, err := t.tx.Query("SELECT file_hash FROM unique_photos WHERE partial_hash = ?", partialHash)
	if err != nil {
		return nil, fmt.Errorf("looking up partial hash: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating partial matches: %w", err)
	}
	return hashes, nil
}

func (t *indexTx) InsertUniquePhoto(rec archive.PhotoRecord) error {
	partial := sql.NullString{String: rec.PartialHash, Valid: rec.PartialHash != ""}

	_, err := t.tx.Exec(`
		INSERT INTO unique_photos
			(file_hash, partial_hash, partial_hash_bytes, file_size, file_name, create_datetime, create_year, create_month, create_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FileHash, partial, rec.PartialHashBytes, rec.FileSize,
		rec.FileName, rec.CreateDatetime, rec.Year, rec.Month, rec.Day)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("inserting %s: %w", rec.FileHash, archive.ErrDuplicateHash)
		}
		return fmt.Errorf("inserting photo record: %w", err)
	}
	return nil
}

func (t *indexTx) Checkpoint() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}

	tx, err := t.db.Begin()
	if err != nil {
		t.done = true
		return fmt.Errorf("reopening transaction: %w", err)
	}
	t.tx = tx
	return nil
}

func (t *indexTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	t.done = true
	return nil
}

// Rollback discards uncommitted inserts. After Commit it is a no-op, so
// it is safe to defer.
func (t *indexTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// isConstraintErr reports whether err is a SQLite constraint violation
// (primary key, unique, or check).
func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "constraint")
}

// Compile-time check that SQLiteIndex implements the archive.Index interface
var _ archive.Index = (*SQLiteIndex)(nil)
