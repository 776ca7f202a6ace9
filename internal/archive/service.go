package archive

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"parc-go/internal/filter"
)

// Classifier decides whether a candidate is a genuine photograph.
type Classifier interface {
	Classify(path string) filter.Verdict
	Statistics() filter.Statistics
}

// Discoverer enumerates candidate files under the configured source roots.
type Discoverer interface {
	Discover(sources []string) ([]string, error)
}

// Converter is an optional post-placement hook for media format
// conversion (for example HEIC to JPEG). It runs after a unique file has
// been archived and indexed. It must never remove or alter the archived
// original; a failure is logged and does not affect the file's outcome.
type Converter interface {
	Convert(archivedPath string) error
}

// Service runs the ingest pipeline: discover, classify, fingerprint,
// index, archive. Files are processed strictly one at a time; the index
// transaction is exclusively owned by the run.
type Service struct {
	index       Index
	discoverer  Discoverer
	classifier  Classifier
	fingerprint *Fingerprinter
	placer      Placer
	oracle      DateOracle
	logger      Logger
	clock       Clock

	// BatchSize is the checkpoint cadence: commit after every BatchSize
	// new unique inserts. Zero commits only at end of run.
	BatchSize int

	// Progress, when set, fires synchronously after each file. Observers
	// must treat the event as read-only.
	Progress func(ProgressEvent)

	// Converter, when set, runs on each newly archived file.
	Converter Converter
}

// NewService creates a Service with the provided dependencies.
func NewService(index Index, discoverer Discoverer, classifier Classifier, fingerprint *Fingerprinter, placer Placer, oracle DateOracle, logger Logger, clock Clock, batchSize int) *Service {
	return &Service{
		index:       index,
		discoverer:  discoverer,
		classifier:  classifier,
		fingerprint: fingerprint,
		placer:      placer,
		oracle:      oracle,
		logger:      logger,
		clock:       clock,
		BatchSize:   batchSize,
	}
}

// Run processes every candidate under sources and returns the run summary.
//
// Cancellation is cooperative: ctx is checked between files, never inside
// a hash computation, and an in-flight partial batch is committed before
// returning. Re-running over the same inputs is idempotent: previously
// committed hashes are reported as duplicates with zero new inserts.
func (s *Service) Run(ctx context.Context, sources []string) (*Summary, error) {
	if err := s.index.TouchLastUsed(s.clock.Now()); err != nil {
		return nil, fmt.Errorf("updating binding last-used date: %w", err)
	}

	files, err := s.discoverer.Discover(sources)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	s.logger.Info("discovery complete", "candidates", len(files))

	tx, err := s.index.Begin()
	if err != nil {
		return nil, fmt.Errorf("opening index transaction: %w", err)
	}
	defer tx.Rollback()

	summary := &Summary{}
	// Full hashes inserted earlier in this run, covering same-batch
	// duplicates on the direct-lookup path.
	seen := make(map[string]bool)
	uncommitted := 0

	for i, path := range files {
		if ctx.Err() != nil {
			s.logger.Warn("run stopped", "processed", summary.Processed, "remaining", len(files)-i)
			break
		}

		outcome := s.processOne(tx, path, seen, summary)
		summary.Processed++
		if outcome == OutcomeUnique {
			uncommitted++
			if s.BatchSize > 0 && uncommitted >= s.BatchSize {
				if err := tx.Checkpoint(); err != nil {
					return nil, fmt.Errorf("checkpoint commit: %w", err)
				}
				s.logger.Info("checkpoint committed", "inserts", uncommitted, "processed", summary.Processed)
				uncommitted = 0
			}
		}

		if s.Progress != nil {
			s.Progress(ProgressEvent{Path: path, Outcome: outcome, Done: i + 1, Total: len(files)})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("final commit: %w", err)
	}

	total, err := s.index.RefreshTotalPhotos()
	if err != nil {
		return nil, fmt.Errorf("refreshing photo count: %w", err)
	}

	summary.FilterStats = s.classifier.Statistics()
	s.logger.Info("run complete",
		"processed", summary.Processed,
		"unique", summary.Unique,
		"duplicates", summary.Duplicates,
		"filtered", summary.Filtered,
		"failed", summary.Failed,
		"archive_total", total,
	)
	return summary, nil
}

// processOne walks a single candidate through the state machine and
// records it in the summary. Per-file errors never abort the run; they
// are logged and counted as failures.
func (s *Service) processOne(tx IndexTx, path string, seen map[string]bool, summary *Summary) Outcome {
	verdict := s.classifier.Classify(path)
	if !verdict.Pass {
		s.logger.Info("file filtered", "path", path, "reason", string(verdict.Reason))
		summary.Filtered++
		summary.FilteredFiles = append(summary.FilteredFiles, FilteredFile{Path: path, Reason: verdict.Reason})
		return OutcomeFiltered
	}

	info, err := s.fingerprint.fsmgr.Stat(path)
	if err != nil {
		return s.fail(summary, path, fmt.Errorf("stat: %w", err))
	}
	size := info.Size()

	fp, dup, err := s.resolveFingerprint(tx, path, size, seen)
	if err != nil {
		return s.fail(summary, path, err)
	}
	if dup {
		s.logger.Info("duplicate confirmed", "path", path, "hash", fp.FullHash)
		summary.Duplicates++
		summary.DuplicateFiles = append(summary.DuplicateFiles, DuplicateFile{Path: path, FileHash: fp.FullHash})
		return OutcomeDuplicate
	}

	// UniqueNew: archive the file, then record its fingerprint. A crash
	// between the two is healed on re-run, when the unique path finds the
	// identical file already at its destination and skips the write.
	date := s.oracle.CreationDate(path)

	placement, err := s.placer.Place(path, date)
	if err != nil {
		return s.fail(summary, path, fmt.Errorf("archiving: %w", err))
	}

	rec := PhotoRecord{
		FileHash:         fp.FullHash,
		PartialHash:      fp.PartialHash,
		PartialHashBytes: fp.PartialHashBytes,
		FileSize:         size,
		FileName:         placement.Path,
		CreateDatetime:   date.String(),
		Year:             date.Year,
		Month:            date.Month,
		Day:              date.Day,
	}
	if err := tx.InsertUniquePhoto(rec); err != nil {
		if errors.Is(err, ErrDuplicateHash) {
			// Lost a race with another insert; an expected integrity
			// event, reported as a duplicate rather than an error.
			s.logger.Warn("insert collided with existing hash", "path", path, "hash", fp.FullHash)
			summary.Duplicates++
			summary.DuplicateFiles = append(summary.DuplicateFiles, DuplicateFile{Path: path, FileHash: fp.FullHash})
			return OutcomeDuplicate
		}
		return s.fail(summary, path, fmt.Errorf("indexing: %w", err))
	}
	seen[fp.FullHash] = true

	summary.Unique++
	summary.ArchivedFiles = append(summary.ArchivedFiles, ArchivedFile{
		SourcePath:   path,
		ArchivedPath: placement.Path,
		FileHash:     fp.FullHash,
		Date:         date,
	})

	if s.Converter != nil {
		if err := s.Converter.Convert(placement.Path); err != nil {
			s.logger.Warn("post-placement conversion failed", "path", placement.Path, "error", err)
		}
	}
	return OutcomeUnique
}

// resolveFingerprint routes the candidate by size and decides whether its
// content is already known. Returns the fingerprint to record and whether
// the file is a confirmed duplicate.
func (s *Service) resolveFingerprint(tx IndexTx, path string, size int64, seen map[string]bool) (Fingerprint, bool, error) {
	if s.fingerprint.UsePartial(size) {
		// Stage 1: cheap prefix hash against the partial index.
		partial, err := s.fingerprint.PartialHash(path)
		if err != nil {
			return Fingerprint{}, false, err
		}

		candidates, err := tx.HashesByPartial(partial)
		if err != nil {
			return Fingerprint{}, false, fmt.Errorf("partial lookup: %w", err)
		}

		full, err := s.fingerprint.FullHash(path)
		if err != nil {
			return Fingerprint{}, false, err
		}
		fp := Fingerprint{FullHash: full, PartialHash: partial, PartialHashBytes: s.fingerprint.PartialBytes}

		if len(candidates) == 0 {
			// Provably unique by prefix; the full hash is still stored
			// for the permanent record.
			return fp, false, nil
		}
		if slices.Contains(candidates, full) {
			return fp, true, nil
		}
		// Prefix collision with differing content: rare but legitimate,
		// never a duplicate.
		s.logger.Info("partial hash collision", "path", path, "partial", partial)
		return fp, false, nil
	}

	// Small-file path: full hash directly against the primary key.
	full, err := s.fingerprint.FullHash(path)
	if err != nil {
		return Fingerprint{}, false, err
	}
	fp := Fingerprint{FullHash: full}

	exists, err := tx.HasHash(full)
	if err != nil {
		return Fingerprint{}, false, fmt.Errorf("hash lookup: %w", err)
	}
	if exists || seen[full] {
		return fp, true, nil
	}
	return fp, false, nil
}

func (s *Service) fail(summary *Summary, path string, err error) Outcome {
	s.logger.Error("file skipped", "path", path, "error", err)
	summary.Failed++
	return OutcomeFailed
}
