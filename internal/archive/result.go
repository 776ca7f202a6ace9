package archive

import "parc-go/internal/filter"

// Outcome is the terminal state of one candidate file.
type Outcome int

const (
	// OutcomeUnique means the file was new: indexed and archived.
	OutcomeUnique Outcome = iota
	// OutcomeDuplicate means the file's content was already indexed.
	OutcomeDuplicate
	// OutcomeFiltered means the classifier rejected the file before hashing.
	OutcomeFiltered
	// OutcomeFailed means a per-file I/O error; the file was skipped.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnique:
		return "unique"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// DuplicateFile is one entry of the duplicates audit output.
type DuplicateFile struct {
	Path     string
	FileHash string
}

// FilteredFile is one entry of the filtered-files audit output.
type FilteredFile struct {
	Path   string
	Reason filter.Reason
}

// ArchivedFile is one entry of the unique-files audit output.
type ArchivedFile struct {
	SourcePath   string
	ArchivedPath string
	FileHash     string
	Date         Date
}

// ProgressEvent is delivered synchronously on the pipeline goroutine after
// each file completes. Observers must not mutate pipeline state.
type ProgressEvent struct {
	Path    string
	Outcome Outcome
	Done    int
	Total   int
}

// Summary is the end-of-run report. It is produced even when individual
// files failed along the way.
type Summary struct {
	Processed  int
	Unique     int
	Duplicates int
	Filtered   int
	Failed     int

	ArchivedFiles  []ArchivedFile
	DuplicateFiles []DuplicateFile
	FilteredFiles  []FilteredFile

	FilterStats filter.Statistics
}
