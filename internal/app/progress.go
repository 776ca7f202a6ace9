package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"parc-go/internal/archive"
)

// progressPrinter renders a single-line live counter during a run. Only
// active when the output is a terminal; in pipes and cron jobs the log
// stream is the progress report.
type progressPrinter struct {
	w io.Writer

	unique     int
	duplicates int
	filtered   int
	failed     int
}

// newProgressPrinter returns a printer for f, or nil when f is not a
// terminal.
func newProgressPrinter(f *os.File) *progressPrinter {
	if !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &progressPrinter{w: f}
}

// Observe is the archive.Service progress callback.
func (p *progressPrinter) Observe(ev archive.ProgressEvent) {
	switch ev.Outcome {
	case archive.OutcomeUnique:
		p.unique++
	case archive.OutcomeDuplicate:
		p.duplicates++
	case archive.OutcomeFiltered:
		p.filtered++
	case archive.OutcomeFailed:
		p.failed++
	}

	name := filepath.Base(ev.Path)
	if len(name) > 40 {
		name = name[:37] + "..."
	}
	fmt.Fprintf(p.w, "\r\033[K[%d/%d] new=%d dup=%d filtered=%d failed=%d  %s",
		ev.Done, ev.Total, p.unique, p.duplicates, p.filtered, p.failed, name)
}

// Finish clears the live counter line.
func (p *progressPrinter) Finish() {
	fmt.Fprint(p.w, "\r\033[K")
}
