package archive

import "fmt"

// Sentinel date used when no date information is recoverable for a file.
// Archived under 1000/01/01 so a human can spot and re-date them.
const (
	SentinelYear  = "1000"
	SentinelMonth = "01"
	SentinelDay   = "01"
)

// Date is a file's creation date broken into archive folder components.
// Month and Day are zero-padded two-digit strings, Year is four digits.
type Date struct {
	Year  string
	Month string
	Day   string
}

// SentinelDate returns the fixed fallback date.
func SentinelDate() Date {
	return Date{Year: SentinelYear, Month: SentinelMonth, Day: SentinelDay}
}

// String returns the date in YYYY-MM-DD form, as stored in the index.
func (d Date) String() string {
	return fmt.Sprintf("%s-%s-%s", d.Year, d.Month, d.Day)
}

// DateOracle determines the creation date of a file, preferring embedded
// capture metadata over filesystem timestamps. Implementations never fail:
// when nothing is recoverable they return the sentinel date.
type DateOracle interface {
	CreationDate(path string) Date
}
