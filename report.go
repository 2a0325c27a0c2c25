package victims

import (
	"github.com/google/uuid"
)

// Report is the result of scanning one or more paths.
//
// A Report with Failures is incomplete: at least one artifact could not be
// introspected or fingerprinted, so it's unknown whether it's vulnerable.
// Callers must not treat an incomplete Report as a clean scan.
type Report struct {
	// ID identifies the scan in logs.
	ID uuid.UUID `json:"id"`
	// Scanned is the number of packages discovered.
	Scanned int `json:"scanned"`
	// Formats is the set of formats observed.
	Formats FormatSet `json:"formats"`
	// Matches holds one entry per (package, record) pair.
	Matches []Match `json:"matches"`
	// Failures holds one entry per artifact that could not be processed.
	Failures []Failure `json:"failures"`
}

// NewReport returns an empty Report with a fresh ID.
func NewReport() *Report {
	return &Report{ID: uuid.New()}
}

// Complete reports whether every discovered artifact was matched against the
// corpus.
func (r *Report) Complete() bool {
	return len(r.Failures) == 0
}

// Vulnerable reports whether any artifact matched a corpus record.
func (r *Report) Vulnerable() bool {
	return len(r.Matches) != 0
}

// Merge appends the contents of "o" to the receiver, keeping the receiver's ID.
func (r *Report) Merge(o *Report) {
	r.Scanned += o.Scanned
	r.Formats.Merge(o.Formats)
	r.Matches = append(r.Matches, o.Matches...)
	r.Failures = append(r.Failures, o.Failures...)
}
