package ledger

import "time"

// Run kinds recorded in the ledger.
const (
	KindGenerate = "generate"
	KindFilter   = "filter"
)

// Run is one recorded harness invocation.
type Run struct {
	ID         string
	Kind       string
	Model      string
	Dataset    string
	Workers    int
	StartedAt  time.Time
	FinishedAt *time.Time
	Total      int
	Completed  int
	Skipped    int
	Failed     int
	Merged     bool
}

// Drop is one removed filter line with its reason.
type Drop struct {
	LineIdx int
	Reason  string
}
