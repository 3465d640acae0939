package entity

import "time"

// RunSummary describes the outcome of a single harvest run.
type RunSummary struct {
	RunID      string
	PageURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Groups     int
	Images     int
	Bytes      int64
	DryRun     bool
}
