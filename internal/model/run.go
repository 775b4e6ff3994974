package model

import "time"

// RunKind identifies a batch stage.
type RunKind string

const (
	RunKindOverlay  RunKind = "overlay"
	RunKindExposure RunKind = "exposure"
	RunKindScore    RunKind = "score"
	RunKindLoad     RunKind = "load"
	RunKindNarrate  RunKind = "narrate"
)

// RunStatus represents the outcome of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one batch execution and its item counts.
type Run struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	Subject    string     `json:"subject"`
	Status     RunStatus  `json:"status"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Errored    int        `json:"errored"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
