package models

import (
	"time"
)

// StepReport summarizes how one workflow step ended in a run.
type StepReport struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Source   string        `json:"source,omitempty"`  // Where the data came from for fetch steps
	Message  string        `json:"message,omitempty"` // Rate limit or fallback notes
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}
