package models

import "time"

// RunKind selects the analysis performed by a run
type RunKind string

const (
	RunKindCount    RunKind = "count"
	RunKindBirdsEye RunKind = "birdseye"
	RunKindFrame    RunKind = "frame"
)

// String returns the string representation of RunKind
func (k RunKind) String() string {
	return string(k)
}

// IsValid checks if the run kind is valid
func (k RunKind) IsValid() bool {
	switch k {
	case RunKindCount, RunKindBirdsEye, RunKindFrame:
		return true
	default:
		return false
	}
}

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// String returns the string representation of RunStatus
func (s RunStatus) String() string {
	return string(s)
}

// Done reports whether the run has reached a final state
func (s RunStatus) Done() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCanceled
}

// Run is one analysis of one video file
type Run struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	Video      string     `json:"video"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Frames     int        `json:"frames"`    // Frames processed in the main pass
	Crossings  int        `json:"crossings"` // Count runs only
	Output     string     `json:"output,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunRequest for API
type RunRequest struct {
	Kind  RunKind `json:"kind" binding:"required"`
	Video string  `json:"video" binding:"required"`
}

// RunResult is what a finished analysis reports back to its run
type RunResult struct {
	Frames    int
	Crossings int
	Output    string
}
