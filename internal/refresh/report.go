package refresh

import "time"

// RunKind identifies which refresh policy a run executes.
type RunKind string

const (
	// RunFast refreshes the NAV field subset on a short cadence.
	RunFast RunKind = "fast"
	// RunFull re-scrapes all fields plus the factsheet on a long cadence.
	RunFull RunKind = "full"
)

// RunStatus is the terminal status of one refresh run.
type RunStatus string

const (
	// StatusSucceeded: every scheme refreshed.
	StatusSucceeded RunStatus = "succeeded"
	// StatusPartiallyFailed: at least one success and at least one failure.
	StatusPartiallyFailed RunStatus = "partially_failed"
	// StatusFailed: zero successes.
	StatusFailed RunStatus = "failed"
)

// SchemeFailure records one scheme whose refresh attempt exhausted its
// retries. The failure never aborts the batch.
type SchemeFailure struct {
	SchemeCode string `json:"scheme_code,omitempty"`
	URL        string `json:"url"`
	Reason     string `json:"reason"`
}

// Report summarizes a completed refresh run.
type Report struct {
	Kind      RunKind         `json:"kind"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Attempted int             `json:"attempted"`
	Succeeded int             `json:"succeeded"`
	Failures  []SchemeFailure `json:"failures,omitempty"`
	Status    RunStatus       `json:"status"`
}

// finalize derives the run status from the success/failure tallies.
func (r *Report) finalize(started time.Time) {
	r.Duration = time.Since(started)
	switch {
	case r.Succeeded == 0 && len(r.Failures) > 0:
		r.Status = StatusFailed
	case len(r.Failures) > 0:
		r.Status = StatusPartiallyFailed
	default:
		r.Status = StatusSucceeded
	}
}
