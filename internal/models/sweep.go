package models

import "time"

// SweepOptions are the limits of one admission sweep
type SweepOptions struct {
	Now               time.Time
	MaxConcurrentJobs int
	TimeoutSeconds    int
	RetryCap          int
}

// Normalize sets Now to the current UTC time when unset and clamps negative
// limits to zero. A zero limit is kept: no slots, an immediate timeout or no
// requeues. Defaults belong to the config layer.
func (o SweepOptions) Normalize() SweepOptions {
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
	if o.MaxConcurrentJobs < 0 {
		o.MaxConcurrentJobs = 0
	}
	if o.TimeoutSeconds < 0 {
		o.TimeoutSeconds = 0
	}
	if o.RetryCap < 0 {
		o.RetryCap = 0
	}
	return o
}

// Timeout is TimeoutSeconds as a duration
func (o SweepOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// SweepJobError is a per-job problem recorded during a sweep
type SweepJobError struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// SweepReport summarizes one admission sweep
type SweepReport struct {
	CheckedRunning int             `json:"checked_running"`
	TimedOut       int             `json:"timed_out"`
	Completed      int             `json:"completed"`
	Started        int             `json:"started"`
	Retried        int             `json:"retried"`
	Errors         []SweepJobError `json:"errors"`
	Message        string          `json:"message,omitempty"`
}

// SweepNoSlotsMessage is reported when the concurrency budget is exhausted
const SweepNoSlotsMessage = "Max concurrent jobs reached"

func (r *SweepReport) AddError(jobID string, err string) {
	r.Errors = append(r.Errors, SweepJobError{JobID: jobID, Error: err})
}
