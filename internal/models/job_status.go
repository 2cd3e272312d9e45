package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobStatus is the canonical lifecycle state of an analysis job
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusResearching JobStatus = "researching"
	JobStatusAnalyzing   JobStatus = "analyzing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// legacyStatusRunning was written by older deployments for an analyzing job
const legacyStatusRunning = "running"

// ParseJobStatus canonicalizes an incoming status string. Every status that
// crosses a storage or API boundary goes through here, so the rest of the code
// only ever sees the canonical values.
func ParseJobStatus(s string) (JobStatus, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case legacyStatusRunning:
		return JobStatusAnalyzing, nil
	case string(JobStatusPending), string(JobStatusResearching), string(JobStatusAnalyzing),
		string(JobStatusCompleted), string(JobStatusFailed):
		return JobStatus(v), nil
	default:
		return "", fmt.Errorf("unknown job status: %q", s)
	}
}

// IsActive reports whether a job in this status counts against the concurrency budget
func (s JobStatus) IsActive() bool {
	return s == JobStatusResearching || s == JobStatusAnalyzing
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ActiveStatuses lists the statuses that occupy an admission slot
func ActiveStatuses() []JobStatus {
	return []JobStatus{JobStatusResearching, JobStatusAnalyzing}
}

// UnmarshalJSON canonicalizes persisted and submitted statuses, mapping the
// legacy "running" value onto analyzing.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseJobStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
