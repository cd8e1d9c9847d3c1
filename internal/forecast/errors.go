package forecast

import (
	"errors"
	"fmt"
)

// ErrPollTimeout reports that the bounded wait ran out before the job reached
// a terminal state. The job keeps running service-side; rerunning with the
// same job name resumes polling it.
var ErrPollTimeout = errors.New("import job wait budget exhausted")

// SubmissionError wraps a failed create call. These are configuration or
// permission failures and are never retried automatically.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *SubmissionError) Unwrap() error { return e.Err }

// JobFailedError is the service's terminal FAILED verdict with its
// diagnostic. Not retried; the input or configuration needs fixing first.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("import job %s failed", e.JobID)
	}
	return fmt.Sprintf("import job %s failed: %s", e.JobID, e.Message)
}

// StatisticsError reports an acceptance-gate violation: a column came back
// from import with null or NaN cells.
type StatisticsError struct {
	Column string
	Nulls  int
	Nans   int
}

func (e *StatisticsError) Error() string {
	return fmt.Sprintf("column %q imported with %d null and %d NaN cells", e.Column, e.Nulls, e.Nans)
}
