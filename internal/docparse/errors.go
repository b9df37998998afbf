package docparse

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoMarkdown indicates the vendor returned a parse result without any
// markdown content; nothing downstream can extract from it.
var ErrNoMarkdown = errors.New("no markdown content returned from parsing")

// JobFailedError carries the vendor-reported reason for a failed parse job.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("parse job %s failed: %s", e.JobID, e.Reason)
}

// JobTimeoutError indicates a parse job did not finish within the configured
// wall-clock budget.
type JobTimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("parse job %s did not complete within %s", e.JobID, e.Timeout)
}
