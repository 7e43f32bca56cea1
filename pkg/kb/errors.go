package kb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCorpus rejects a corpus replacement with no entries; the stored
// corpus is left untouched.
var ErrEmptyCorpus = errors.New("refusing to replace corpus with zero tools")

// IngestionFailedError reports a terminal failed ingestion job, carrying
// the reasons the service surfaced.
type IngestionFailedError struct {
	JobID   string
	Reasons []string
}

func (e *IngestionFailedError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("ingestion job %s failed", e.JobID)
	}
	return fmt.Sprintf("ingestion job %s failed: %s", e.JobID, strings.Join(e.Reasons, "; "))
}

// IngestionTimeoutError reports a job that never reached a terminal status
// within the configured window. The job may still be running.
type IngestionTimeoutError struct {
	JobID      string
	LastStatus string
}

func (e *IngestionTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for ingestion job %s (last status: %s)", e.JobID, e.LastStatus)
}
