package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSuggestEntry asks the extraction service for an entry covering
	// one or more source transactions.
	JobTypeSuggestEntry JobType = "suggest_entry"
	// JobTypeExtractStatement extracts transactions from a statement document.
	JobTypeExtractStatement JobType = "extract_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed and its result is ready to apply.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
	// JobStatusDismissed indicates the workflow was abandoned. Results that
	// arrive later are discarded.
	JobStatusDismissed JobStatus = "dismissed"
	// JobStatusApplied indicates the result was committed to the ledger.
	JobStatusApplied JobStatus = "applied"
)

// Terminal reports whether no further processing will change the job.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusFailed, JobStatusDismissed, JobStatusApplied:
		return true
	}
	return false
}

// Job is one asynchronous extraction request and, once completed, its result.
type Job struct {
	JobID  string    `json:"job_id"`
	Type   JobType   `json:"type"`
	Status JobStatus `json:"status"`

	// Suggestion input.
	TransactionIDs []string `json:"transaction_ids,omitempty"`
	BankAccountID  string   `json:"bank_account_id,omitempty"`
	Memo           string   `json:"memo,omitempty"`

	// Statement input.
	DocumentName string `json:"document_name,omitempty"`
	MIMEType     string `json:"mime_type,omitempty"`
	Data         []byte `json:"-"`
	Text         string `json:"-"`

	// Results.
	Suggestion   *domain.Suggestion   `json:"suggestion,omitempty"`
	Transactions []domain.Transaction `json:"transactions,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Clone returns a copy that shares no slices with j.
func (j *Job) Clone() *Job {
	out := *j
	out.TransactionIDs = append([]string(nil), j.TransactionIDs...)
	out.Data = append([]byte(nil), j.Data...)
	out.Transactions = append([]domain.Transaction(nil), j.Transactions...)
	if j.Suggestion != nil {
		s := *j.Suggestion
		s.Lines = append([]domain.SuggestedLine(nil), j.Suggestion.Lines...)
		out.Suggestion = &s
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// ClearResult drops any result carried by the job.
func (j *Job) ClearResult() {
	j.Suggestion = nil
	j.Transactions = nil
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job, assigning an id if it has none.
	Publish(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job, storing any result on it. It should return an
// error if the job failed; wrap the error with Permanent to skip retries.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore defines the interface for storing and retrieving job state.
type JobStore interface {
	// SaveJob saves or updates a job's state. A dismissed job stays
	// dismissed and never regains a result.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Type   JobType
	Status JobStatus
	Limit  int
	Offset int
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
