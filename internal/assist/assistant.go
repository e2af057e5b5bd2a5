// Package assist runs extraction requests in the background and applies
// their results to a Book. Results are applied only through Book operations,
// which re-validate ledger state at commit time; a workflow dismissed before
// its result arrives never applies anything.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/entries"
	"github.com/dvloznov/bookkeeper/internal/extraction"
	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/rs/zerolog"
)

var (
	// ErrNotReady is returned when applying a job that has not completed.
	ErrNotReady = errors.New("job has no result yet")
	// ErrDismissed is returned when applying a dismissed job.
	ErrDismissed = errors.New("job was dismissed")
	// ErrApplied is returned when applying a job twice.
	ErrApplied = errors.New("job was already applied")
)

// ApplyResult reports what Apply committed.
type ApplyResult struct {
	Entry  *domain.Entry            `json:"entry,omitempty"`
	Import *reconcile.ImportResult `json:"import,omitempty"`
}

// Assistant connects a Book, an Extractor and a job queue.
type Assistant struct {
	mu        sync.Mutex
	book      *reconcile.Book
	extractor extraction.Extractor
	pub       jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// New returns an Assistant. Handle must be registered with the queue that
// pub publishes to.
func New(book *reconcile.Book, extractor extraction.Extractor, pub jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *Assistant {
	return &Assistant{book: book, extractor: extractor, pub: pub, store: store, log: log}
}

// RequestSuggestion enqueues an entry suggestion for the given source
// transactions, or for memo alone when txIDs is empty. The transactions must
// currently be unlinked; this is checked again when the result is applied.
func (a *Assistant) RequestSuggestion(ctx context.Context, txIDs []string, bankAccountID, memo string) (*jobs.Job, error) {
	verr := &domain.ValidationError{}
	if len(txIDs) == 0 && strings.TrimSpace(memo) == "" {
		verr.Add(domain.FieldError{Entity: "suggestion", Field: "transactionIds", Message: "transactions or a memo are required"})
	}
	if len(txIDs) > 0 {
		if bankAccountID == "" {
			verr.Add(domain.FieldError{Entity: "suggestion", Field: "bankAccountId", Message: "bank account is required"})
		} else if _, ok := a.book.Account(bankAccountID); !ok {
			verr.Add(domain.FieldError{Entity: "suggestion", Field: "bankAccountId", Message: fmt.Sprintf("account %s does not exist", bankAccountID)})
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	for _, id := range txIDs {
		tx, err := a.book.Transaction(id)
		if err != nil {
			return nil, err
		}
		if tx.Status == domain.StatusLinked {
			link, _ := a.book.Link(id)
			return nil, &domain.AlreadyLinkedError{TransactionID: id, EntryID: link.EntryID}
		}
	}

	job := &jobs.Job{
		Type:           jobs.JobTypeSuggestEntry,
		TransactionIDs: append([]string(nil), txIDs...),
		BankAccountID:  bankAccountID,
		Memo:           memo,
	}
	if err := a.pub.Publish(ctx, job); err != nil {
		return nil, fmt.Errorf("RequestSuggestion: publish: %w", err)
	}
	a.log.Info().Str("job_id", job.JobID).Strs("transaction_ids", txIDs).Msg("suggestion requested")
	return job.Clone(), nil
}

// RequestStatementExtraction enqueues extraction of a statement document.
func (a *Assistant) RequestStatementExtraction(ctx context.Context, doc extraction.Document) (*jobs.Job, error) {
	if len(doc.Data) == 0 && strings.TrimSpace(doc.Text) == "" {
		return nil, &domain.ValidationError{Errors: []domain.FieldError{{
			Entity: "document", Field: "content", Message: "document is empty",
		}}}
	}
	job := &jobs.Job{
		Type:         jobs.JobTypeExtractStatement,
		DocumentName: doc.Name,
		MIMEType:     doc.MIMEType,
		Data:         doc.Data,
		Text:         doc.Text,
	}
	if err := a.pub.Publish(ctx, job); err != nil {
		return nil, fmt.Errorf("RequestStatementExtraction: publish: %w", err)
	}
	a.log.Info().Str("job_id", job.JobID).Str("document", doc.Name).Msg("statement extraction requested")
	return job.Clone(), nil
}

// Handle runs one job. It is the queue's JobHandler. Errors that a retry
// cannot fix are marked permanent.
func (a *Assistant) Handle(ctx context.Context, job *jobs.Job) error {
	var err error
	switch job.Type {
	case jobs.JobTypeSuggestEntry:
		err = a.suggest(ctx, job)
	case jobs.JobTypeExtractStatement:
		err = a.extract(ctx, job)
	default:
		err = jobs.Permanent(fmt.Errorf("unknown job type %q", job.Type))
	}
	if errors.Is(err, extraction.ErrQuotaExceeded) || errors.Is(err, domain.ErrNotFound) {
		return jobs.Permanent(err)
	}
	return err
}

func (a *Assistant) suggest(ctx context.Context, job *jobs.Job) error {
	txs := make([]domain.Transaction, 0, len(job.TransactionIDs))
	for _, id := range job.TransactionIDs {
		tx, err := a.book.Transaction(id)
		if err != nil {
			return err
		}
		txs = append(txs, tx)
	}

	req := extraction.SuggestionRequest{
		Accounts:     a.book.Accounts(),
		Transactions: txs,
		Memo:         job.Memo,
	}
	if bank, ok := a.book.Account(job.BankAccountID); ok {
		req.BankAccountCode = bank.Code
	}

	s, err := a.extractor.SuggestEntry(ctx, req, bookLookup{a.book})
	if err != nil {
		return fmt.Errorf("suggest: %w", err)
	}
	job.Suggestion = &s
	return nil
}

func (a *Assistant) extract(ctx context.Context, job *jobs.Job) error {
	txs, err := a.extractor.ExtractStatement(ctx, extraction.Document{
		Name:     job.DocumentName,
		MIMEType: job.MIMEType,
		Data:     job.Data,
		Text:     job.Text,
	})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	job.Transactions = txs
	return nil
}

// Apply commits the result of a completed job. A suggestion over one
// transaction maps 1:1 into an entry; over several it is consolidated with a
// netted bank line. Either way the entry is posted with PostEntry, so a
// transaction linked while the job was running fails with AlreadyLinkedError
// and nothing is applied. A statement result is imported idempotently.
func (a *Assistant) Apply(ctx context.Context, jobID string) (ApplyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return ApplyResult{}, err
	}
	switch job.Status {
	case jobs.JobStatusCompleted:
	case jobs.JobStatusDismissed:
		return ApplyResult{}, ErrDismissed
	case jobs.JobStatusApplied:
		return ApplyResult{}, ErrApplied
	default:
		return ApplyResult{}, fmt.Errorf("Apply: job %s is %s: %w", jobID, job.Status, ErrNotReady)
	}

	var res ApplyResult
	switch job.Type {
	case jobs.JobTypeSuggestEntry:
		e, err := a.applySuggestion(ctx, job)
		if err != nil {
			return ApplyResult{}, err
		}
		res.Entry = &e
	case jobs.JobTypeExtractStatement:
		imp, err := a.book.ImportTransactions(ctx, job.Transactions)
		if err != nil {
			return ApplyResult{}, err
		}
		res.Import = &imp
	default:
		return ApplyResult{}, fmt.Errorf("Apply: unknown job type %q", job.Type)
	}

	if err := a.store.UpdateJobStatus(ctx, jobID, jobs.JobStatusApplied, ""); err != nil {
		a.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to mark job applied")
	}
	a.log.Info().Str("job_id", jobID).Str("job_type", string(job.Type)).Msg("job applied")
	return res, nil
}

func (a *Assistant) applySuggestion(ctx context.Context, job *jobs.Job) (domain.Entry, error) {
	if job.Suggestion == nil {
		return domain.Entry{}, fmt.Errorf("Apply: job %s: %w", job.JobID, ErrNotReady)
	}

	var e domain.Entry
	if len(job.TransactionIDs) > 1 {
		txs := make([]domain.Transaction, 0, len(job.TransactionIDs))
		for _, id := range job.TransactionIDs {
			tx, err := a.book.Transaction(id)
			if err != nil {
				return domain.Entry{}, err
			}
			txs = append(txs, tx)
		}
		var err error
		e, err = entries.Consolidate(txs, job.BankAccountID, a.book.Suspense().ID, job.Suggestion)
		if err != nil {
			return domain.Entry{}, err
		}
	} else {
		e = entries.FromSuggestion(*job.Suggestion)
	}

	return a.book.PostEntry(ctx, e, job.TransactionIDs, job.BankAccountID)
}

// Dismiss abandons a job. A result that arrives afterwards is discarded;
// the in-flight request itself is not aborted.
func (a *Assistant) Dismiss(ctx context.Context, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == jobs.JobStatusApplied {
		return ErrApplied
	}
	if err := a.store.UpdateJobStatus(ctx, jobID, jobs.JobStatusDismissed, ""); err != nil {
		return fmt.Errorf("Dismiss: %w", err)
	}
	a.log.Info().Str("job_id", jobID).Msg("job dismissed")
	return nil
}

// Job returns the current state of a job.
func (a *Assistant) Job(ctx context.Context, jobID string) (*jobs.Job, error) {
	return a.store.GetJob(ctx, jobID)
}

// Jobs lists jobs matching filter.
func (a *Assistant) Jobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.Job, error) {
	return a.store.ListJobs(ctx, filter)
}

// bookLookup adapts a Book to extraction.AccountLookup.
type bookLookup struct{ b *reconcile.Book }

func (l bookLookup) Resolve(id string) bool {
	_, ok := l.b.Account(id)
	return ok
}

func (l bookLookup) ByCode(code string) (domain.Account, bool) {
	return l.b.AccountByCode(code)
}
