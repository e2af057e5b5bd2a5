package entries

import (
	"sync"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// Builder keeps draft entries being edited before they are committed to a
// book. Drafts are addressed by entry id.
type Builder struct {
	mu     sync.Mutex
	drafts map[string]*domain.Entry
}

// NewBuilder creates an empty draft workspace.
func NewBuilder() *Builder {
	return &Builder{drafts: make(map[string]*domain.Entry)}
}

// NewDraft starts an empty two-line journal entry.
func (b *Builder) NewDraft(date time.Time) domain.Entry {
	return b.Put(ManualSkeleton(date))
}

// NewDraftFromTransaction starts a draft pre-filled from a source transaction.
func (b *Builder) NewDraftFromTransaction(tx domain.Transaction, bankAccountID, suspenseAccountID string) domain.Entry {
	return b.Put(FromTransaction(tx, bankAccountID, suspenseAccountID))
}

// Put stores a copy of e as a draft, replacing any draft with the same id.
func (b *Builder) Put(e domain.Entry) domain.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := e.Clone()
	b.drafts[e.ID] = &cp
	return cp.Clone()
}

// Draft returns a copy of the draft.
func (b *Builder) Draft(entryID string) (domain.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.drafts[entryID]
	if !ok {
		return domain.Entry{}, &domain.NotFoundError{Kind: "draft", ID: entryID}
	}
	return e.Clone(), nil
}

// Discard drops a draft. Discarding an unknown draft is a no-op.
func (b *Builder) Discard(entryID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, entryID)
}

// SetLine applies SetLine to a draft.
func (b *Builder) SetLine(entryID, lineID, field, value string) (domain.Entry, error) {
	return b.edit(entryID, func(e *domain.Entry) error {
		return SetLine(e, lineID, field, value)
	})
}

// AddLine appends an empty line to a draft.
func (b *Builder) AddLine(entryID string) (domain.Entry, error) {
	return b.edit(entryID, func(e *domain.Entry) error {
		AddLine(e)
		return nil
	})
}

// RemoveLine removes a line from a draft.
func (b *Builder) RemoveLine(entryID, lineID string) (domain.Entry, error) {
	return b.edit(entryID, func(e *domain.Entry) error {
		return RemoveLine(e, lineID)
	})
}

// SetHeader updates the date, description and reference of a draft.
func (b *Builder) SetHeader(entryID string, date time.Time, description, reference string) (domain.Entry, error) {
	return b.edit(entryID, func(e *domain.Entry) error {
		if !date.IsZero() {
			e.Date = date
		}
		e.Description = description
		e.Reference = reference
		return nil
	})
}

// edit applies fn to a copy and stores it only on success.
func (b *Builder) edit(entryID string, fn func(*domain.Entry) error) (domain.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.drafts[entryID]
	if !ok {
		return domain.Entry{}, &domain.NotFoundError{Kind: "draft", ID: entryID}
	}
	work := cur.Clone()
	if err := fn(&work); err != nil {
		return domain.Entry{}, err
	}
	b.drafts[entryID] = &work
	return work.Clone(), nil
}
