package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/accounts"
	"github.com/dvloznov/bookkeeper/internal/domain"
)

// ErrNoStore is returned by period operations on a Book without a store.
var ErrNoStore = errors.New("no period store configured")

// Snapshot returns a copy of the full current state, including unsaved
// account drafts.
func (b *Book) Snapshot() domain.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotOf(b.st, b.st.accounts.List())
}

// Restore replaces the whole state with snap. A snapshot that breaks the
// ledger invariants is rejected and the current state is kept.
func (b *Book) Restore(snap domain.Snapshot) error {
	next, err := stateFromSnapshot(snap)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = next
	b.savedAccounts = next.accounts.List()
	if snap.PeriodID != "" {
		b.periodID = snap.PeriodID
	}
	return nil
}

// SavePeriod writes the current state under periodID. Saving is refused
// while the account directory has validation errors.
func (b *Book) SavePeriod(ctx context.Context, periodID string) error {
	if b.repo == nil {
		return ErrNoStore
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := accounts.AsValidationError(b.st.accounts.ValidateAll()); err != nil {
		return err
	}
	accts := b.st.accounts.List()
	prevID := b.periodID
	b.periodID = periodID
	if err := b.repo.SavePeriod(ctx, periodID, b.snapshotOf(b.st, accts)); err != nil {
		b.periodID = prevID
		return err
	}
	b.savedAccounts = accts
	b.log.Info().Str("period_id", periodID).Msg("period saved")
	return nil
}

// LoadPeriod replaces the current state with the bundle saved under
// periodID. A missing or corrupt bundle leaves the current state untouched.
func (b *Book) LoadPeriod(ctx context.Context, periodID string) error {
	if b.repo == nil {
		return ErrNoStore
	}
	snap, err := b.repo.LoadPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	next, err := stateFromSnapshot(snap)
	if err != nil {
		return &domain.ExternalServiceError{Service: "store", Err: fmt.Errorf("LoadPeriod: %s: %w", periodID, err)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = next
	b.periodID = periodID
	b.savedAccounts = next.accounts.List()
	b.log.Info().Str("period_id", periodID).Int("entries", len(next.entries)).Msg("period loaded")
	return nil
}

// DeletePeriod removes the bundle saved under periodID. The in-memory state
// is not changed.
func (b *Book) DeletePeriod(ctx context.Context, periodID string) error {
	if b.repo == nil {
		return ErrNoStore
	}
	if err := b.repo.DeletePeriod(ctx, periodID); err != nil {
		return err
	}
	b.log.Info().Str("period_id", periodID).Msg("period deleted")
	return nil
}

// ListPeriods returns the ids of all saved periods.
func (b *Book) ListPeriods(ctx context.Context) ([]string, error) {
	if b.repo == nil {
		return nil, ErrNoStore
	}
	return b.repo.ListPeriods(ctx)
}

func stateFromSnapshot(snap domain.Snapshot) (*state, error) {
	s := &state{
		accounts: accounts.FromAccounts(snap.Accounts),
		txs:      make([]domain.Transaction, len(snap.Transactions)),
		entries:  make([]domain.Entry, len(snap.Entries)),
		links:    make(map[string]domain.Link, len(snap.Links)),
	}
	copy(s.txs, snap.Transactions)
	for i, e := range snap.Entries {
		s.entries[i] = e.Clone()
	}
	for _, l := range snap.Links {
		if _, dup := s.links[l.TransactionID]; dup {
			return nil, fmt.Errorf("%w: transaction %s has more than one link", ErrInconsistent, l.TransactionID)
		}
		s.links[l.TransactionID] = l
	}
	if err := checkInvariants(s); err != nil {
		return nil, err
	}
	return s, nil
}
