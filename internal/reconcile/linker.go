package reconcile

import (
	"context"
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/entries"
	"github.com/google/uuid"
)

// BulkResult reports the outcome of BulkPost.
type BulkResult struct {
	Posted   int      `json:"posted"`
	Skipped  int      `json:"skipped"`
	EntryIDs []string `json:"entryIds"`
	// Unpostable lists transactions skipped because no balanced entry can
	// be built for them, such as zero amounts carried in an old bundle.
	Unpostable []string `json:"unpostable,omitempty"`
}

// PostEntry validates e and commits it together with one link per source
// transaction in txIDs. An empty txIDs commits a manual entry with no links.
// Transaction state is re-checked at commit time, so a transaction linked
// after the entry was drafted is rejected with AlreadyLinkedError.
func (b *Book) PostEntry(ctx context.Context, e domain.Entry, txIDs []string, bankAccountID string) (domain.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Kind == "" {
		e.Kind = domain.KindJournal
	}
	e = e.Clone()

	err := b.mutate(ctx, "post_entry", func(s *state) error {
		if s.entryIndex(e.ID) >= 0 {
			return &domain.ValidationError{Errors: []domain.FieldError{{
				Entity: "entry", ID: e.ID, Field: "id", Message: "entry already exists",
			}}}
		}
		if err := entries.ValidateForSave(e, s.accounts); err != nil {
			return err
		}
		if err := checkBankAccount(s, bankAccountID); err != nil {
			return err
		}
		s.entries = append(s.entries, e)

		seen := make(map[string]bool, len(txIDs))
		for _, txID := range txIDs {
			if seen[txID] {
				continue
			}
			seen[txID] = true
			if _, err := b.linkIn(s, txID, e.ID, bankAccountID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Entry{}, err
	}

	b.log.Info().Str("entry_id", e.ID).Strs("transaction_ids", txIDs).Msg("entry posted")
	return e.Clone(), nil
}

// PostLink links an existing entry to a source transaction. The snapshot is
// taken from the transaction record at commit time.
func (b *Book) PostLink(ctx context.Context, txID, entryID, bankAccountID string) (domain.Link, error) {
	var link domain.Link
	err := b.mutate(ctx, "post_link", func(s *state) error {
		if s.entryIndex(entryID) < 0 {
			return &domain.NotFoundError{Kind: "entry", ID: entryID}
		}
		if err := checkBankAccount(s, bankAccountID); err != nil {
			return err
		}
		var err error
		link, err = b.linkIn(s, txID, entryID, bankAccountID)
		return err
	})
	if err != nil {
		return domain.Link{}, err
	}
	b.log.Info().Str("transaction_id", txID).Str("entry_id", entryID).Msg("transaction linked")
	return link, nil
}

// BulkPost creates a two-line bank/suspense entry and link for each listed
// transaction that is unlinked. Linked, unknown and repeated ids are skipped
// without error, as are transactions whose amount cannot make a balanced
// entry. The whole batch commits as one state transition.
func (b *Book) BulkPost(ctx context.Context, txIDs []string, bankAccountID string) (BulkResult, error) {
	var res BulkResult
	err := b.mutate(ctx, "bulk_post", func(s *state) error {
		res = BulkResult{}
		if bankAccountID == "" {
			return &domain.ValidationError{Errors: []domain.FieldError{{
				Entity: "link", Field: "bankAccountId", Message: "bank account is required",
			}}}
		}
		if err := checkBankAccount(s, bankAccountID); err != nil {
			return err
		}
		suspense := s.accounts.Suspense()

		seen := make(map[string]bool, len(txIDs))
		for _, txID := range txIDs {
			i := s.txIndex(txID)
			if seen[txID] || i < 0 {
				res.Skipped++
				continue
			}
			seen[txID] = true
			if _, linked := s.links[txID]; linked {
				res.Skipped++
				continue
			}

			if !s.txs[i].Amount.IsPositive() {
				res.Skipped++
				res.Unpostable = append(res.Unpostable, txID)
				continue
			}

			e := entries.FromTransaction(s.txs[i], bankAccountID, suspense.ID)
			if err := entries.ValidateForSave(e, s.accounts); err != nil {
				return fmt.Errorf("BulkPost: transaction %s: %w", txID, err)
			}
			s.entries = append(s.entries, e)
			if _, err := b.linkIn(s, txID, e.ID, bankAccountID); err != nil {
				return err
			}
			res.Posted++
			res.EntryIDs = append(res.EntryIDs, e.ID)
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	b.log.Info().Int("posted", res.Posted).Int("skipped", res.Skipped).Strs("unpostable", res.Unpostable).Msg("bulk post finished")
	return res, nil
}

// Unlink removes the link of txID and returns the transaction to Unlinked.
// The entry itself is kept.
func (b *Book) Unlink(ctx context.Context, txID string) error {
	err := b.mutate(ctx, "unlink", func(s *state) error {
		if _, ok := s.links[txID]; !ok {
			return &domain.NotFoundError{Kind: "link", ID: txID}
		}
		s.removeLink(txID)
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Info().Str("transaction_id", txID).Msg("transaction unlinked")
	return nil
}

// Relink repoints the link of txID to newEntryID in one step. The bank
// account context of the previous link is kept.
func (b *Book) Relink(ctx context.Context, txID, newEntryID string) (domain.Link, error) {
	var link domain.Link
	err := b.mutate(ctx, "relink", func(s *state) error {
		prev, ok := s.links[txID]
		if !ok {
			return &domain.NotFoundError{Kind: "link", ID: txID}
		}
		if s.entryIndex(newEntryID) < 0 {
			return &domain.NotFoundError{Kind: "entry", ID: newEntryID}
		}
		link = prev
		link.EntryID = newEntryID
		link.LinkedAt = b.now().UTC()
		// A transaction dropped from the working set keeps its original snapshot.
		if i := s.txIndex(txID); i >= 0 {
			link.Snapshot = domain.SnapshotOf(s.txs[i])
		}
		s.addLink(link)
		return nil
	})
	if err != nil {
		return domain.Link{}, err
	}
	b.log.Info().Str("transaction_id", txID).Str("entry_id", newEntryID).Msg("transaction relinked")
	return link, nil
}

// FindEntryForTransaction returns the entry linked to txID.
func (b *Book) FindEntryForTransaction(txID string) (domain.Entry, bool) {
	var (
		e  domain.Entry
		ok bool
	)
	b.locked(func(s *state) {
		l, linked := s.links[txID]
		if !linked {
			return
		}
		if i := s.entryIndex(l.EntryID); i >= 0 {
			e, ok = s.entries[i].Clone(), true
		}
	})
	return e, ok
}

// FindTransactionForEntry returns the transaction linked to entryID. For an
// entry linked from several transactions it returns the lowest id; use
// FindTransactionsForEntry to get all of them.
func (b *Book) FindTransactionForEntry(entryID string) (string, bool) {
	ids := b.FindTransactionsForEntry(entryID)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// FindTransactionsForEntry returns every transaction id linked to entryID, sorted.
func (b *Book) FindTransactionsForEntry(entryID string) []string {
	var ids []string
	b.locked(func(s *state) { ids = s.linksForEntry(entryID) })
	return ids
}

// linkIn creates a link inside a mutation. The transaction must be in the
// working set and unlinked.
func (b *Book) linkIn(s *state, txID, entryID, bankAccountID string) (domain.Link, error) {
	i := s.txIndex(txID)
	if i < 0 {
		return domain.Link{}, &domain.NotFoundError{Kind: "transaction", ID: txID}
	}
	if prev, linked := s.links[txID]; linked {
		return domain.Link{}, &domain.AlreadyLinkedError{TransactionID: txID, EntryID: prev.EntryID}
	}
	l := domain.Link{
		TransactionID: txID,
		EntryID:       entryID,
		BankAccountID: bankAccountID,
		Snapshot:      domain.SnapshotOf(s.txs[i]),
		LinkedAt:      b.now().UTC(),
	}
	s.addLink(l)
	return l, nil
}

func checkBankAccount(s *state, id string) error {
	if id == "" || s.accounts.Resolve(id) {
		return nil
	}
	return &domain.ValidationError{Errors: []domain.FieldError{{
		Entity: "link", Field: "bankAccountId", Message: fmt.Sprintf("account %s does not exist", id),
	}}}
}
