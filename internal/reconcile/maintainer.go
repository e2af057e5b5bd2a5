package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/entries"
)

// ErrInconsistent is matched by errors returned from CheckInvariants.
var ErrInconsistent = errors.New("ledger state is inconsistent")

// LinkChange describes a change of the transaction linked to an entry.
// An empty id stands for "no transaction".
type LinkChange struct {
	OldTransactionID string `json:"oldTransactionId"`
	NewTransactionID string `json:"newTransactionId"`
}

// DeleteEntry removes an entry and unlinks every transaction linked to it,
// in one step. It returns the ids of the transactions that were unlinked.
func (b *Book) DeleteEntry(ctx context.Context, entryID string) ([]string, error) {
	var unlinked []string
	err := b.mutate(ctx, "delete_entry", func(s *state) error {
		i := s.entryIndex(entryID)
		if i < 0 {
			return &domain.NotFoundError{Kind: "entry", ID: entryID}
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		unlinked = s.linksForEntry(entryID)
		for _, txID := range unlinked {
			s.removeLink(txID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("entry_id", entryID).Strs("transaction_ids", unlinked).Msg("entry deleted")
	return unlinked, nil
}

// EditEntry replaces the entry with id entryID after validating the new
// version. Existing links are kept unless change is given, in which case the
// link change is applied in the same step.
func (b *Book) EditEntry(ctx context.Context, entryID string, updated domain.Entry, change *LinkChange) (domain.Entry, error) {
	updated = updated.Clone()
	updated.ID = entryID

	err := b.mutate(ctx, "edit_entry", func(s *state) error {
		i := s.entryIndex(entryID)
		if i < 0 {
			return &domain.NotFoundError{Kind: "entry", ID: entryID}
		}
		if updated.Kind == "" {
			updated.Kind = s.entries[i].Kind
		}
		if err := entries.ValidateForSave(updated, s.accounts); err != nil {
			return err
		}
		s.entries[i] = updated
		if change != nil {
			return b.changeLinkIn(s, entryID, change.OldTransactionID, change.NewTransactionID)
		}
		return nil
	})
	if err != nil {
		return domain.Entry{}, err
	}
	b.log.Info().Str("entry_id", entryID).Msg("entry edited")
	return updated.Clone(), nil
}

// ChangeLinkedTransaction unlinks oldTxID from entryID and links newTxID to
// it, as one step. Either id may be empty. Equal ids are a no-op.
func (b *Book) ChangeLinkedTransaction(ctx context.Context, entryID, oldTxID, newTxID string) error {
	if oldTxID == newTxID {
		return nil
	}
	err := b.mutate(ctx, "change_linked_transaction", func(s *state) error {
		if s.entryIndex(entryID) < 0 {
			return &domain.NotFoundError{Kind: "entry", ID: entryID}
		}
		return b.changeLinkIn(s, entryID, oldTxID, newTxID)
	})
	if err != nil {
		return err
	}
	b.log.Info().Str("entry_id", entryID).Str("old_transaction_id", oldTxID).
		Str("new_transaction_id", newTxID).Msg("linked transaction changed")
	return nil
}

func (b *Book) changeLinkIn(s *state, entryID, oldTxID, newTxID string) error {
	if oldTxID == newTxID {
		return nil
	}
	bankAccountID := bankAccountOf(s, entryID)
	if oldTxID != "" {
		l, ok := s.links[oldTxID]
		if !ok || l.EntryID != entryID {
			return &domain.NotFoundError{Kind: "link", ID: oldTxID}
		}
		bankAccountID = l.BankAccountID
		s.removeLink(oldTxID)
	}
	if newTxID != "" {
		if _, err := b.linkIn(s, newTxID, entryID, bankAccountID); err != nil {
			return err
		}
	}
	return nil
}

// bankAccountOf picks the bank context for a new link of entryID: the bank
// account of an existing link, else the first line on a bank account.
func bankAccountOf(s *state, entryID string) string {
	for _, txID := range s.linksForEntry(entryID) {
		if id := s.links[txID].BankAccountID; id != "" {
			return id
		}
	}
	if i := s.entryIndex(entryID); i >= 0 {
		for _, l := range s.entries[i].Lines {
			if a, ok := s.accounts.Get(l.AccountID); ok && a.IsBankAccount {
				return a.ID
			}
		}
	}
	return ""
}

// CheckInvariants verifies the current state: each link points at an
// existing entry, every working-set transaction is Linked exactly when it
// has a link, and every entry is balanced.
func (b *Book) CheckInvariants() error {
	var err error
	b.locked(func(s *state) { err = checkInvariants(s) })
	return err
}

func checkInvariants(s *state) error {
	var problems []string

	seenTx := make(map[string]bool, len(s.txs))
	for _, tx := range s.txs {
		if seenTx[tx.ID] {
			problems = append(problems, fmt.Sprintf("transaction %s appears twice", tx.ID))
		}
		seenTx[tx.ID] = true
		_, linked := s.links[tx.ID]
		if linked != (tx.Status == domain.StatusLinked) {
			problems = append(problems, fmt.Sprintf("transaction %s status %q disagrees with link presence %v", tx.ID, tx.Status, linked))
		}
	}

	seenEntry := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		if seenEntry[e.ID] {
			problems = append(problems, fmt.Sprintf("entry %s appears twice", e.ID))
		}
		seenEntry[e.ID] = true
		if !entries.IsBalanced(e) {
			problems = append(problems, fmt.Sprintf("entry %s is not balanced", e.ID))
		}
	}

	for txID, l := range s.links {
		if l.TransactionID != txID {
			problems = append(problems, fmt.Sprintf("link keyed %s names transaction %s", txID, l.TransactionID))
		}
		if !seenEntry[l.EntryID] {
			problems = append(problems, fmt.Sprintf("link of %s points at missing entry %s", txID, l.EntryID))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInconsistent, strings.Join(problems, "; "))
}
