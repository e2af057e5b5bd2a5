package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// ImportResult reports the outcome of ImportTransactions.
type ImportResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	IDs     []string `json:"ids"`
}

// ImportTransactions adds statement lines to the working set. Ids are
// derived from content when empty, so re-importing a statement skips lines
// already present. Identical lines within one batch get numbered ids. A line
// whose id already has a link comes back as Linked.
func (b *Book) ImportTransactions(ctx context.Context, txs []domain.Transaction) (ImportResult, error) {
	ve := &domain.ValidationError{}
	prepared := make([]domain.Transaction, 0, len(txs))
	batch := make(map[string]int, len(txs))
	for n, tx := range txs {
		tx.Description = strings.TrimSpace(tx.Description)
		if tx.Date.IsZero() {
			ve.Add(domain.FieldError{Entity: "transaction", ID: fmt.Sprint(n), Field: "date", Message: "date is required"})
		}
		if !tx.Type.Valid() {
			ve.Add(domain.FieldError{Entity: "transaction", ID: fmt.Sprint(n), Field: "type", Message: fmt.Sprintf("unknown type %q", tx.Type)})
		}
		switch {
		case tx.Amount.IsNegative():
			ve.Add(domain.FieldError{Entity: "transaction", ID: fmt.Sprint(n), Field: "amount", Message: "amount must not be negative"})
		case tx.Amount.IsZero():
			ve.Add(domain.FieldError{Entity: "transaction", ID: fmt.Sprint(n), Field: "amount", Message: "amount must be greater than zero"})
		}
		if tx.ID == "" {
			base := domain.NewTransactionID(tx.Date, tx.Description, tx.Amount, tx.Type)
			batch[base]++
			tx.ID = base
			if c := batch[base]; c > 1 {
				tx.ID = fmt.Sprintf("%s-%d", base, c)
			}
		}
		prepared = append(prepared, tx)
	}
	if err := ve.OrNil(); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	err := b.mutate(ctx, "import_transactions", func(s *state) error {
		res = ImportResult{}
		for _, tx := range prepared {
			if s.txIndex(tx.ID) >= 0 {
				res.Skipped++
				continue
			}
			tx.Status = domain.StatusUnlinked
			if _, linked := s.links[tx.ID]; linked {
				tx.Status = domain.StatusLinked
			}
			s.txs = append(s.txs, tx)
			res.Added++
			res.IDs = append(res.IDs, tx.ID)
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	b.log.Info().Int("added", res.Added).Int("skipped", res.Skipped).Msg("transactions imported")
	return res, nil
}

// StartStatement clears the working set of transactions. Links and entries
// are kept; links retain their snapshot of the cleared transactions.
func (b *Book) StartStatement(ctx context.Context) error {
	err := b.mutate(ctx, "start_statement", func(s *state) error {
		s.txs = nil
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Info().Msg("started new statement")
	return nil
}

// SetTransactionNotes sets the free-form notes of a transaction.
func (b *Book) SetTransactionNotes(ctx context.Context, txID, notes string) (domain.Transaction, error) {
	var tx domain.Transaction
	err := b.mutate(ctx, "set_transaction_notes", func(s *state) error {
		i := s.txIndex(txID)
		if i < 0 {
			return &domain.NotFoundError{Kind: "transaction", ID: txID}
		}
		s.txs[i].Notes = notes
		tx = s.txs[i]
		return nil
	})
	return tx, err
}

// Transactions returns the working set in import order.
func (b *Book) Transactions() []domain.Transaction {
	var out []domain.Transaction
	b.locked(func(s *state) {
		out = make([]domain.Transaction, len(s.txs))
		copy(out, s.txs)
	})
	return out
}

// UnlinkedTransactions returns the working-set transactions without a link.
func (b *Book) UnlinkedTransactions() []domain.Transaction {
	var out []domain.Transaction
	b.locked(func(s *state) {
		for _, tx := range s.txs {
			if tx.Status == domain.StatusUnlinked {
				out = append(out, tx)
			}
		}
	})
	return out
}

// Transaction returns one transaction of the working set.
func (b *Book) Transaction(id string) (domain.Transaction, error) {
	var (
		tx domain.Transaction
		ok bool
	)
	b.locked(func(s *state) {
		if i := s.txIndex(id); i >= 0 {
			tx, ok = s.txs[i], true
		}
	})
	if !ok {
		return domain.Transaction{}, &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, nil
}

// Entries returns all entries ordered by date, then id.
func (b *Book) Entries() []domain.Entry {
	var out []domain.Entry
	b.locked(func(s *state) {
		out = make([]domain.Entry, len(s.entries))
		for i, e := range s.entries {
			out[i] = e.Clone()
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Entry returns one entry.
func (b *Book) Entry(id string) (domain.Entry, error) {
	var (
		e  domain.Entry
		ok bool
	)
	b.locked(func(s *state) {
		if i := s.entryIndex(id); i >= 0 {
			e, ok = s.entries[i].Clone(), true
		}
	})
	if !ok {
		return domain.Entry{}, &domain.NotFoundError{Kind: "entry", ID: id}
	}
	return e, nil
}

// Links returns all links ordered by transaction id.
func (b *Book) Links() []domain.Link {
	var out []domain.Link
	b.locked(func(s *state) {
		out = make([]domain.Link, 0, len(s.links))
		for _, l := range s.links {
			out = append(out, l)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out
}

// Link returns the link of txID.
func (b *Book) Link(txID string) (domain.Link, bool) {
	var (
		l  domain.Link
		ok bool
	)
	b.locked(func(s *state) { l, ok = s.links[txID] })
	return l, ok
}
