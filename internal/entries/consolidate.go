package entries

import (
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NetMovement returns the signed bank-side movement of txs: deposits are
// positive, withdrawals negative.
func NetMovement(txs []domain.Transaction) decimal.Decimal {
	net := decimal.Zero
	for _, tx := range txs {
		if tx.Type == domain.TxCredit {
			net = net.Add(tx.Amount.Abs())
		} else {
			net = net.Sub(tx.Amount.Abs())
		}
	}
	return net
}

// Consolidate collapses several source transactions into one entry. The bank
// side is netted into a single line on whichever side is larger and omitted
// when the net movement is zero. Contra lines come from the suggestion when
// given (its bank-account lines are replaced by the netted line), otherwise a
// single suspense line absorbs the net movement.
func Consolidate(txs []domain.Transaction, bankAccountID, suspenseAccountID string, s *domain.Suggestion) (domain.Entry, error) {
	if len(txs) == 0 {
		return domain.Entry{}, &domain.ValidationError{Errors: []domain.FieldError{{
			Entity: "entry", Field: "transactions", Message: "at least one transaction is required",
		}}}
	}

	net := NetMovement(txs)
	e := domain.Entry{
		ID:   uuid.NewString(),
		Kind: domain.KindJournal,
	}

	if s != nil {
		e.Date = s.Date
		e.Description = s.Description
		for _, sl := range s.Lines {
			if sl.AccountID == bankAccountID {
				continue
			}
			l := NewLine()
			l.AccountID = strings.TrimSpace(sl.AccountID)
			l.Debit, l.Credit = exclusive(sl.Debit.Abs(), sl.Credit.Abs())
			e.Lines = append(e.Lines, l)
		}
	} else {
		e.Date = latestDate(txs)
		e.Description = consolidatedNarration(txs)
		if !net.IsZero() {
			l := NewLine()
			l.AccountID = suspenseAccountID
			if net.IsPositive() {
				l.Credit = net
			} else {
				l.Debit = net.Neg()
			}
			e.Lines = append(e.Lines, l)
		}
	}

	if !net.IsZero() {
		bank := NewLine()
		bank.AccountID = bankAccountID
		if net.IsPositive() {
			bank.Debit = net
		} else {
			bank.Credit = net.Neg()
		}
		e.Lines = append([]domain.Line{bank}, e.Lines...)
	}

	return e, nil
}

func latestDate(txs []domain.Transaction) (latest time.Time) {
	for _, tx := range txs {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	return latest
}

func consolidatedNarration(txs []domain.Transaction) string {
	descs := make([]string, 0, len(txs))
	seen := make(map[string]bool)
	for _, tx := range txs {
		d := strings.TrimSpace(tx.Description)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		descs = append(descs, d)
	}
	sort.Strings(descs)
	return "Consolidated: " + strings.Join(descs, "; ")
}
