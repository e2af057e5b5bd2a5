// Package entries builds and validates balanced ledger entries from manual
// input, single-transaction suggestions and multi-transaction consolidation.
package entries

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line fields accepted by SetLine.
const (
	FieldAccountID = "accountId"
	FieldDebit     = "debit"
	FieldCredit    = "credit"
)

// MinLines is the minimum number of lines of a journal entry.
const MinLines = 2

// Resolver reports whether an account id exists.
type Resolver interface {
	Resolve(accountID string) bool
}

// Totals is the per-field sum across an entry's lines.
type Totals struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// NewLine returns an empty line with a fresh id.
func NewLine() domain.Line {
	return domain.Line{ID: uuid.NewString()}
}

// ManualSkeleton returns an empty two-line journal entry.
func ManualSkeleton(date time.Time) domain.Entry {
	return domain.Entry{
		ID:    uuid.NewString(),
		Kind:  domain.KindJournal,
		Date:  date,
		Lines: []domain.Line{NewLine(), NewLine()},
	}
}

// FromTransaction returns a two-line skeleton for a source transaction: the
// bank line is signed by the transaction direction and the suspense line
// carries the offsetting amount.
func FromTransaction(tx domain.Transaction, bankAccountID, suspenseAccountID string) domain.Entry {
	bank := NewLine()
	bank.AccountID = bankAccountID
	offset := NewLine()
	offset.AccountID = suspenseAccountID

	amount := tx.Amount.Abs()
	if tx.Type == domain.TxDebit {
		// Money out of the bank: credit the bank, debit the offset.
		bank.Credit = amount
		offset.Debit = amount
	} else {
		bank.Debit = amount
		offset.Credit = amount
	}

	return domain.Entry{
		ID:          uuid.NewString(),
		Kind:        domain.KindJournal,
		Date:        tx.Date,
		Description: tx.Description,
		Lines:       []domain.Line{bank, offset},
	}
}

// FromSuggestion maps a validated suggestion 1:1 into a journal entry.
func FromSuggestion(s domain.Suggestion) domain.Entry {
	e := domain.Entry{
		ID:          uuid.NewString(),
		Kind:        domain.KindJournal,
		Date:        s.Date,
		Description: s.Description,
		Lines:       make([]domain.Line, 0, len(s.Lines)),
	}
	for _, sl := range s.Lines {
		l := NewLine()
		l.AccountID = strings.TrimSpace(sl.AccountID)
		l.Debit, l.Credit = exclusive(sl.Debit.Abs(), sl.Credit.Abs())
		e.Lines = append(e.Lines, l)
	}
	return e
}

// CashbookInput is the flattened single-line cashbook shape. Receipt is money
// into the bank account, Payment money out of it.
type CashbookInput struct {
	Date          time.Time
	Description   string
	Reference     string
	BankAccountID string
	AccountID     string
	Receipt       decimal.Decimal
	Payment       decimal.Decimal
}

// FromCashbook expands a cashbook row into a two-line entry of kind cashbook.
func FromCashbook(in CashbookInput) domain.Entry {
	bank := NewLine()
	bank.AccountID = in.BankAccountID
	contra := NewLine()
	contra.AccountID = in.AccountID

	bank.Debit, bank.Credit = exclusive(in.Receipt.Abs(), in.Payment.Abs())
	contra.Debit, contra.Credit = bank.Credit, bank.Debit

	return domain.Entry{
		ID:          uuid.NewString(),
		Kind:        domain.KindCashbook,
		Date:        in.Date,
		Description: in.Description,
		Reference:   in.Reference,
		Lines:       []domain.Line{bank, contra},
	}
}

// exclusive nets a debit/credit pair so at most one side is nonzero.
func exclusive(debit, credit decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	switch debit.Cmp(credit) {
	case 1:
		return debit.Sub(credit), decimal.Zero
	case -1:
		return decimal.Zero, credit.Sub(debit)
	default:
		return decimal.Zero, decimal.Zero
	}
}

// ParseAmount parses user-entered amount text. Empty input is zero;
// thousands separators are accepted; non-numeric and negative input is an
// error rather than silently zeroed.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%q is negative", s)
	}
	return d, nil
}

// SetLine sets one field of a line. Setting a positive debit clears the
// credit and vice versa. Unparseable amounts are recorded on the line and
// reported by ValidateForSave.
func SetLine(e *domain.Entry, lineID, field, value string) error {
	i := e.LineIndex(lineID)
	if i < 0 {
		return &domain.NotFoundError{Kind: "line", ID: lineID}
	}
	l := &e.Lines[i]

	switch field {
	case FieldAccountID:
		l.AccountID = strings.TrimSpace(value)
		return nil
	case FieldDebit, FieldCredit:
	default:
		return &domain.ValidationError{Errors: []domain.FieldError{{
			Entity: "entry", ID: e.ID, LineID: lineID, Field: field, Message: "unknown field",
		}}}
	}

	amount, err := ParseAmount(value)
	if err != nil {
		if l.Invalid == nil {
			l.Invalid = make(map[string]string)
		}
		l.Invalid[field] = value
		return nil
	}
	delete(l.Invalid, field)

	if field == FieldDebit {
		l.Debit = amount
		if amount.IsPositive() {
			l.Credit = decimal.Zero
			delete(l.Invalid, FieldCredit)
		}
	} else {
		l.Credit = amount
		if amount.IsPositive() {
			l.Debit = decimal.Zero
			delete(l.Invalid, FieldDebit)
		}
	}
	if len(l.Invalid) == 0 {
		l.Invalid = nil
	}
	return nil
}

// AddLine appends an empty line and returns it.
func AddLine(e *domain.Entry) domain.Line {
	l := NewLine()
	e.Lines = append(e.Lines, l)
	return l
}

// RemoveLine removes a line unless fewer than MinLines would remain.
func RemoveLine(e *domain.Entry, lineID string) error {
	i := e.LineIndex(lineID)
	if i < 0 {
		return &domain.NotFoundError{Kind: "line", ID: lineID}
	}
	if len(e.Lines)-1 < MinLines {
		return &domain.MinimumLinesError{EntryID: e.ID, Minimum: MinLines}
	}
	e.Lines = append(e.Lines[:i], e.Lines[i+1:]...)
	return nil
}

// ComputeTotals sums debits and credits across lines.
func ComputeTotals(e domain.Entry) Totals {
	t := Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, l := range e.Lines {
		t.Debit = t.Debit.Add(l.Debit)
		t.Credit = t.Credit.Add(l.Credit)
	}
	return t
}

// IsBalanced reports whether debits equal credits at two decimal places and
// the unrounded debit total is strictly positive. An all-zero entry is not
// balanced.
func IsBalanced(e domain.Entry) bool {
	t := ComputeTotals(e)
	return domain.AmountsEqual(t.Debit, t.Credit) && t.Debit.IsPositive()
}

// ValidateForSave checks every rule an entry must satisfy before it is
// committed and returns all failures at once.
func ValidateForSave(e domain.Entry, accounts Resolver) error {
	ve := &domain.ValidationError{}
	fail := func(lineID, field, msg string) {
		ve.Add(domain.FieldError{Entity: "entry", ID: e.ID, LineID: lineID, Field: field, Message: msg})
	}

	if e.Date.IsZero() {
		fail("", "date", "date is required")
	}
	if len(e.Lines) < MinLines {
		fail("", "lines", fmt.Sprintf("at least %d lines are required", MinLines))
	}

	seen := make(map[string]bool, len(e.Lines))
	for _, l := range e.Lines {
		if seen[l.ID] {
			fail(l.ID, "id", "duplicate line id")
		}
		seen[l.ID] = true
		for _, field := range []string{FieldDebit, FieldCredit} {
			if raw, bad := l.Invalid[field]; bad {
				fail(l.ID, field, fmt.Sprintf("%q is not a valid amount", raw))
			}
		}
		switch {
		case l.AccountID == "":
			fail(l.ID, FieldAccountID, "account is required")
		case accounts != nil && !accounts.Resolve(l.AccountID):
			fail(l.ID, FieldAccountID, fmt.Sprintf("account %s does not exist", l.AccountID))
		}
		if l.Debit.IsNegative() {
			fail(l.ID, FieldDebit, "amount must not be negative")
		}
		if l.Credit.IsNegative() {
			fail(l.ID, FieldCredit, "amount must not be negative")
		}
		if !l.Debit.IsZero() && !l.Credit.IsZero() {
			fail(l.ID, FieldDebit, "a line cannot carry both a debit and a credit")
		}
	}

	if !IsBalanced(e) {
		t := ComputeTotals(e)
		if !t.Debit.IsPositive() {
			fail("", "balance", "entry total must be greater than zero")
		} else {
			fail("", "balance", fmt.Sprintf("debits %s do not equal credits %s",
				t.Debit.StringFixed(2), t.Credit.StringFixed(2)))
		}
	}

	return ve.OrNil()
}
