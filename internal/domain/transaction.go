package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical date format used across the ledger.
const DateLayout = "2006-01-02"

// TxType is the statement-side direction of a source transaction.
type TxType string

const (
	// TxDebit is money leaving the bank account (a withdrawal on the statement).
	TxDebit TxType = "debit"
	// TxCredit is money entering the bank account (a deposit on the statement).
	TxCredit TxType = "credit"
)

// Valid reports whether t is one of the known directions.
func (t TxType) Valid() bool {
	return t == TxDebit || t == TxCredit
}

// Status is the single canonical reconciliation status of a source transaction.
type Status string

const (
	StatusUnlinked Status = "unlinked"
	StatusLinked   Status = "linked"
)

// Transaction represents one bank-statement line item.
// Status is written only by the reconcile package.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // non-negative magnitude
	Type        TxType          `json:"type"`
	Notes       string          `json:"notes,omitempty"`
	Status      Status          `json:"status"`
}

// NewTransactionID builds the content-derived key of a statement line from its
// normalized date, description, amount and direction. Re-importing the same
// statement yields the same ids.
func NewTransactionID(date time.Time, description string, amount decimal.Decimal, typ TxType) string {
	key := strings.Join([]string{
		date.Format(DateLayout),
		normalizeDescription(description),
		amount.Abs().StringFixed(2),
		string(typ),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return "tx_" + hex.EncodeToString(sum[:8])
}

// normalizeDescription lowercases and collapses whitespace.
func normalizeDescription(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
