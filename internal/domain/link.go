package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionSnapshot is the denormalized copy of a transaction taken when it
// was linked. It survives later changes to, or removal of, the source record.
type TransactionSnapshot struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TxType          `json:"type"`
}

// SnapshotOf captures the audit fields of tx.
func SnapshotOf(tx Transaction) TransactionSnapshot {
	return TransactionSnapshot{
		Date:        tx.Date,
		Description: tx.Description,
		Amount:      tx.Amount,
		Type:        tx.Type,
	}
}

// Link records which ledger entry explains a source transaction. The link is
// keyed by TransactionID; a transaction has at most one link.
type Link struct {
	TransactionID string              `json:"transactionId"`
	EntryID       string              `json:"entryId"`
	BankAccountID string              `json:"bankAccountId"`
	Snapshot      TransactionSnapshot `json:"snapshot"`
	LinkedAt      time.Time           `json:"linkedAt"`
}
