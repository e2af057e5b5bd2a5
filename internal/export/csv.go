package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

var entryHeader = []string{
	"entry_id", "kind", "date", "description", "reference",
	"account_code", "account_name", "debit", "credit", "transaction_ids",
}

var transactionHeader = []string{
	"transaction_id", "date", "description", "type", "amount", "status", "entry_id", "notes",
}

// WriteEntriesCSV writes rows with a header line. Zero amounts are left blank.
func WriteEntriesCSV(w io.Writer, rows []EntryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(entryHeader); err != nil {
		return fmt.Errorf("WriteEntriesCSV: header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.EntryID,
			string(r.Kind),
			r.Date.Format(domain.DateLayout),
			r.Description,
			r.Reference,
			r.AccountCode,
			r.AccountName,
			formatAmount(r.Debit),
			formatAmount(r.Credit),
			joinIDs(r.TransactionIDs),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteEntriesCSV: line %s: %w", r.LineID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteEntriesCSV: flush: %w", err)
	}
	return nil
}

// WriteTransactionsCSV writes rows with a header line.
func WriteTransactionsCSV(w io.Writer, rows []TransactionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return fmt.Errorf("WriteTransactionsCSV: header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.ID,
			r.Date.Format(domain.DateLayout),
			r.Description,
			string(r.Type),
			r.Amount.StringFixed(2),
			string(r.Status),
			r.EntryID,
			r.Notes,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteTransactionsCSV: %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteTransactionsCSV: flush: %w", err)
	}
	return nil
}
