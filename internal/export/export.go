// Package export flattens a ledger snapshot into tabular rows and writes them
// to CSV, BigQuery or Notion.
package export

import (
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// EntryRow is one ledger line joined with its entry header and account.
type EntryRow struct {
	PeriodID       string
	EntryID        string
	Kind           domain.EntryKind
	Date           time.Time
	Description    string
	Reference      string
	LineID         string
	AccountID      string
	AccountCode    string
	AccountName    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	TransactionIDs []string
}

// TransactionRow is one statement line with its reconciliation state.
type TransactionRow struct {
	PeriodID    string
	ID          string
	Date        time.Time
	Description string
	Type        domain.TxType
	Amount      decimal.Decimal
	Notes       string
	Status      domain.Status
	EntryID     string
}

// EntryRows projects every entry of snap into one row per line. Entries are
// ordered by date then id; lines keep their entry order. Lines whose account
// no longer resolves carry an empty code and UnknownAccountName.
func EntryRows(snap domain.Snapshot) []EntryRow {
	accts := make(map[string]domain.Account, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accts[a.ID] = a
	}

	txsByEntry := make(map[string][]string)
	for _, l := range snap.Links {
		txsByEntry[l.EntryID] = append(txsByEntry[l.EntryID], l.TransactionID)
	}
	for _, ids := range txsByEntry {
		sort.Strings(ids)
	}

	entries := make([]domain.Entry, len(snap.Entries))
	copy(entries, snap.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})

	var rows []EntryRow
	for _, e := range entries {
		for _, line := range e.Lines {
			row := EntryRow{
				PeriodID:       snap.PeriodID,
				EntryID:        e.ID,
				Kind:           e.Kind,
				Date:           e.Date,
				Description:    e.Description,
				Reference:      e.Reference,
				LineID:         line.ID,
				AccountID:      line.AccountID,
				AccountName:    domain.UnknownAccountName,
				Debit:          line.Debit,
				Credit:         line.Credit,
				TransactionIDs: txsByEntry[e.ID],
			}
			if a, ok := accts[line.AccountID]; ok {
				row.AccountCode = a.Code
				row.AccountName = a.Name
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// TransactionRows projects the working transactions of snap in date order.
func TransactionRows(snap domain.Snapshot) []TransactionRow {
	links := make(map[string]string, len(snap.Links))
	for _, l := range snap.Links {
		links[l.TransactionID] = l.EntryID
	}

	rows := make([]TransactionRow, 0, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		rows = append(rows, TransactionRow{
			PeriodID:    snap.PeriodID,
			ID:          tx.ID,
			Date:        tx.Date,
			Description: tx.Description,
			Type:        tx.Type,
			Amount:      tx.Amount,
			Notes:       tx.Notes,
			Status:      tx.Status,
			EntryID:     links[tx.ID],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

// EntryIDs returns the distinct entry ids of rows in first-seen order.
func EntryIDs(rows []EntryRow) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range rows {
		if !seen[r.EntryID] {
			seen[r.EntryID] = true
			ids = append(ids, r.EntryID)
		}
	}
	return ids
}

func formatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ";")
}
