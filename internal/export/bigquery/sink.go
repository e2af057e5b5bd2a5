// Package bigquery appends exported ledger and transaction rows to BigQuery
// tables. Exports are idempotent per period: ids already present are skipped.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bookkeeper/internal/export"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

const (
	ledgerLinesTable  = "ledger_lines"
	transactionsTable = "statement_transactions"
)

// LedgerLineRow is the BigQuery shape of one exported ledger line.
type LedgerLineRow struct {
	PeriodID       string              `bigquery:"period_id"`
	EntryID        string              `bigquery:"entry_id"`
	LineID         string              `bigquery:"line_id"`
	Kind           string              `bigquery:"kind"`
	EntryDate      civil.Date          `bigquery:"entry_date"`
	Description    string              `bigquery:"description"`
	Reference      bigquery.NullString `bigquery:"reference"`
	AccountID      string              `bigquery:"account_id"`
	AccountCode    bigquery.NullString `bigquery:"account_code"`
	AccountName    string              `bigquery:"account_name"`
	Debit          *big.Rat            `bigquery:"debit"`
	Credit         *big.Rat            `bigquery:"credit"`
	TransactionIDs []string            `bigquery:"transaction_ids"`
	ExportedTS     time.Time           `bigquery:"exported_ts"`
}

// TransactionRow is the BigQuery shape of one exported statement line.
type TransactionRow struct {
	PeriodID        string              `bigquery:"period_id"`
	TransactionID   string              `bigquery:"transaction_id"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Description     string              `bigquery:"description"`
	Direction       string              `bigquery:"direction"`
	Amount          *big.Rat            `bigquery:"amount"`
	Status          string              `bigquery:"status"`
	EntryID         bigquery.NullString `bigquery:"entry_id"`
	Notes           bigquery.NullString `bigquery:"notes"`
	ExportedTS      time.Time           `bigquery:"exported_ts"`
}

// Sink writes rows into one dataset.
type Sink struct {
	client  *bigquery.Client
	project string
	dataset string
	now     func() time.Time
}

// NewSink opens a BigQuery client for project. Call Close when done.
func NewSink(ctx context.Context, project, dataset string) (*Sink, error) {
	if project == "" || dataset == "" {
		return nil, fmt.Errorf("NewSink: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewSink: bigquery client: %w", err)
	}
	return &Sink{client: client, project: project, dataset: dataset, now: time.Now}, nil
}

// Close releases the client.
func (s *Sink) Close() error {
	return s.client.Close()
}

// ExportEntries inserts the lines of every entry not yet exported for the
// period and returns the number of rows written.
func (s *Sink) ExportEntries(ctx context.Context, periodID string, rows []export.EntryRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	seen, err := s.exportedIDs(ctx, ledgerLinesTable, "entry_id", periodID)
	if err != nil {
		return 0, fmt.Errorf("ExportEntries: %w", err)
	}
	out := ToLedgerLineRows(pendingEntries(rows, seen), s.now())
	if len(out) == 0 {
		return 0, nil
	}
	inserter := s.client.DatasetInProject(s.project, s.dataset).Table(ledgerLinesTable).Inserter()
	if err := inserter.Put(ctx, out); err != nil {
		return 0, fmt.Errorf("ExportEntries: inserting rows: %w", err)
	}
	return len(out), nil
}

// ExportTransactions inserts the transactions not yet exported for the period.
func (s *Sink) ExportTransactions(ctx context.Context, periodID string, rows []export.TransactionRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	seen, err := s.exportedIDs(ctx, transactionsTable, "transaction_id", periodID)
	if err != nil {
		return 0, fmt.Errorf("ExportTransactions: %w", err)
	}
	var pending []export.TransactionRow
	for _, r := range rows {
		if !seen[r.ID] {
			pending = append(pending, r)
		}
	}
	out := ToTransactionRows(pending, s.now())
	if len(out) == 0 {
		return 0, nil
	}
	inserter := s.client.DatasetInProject(s.project, s.dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, out); err != nil {
		return 0, fmt.Errorf("ExportTransactions: inserting rows: %w", err)
	}
	return len(out), nil
}

func (s *Sink) exportedIDs(ctx context.Context, table, column, periodID string) (map[string]bool, error) {
	q := s.client.Query(fmt.Sprintf(
		"SELECT DISTINCT %s AS id FROM `%s.%s.%s` WHERE period_id = @period_id",
		column, s.project, s.dataset, table,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "period_id", Value: periodID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	ids := make(map[string]bool)
	for {
		var row struct {
			ID string `bigquery:"id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		ids[row.ID] = true
	}
	return ids, nil
}

func pendingEntries(rows []export.EntryRow, seen map[string]bool) []export.EntryRow {
	var out []export.EntryRow
	for _, r := range rows {
		if !seen[r.EntryID] {
			out = append(out, r)
		}
	}
	return out
}

// ToLedgerLineRows converts projected entry rows to their BigQuery shape.
func ToLedgerLineRows(rows []export.EntryRow, exportedAt time.Time) []*LedgerLineRow {
	out := make([]*LedgerLineRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, &LedgerLineRow{
			PeriodID:       r.PeriodID,
			EntryID:        r.EntryID,
			LineID:         r.LineID,
			Kind:           string(r.Kind),
			EntryDate:      civil.DateOf(r.Date),
			Description:    r.Description,
			Reference:      nullString(r.Reference),
			AccountID:      r.AccountID,
			AccountCode:    nullString(r.AccountCode),
			AccountName:    r.AccountName,
			Debit:          numeric(r.Debit),
			Credit:         numeric(r.Credit),
			TransactionIDs: r.TransactionIDs,
			ExportedTS:     exportedAt.UTC(),
		})
	}
	return out
}

// ToTransactionRows converts projected transaction rows to their BigQuery shape.
func ToTransactionRows(rows []export.TransactionRow, exportedAt time.Time) []*TransactionRow {
	out := make([]*TransactionRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, &TransactionRow{
			PeriodID:        r.PeriodID,
			TransactionID:   r.ID,
			TransactionDate: civil.DateOf(r.Date),
			Description:     r.Description,
			Direction:       string(r.Type),
			Amount:          numeric(r.Amount),
			Status:          string(r.Status),
			EntryID:         nullString(r.EntryID),
			Notes:           nullString(r.Notes),
			ExportedTS:      exportedAt.UTC(),
		})
	}
	return out
}

// numeric rounds to the two places stored by the NUMERIC columns.
func numeric(d decimal.Decimal) *big.Rat {
	return d.Round(2).Rat()
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
