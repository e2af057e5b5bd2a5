package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// TableSpec describes one export table.
type TableSpec struct {
	Name        string
	Description string
	Schema      bigquery.Schema
	// PartitionField is the DATE column the table is partitioned by.
	PartitionField string
}

// Tables returns the export tables, with schemas inferred from the row types.
func Tables() ([]TableSpec, error) {
	lines, err := bigquery.InferSchema(LedgerLineRow{})
	if err != nil {
		return nil, fmt.Errorf("Tables: infer %s schema: %w", ledgerLinesTable, err)
	}
	txs, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return nil, fmt.Errorf("Tables: infer %s schema: %w", transactionsTable, err)
	}
	return []TableSpec{
		{
			Name:           ledgerLinesTable,
			Description:    "One row per ledger line of every exported entry.",
			Schema:         lines,
			PartitionField: "entry_date",
		},
		{
			Name:           transactionsTable,
			Description:    "Statement transactions with their reconciliation status.",
			Schema:         txs,
			PartitionField: "transaction_date",
		},
	}, nil
}

// EnsureTables creates the dataset and any missing export table. Existing
// tables are left as they are. It returns the names of the tables created.
func (s *Sink) EnsureTables(ctx context.Context, location string) ([]string, error) {
	ds := s.client.DatasetInProject(s.project, s.dataset)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("EnsureTables: dataset %s: %w", s.dataset, err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil {
			return nil, fmt.Errorf("EnsureTables: create dataset %s: %w", s.dataset, err)
		}
	}

	specs, err := Tables()
	if err != nil {
		return nil, err
	}

	var created []string
	for _, spec := range specs {
		t := ds.Table(spec.Name)
		if _, err := t.Metadata(ctx); err == nil {
			continue
		} else if !isNotFound(err) {
			return created, fmt.Errorf("EnsureTables: table %s: %w", spec.Name, err)
		}

		meta := &bigquery.TableMetadata{
			Description: spec.Description,
			Schema:      spec.Schema,
			TimePartitioning: &bigquery.TimePartitioning{
				Type:  bigquery.MonthPartitioningType,
				Field: spec.PartitionField,
			},
			Clustering: &bigquery.Clustering{Fields: []string{"period_id"}},
		}
		if err := t.Create(ctx, meta); err != nil {
			return created, fmt.Errorf("EnsureTables: create table %s: %w", spec.Name, err)
		}
		created = append(created, spec.Name)
	}
	return created, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
