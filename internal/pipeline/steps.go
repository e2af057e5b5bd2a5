package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/extraction"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
)

// FetchDocumentStep loads the document bytes and detects their type.
type FetchDocumentStep struct {
	Fetcher Fetcher
}

func (s *FetchDocumentStep) Name() string { return "fetch_document" }

func (s *FetchDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Fetcher.Fetch(ctx, state.URI)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("document %s is empty", state.URI)
	}

	name := FilenameFromURI(state.URI)
	doc := extraction.Document{Name: name, MIMEType: DetectMIMEType(name, data)}
	if isText(doc.MIMEType) {
		doc.Text = string(data)
	} else {
		doc.Data = data
	}
	state.Document = doc
	return nil
}

// ExtractStatementStep asks the model for the statement's transactions.
type ExtractStatementStep struct {
	Extractor extraction.Extractor
}

func (s *ExtractStatementStep) Name() string { return "extract_statement" }

func (s *ExtractStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := s.Extractor.ExtractStatement(ctx, state.Document)
	if err != nil {
		return err
	}
	state.Transactions = txs
	log := logger.FromContext(ctx)
	log.Info().
		Str("document", state.Document.Name).
		Int("transactions", len(txs)).
		Msg("Statement extracted")
	return nil
}

// ImportTransactionsStep adds the extracted transactions to the book.
// Lines already present are skipped.
type ImportTransactionsStep struct {
	Book *reconcile.Book
}

func (s *ImportTransactionsStep) Name() string { return "import_transactions" }

func (s *ImportTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.DryRun {
		return nil
	}
	res, err := s.Book.ImportTransactions(ctx, state.Transactions)
	if err != nil {
		return err
	}
	state.Result = res
	return nil
}
