// Package pipeline ingests statement documents into a book: the document is
// fetched, its transactions are extracted by the model and the result is
// imported as unlinked source transactions.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/extraction"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	URI          string
	Document     extraction.Document
	Transactions []domain.Transaction
	Result       reconcile.ImportResult

	// DryRun stops before anything is imported.
	DryRun bool
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the first
// failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			log.Error().Err(err).Str("step", step.Name()).Str("uri", state.URI).Msg("Ingestion step failed")
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().Str("step", step.Name()).Str("uri", state.URI).Msg("Ingestion step done")
	}
	return nil
}

// NewStatementIngestionPipeline creates the standard fetch, extract and
// import pipeline.
func NewStatementIngestionPipeline(fetcher Fetcher, extractor extraction.Extractor, book *reconcile.Book) *Pipeline {
	return NewPipeline(
		&FetchDocumentStep{Fetcher: fetcher},
		&ExtractStatementStep{Extractor: extractor},
		&ImportTransactionsStep{Book: book},
	)
}

// IngestStatement runs the standard pipeline for one document.
func IngestStatement(ctx context.Context, uri string, fetcher Fetcher, extractor extraction.Extractor, book *reconcile.Book, dryRun bool) (*PipelineState, error) {
	state := &PipelineState{URI: uri, DryRun: dryRun}
	if err := NewStatementIngestionPipeline(fetcher, extractor, book).Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}
