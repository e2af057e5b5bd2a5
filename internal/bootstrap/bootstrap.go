// Package bootstrap builds the long-lived components shared by the commands
// from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/extraction"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/dvloznov/bookkeeper/internal/store"
	"github.com/dvloznov/bookkeeper/internal/store/file"
	"github.com/dvloznov/bookkeeper/internal/store/gcs"
	"github.com/dvloznov/bookkeeper/internal/store/inmemory"
	"github.com/rs/zerolog"
)

// OpenRepository opens the period store selected by cfg.Driver. The returned
// close function releases any client the store holds.
func OpenRepository(ctx context.Context, cfg config.StoreConfig) (*store.Repository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverFile:
		blobs, err := file.NewBlobStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRepository(blobs), noop, nil
	case config.DriverGCS:
		var (
			blobs *gcs.BlobStore
			err   error
		)
		if strings.HasPrefix(cfg.Bucket, "gs://") {
			blobs, err = gcs.NewBlobStoreFromURI(ctx, cfg.Bucket)
		} else {
			blobs, err = gcs.NewBlobStore(ctx, cfg.Bucket, cfg.Prefix)
		}
		if err != nil {
			return nil, nil, err
		}
		return store.NewRepository(blobs), blobs.Close, nil
	case config.DriverMemory:
		return store.NewRepository(inmemory.NewBlobStore()), noop, nil
	default:
		return nil, nil, fmt.Errorf("OpenRepository: unknown driver %q", cfg.Driver)
	}
}

// OpenBook returns a book that autosaves to repo under periodID, resuming
// from the saved bundle when one exists.
func OpenBook(ctx context.Context, repo *store.Repository, periodID string, log zerolog.Logger) (*reconcile.Book, error) {
	book := reconcile.NewBook(
		reconcile.WithAutosave(repo, periodID),
		reconcile.WithLogger(log),
	)
	err := book.LoadPeriod(ctx, periodID)
	switch {
	case err == nil:
		log.Info().Str("period_id", periodID).Msg("Resumed saved period")
	case errors.Is(err, domain.ErrNotFound):
		log.Info().Str("period_id", periodID).Msg("Starting new period")
	default:
		return nil, fmt.Errorf("OpenBook: %w", err)
	}
	return book, nil
}

// OpenReadOnlyBook loads periodID into a book that never writes back to repo.
func OpenReadOnlyBook(ctx context.Context, repo *store.Repository, periodID string, log zerolog.Logger) (*reconcile.Book, error) {
	book := reconcile.NewBook(reconcile.WithStore(repo), reconcile.WithLogger(log))
	if err := book.LoadPeriod(ctx, periodID); err != nil {
		return nil, fmt.Errorf("OpenReadOnlyBook: %w", err)
	}
	return book, nil
}

// NewExtractor creates the Gemini-backed extractor with the configured daily
// quota.
func NewExtractor(ctx context.Context, cfg config.ExtractionConfig, log zerolog.Logger) (*extraction.GeminiExtractor, error) {
	gen, err := extraction.NewGeminiGenerator(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	return extraction.NewGeminiExtractor(gen, extraction.NewQuota(cfg.DailyQuota), log), nil
}
