// Package store persists period snapshots as JSON blobs. The Repository owns
// the key layout and serialization; BlobStore implementations only move bytes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// ErrBlobNotFound is returned by BlobStore.Get and Delete for a missing key.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is a flat key-value byte store.
type BlobStore interface {
	// Get returns the blob stored under key, or ErrBlobNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key, or returns ErrBlobNotFound.
	Delete(ctx context.Context, key string) error

	// List returns all keys that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

const (
	periodPrefix = "periods/"
	periodSuffix = ".json"
)

// Repository loads and saves period snapshots. Load and save are
// all-or-nothing per call: a snapshot is written as one blob.
type Repository struct {
	blobs BlobStore
}

// NewRepository creates a Repository over the given blob store.
func NewRepository(blobs BlobStore) *Repository {
	return &Repository{blobs: blobs}
}

// ValidatePeriodID rejects ids that cannot be used as a key segment.
func ValidatePeriodID(id string) error {
	msg := ""
	switch {
	case strings.TrimSpace(id) == "":
		msg = "period id is required"
	case strings.ContainsAny(id, "/\\"):
		msg = "period id must not contain path separators"
	case id == "." || id == "..":
		msg = "period id is reserved"
	}
	if msg == "" {
		return nil
	}
	return &domain.ValidationError{Errors: []domain.FieldError{{
		Entity: "period", ID: id, Field: "id", Message: msg,
	}}}
}

func periodKey(id string) string {
	return periodPrefix + id + periodSuffix
}

// LoadPeriod reads the snapshot saved under id.
func (r *Repository) LoadPeriod(ctx context.Context, id string) (domain.Snapshot, error) {
	if err := ValidatePeriodID(id); err != nil {
		return domain.Snapshot{}, err
	}
	data, err := r.blobs.Get(ctx, periodKey(id))
	if errors.Is(err, ErrBlobNotFound) {
		return domain.Snapshot{}, &domain.NotFoundError{Kind: "period", ID: id}
	}
	if err != nil {
		return domain.Snapshot{}, &domain.ExternalServiceError{Service: "store", Err: fmt.Errorf("LoadPeriod: get %s: %w", id, err)}
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, &domain.ExternalServiceError{Service: "store", Err: fmt.Errorf("LoadPeriod: decode %s: %w", id, err)}
	}
	if snap.Version > domain.SnapshotVersion {
		return domain.Snapshot{}, &domain.ExternalServiceError{Service: "store", Err: fmt.Errorf("LoadPeriod: %s has unsupported version %d", id, snap.Version)}
	}
	if snap.PeriodID == "" {
		snap.PeriodID = id
	}
	return snap, nil
}

// SavePeriod writes snap under id, overwriting any previous bundle.
func (r *Repository) SavePeriod(ctx context.Context, id string, snap domain.Snapshot) error {
	if err := ValidatePeriodID(id); err != nil {
		return err
	}
	snap.Version = domain.SnapshotVersion
	snap.PeriodID = id
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("SavePeriod: encode %s: %w", id, err)
	}
	if err := r.blobs.Put(ctx, periodKey(id), data); err != nil {
		return &domain.ExternalServiceError{Service: "store", Err: fmt.Errorf("SavePeriod: put %s: %w", id, err)}
	}
	return nil
}

// DeletePeriod removes the bundle saved under id.
func (r *Repository) DeletePeriod(ctx context.Context, id string) error {
	if err := ValidatePeriodID(id); err != nil {
		return err
	}
	err := r.blobs.Delete(ctx, periodKey(id))
	if errors.Is(err, ErrBlobNotFound) {
		return &domain.NotFoundError{Kind: "period", ID: id}
	}
	if err != nil {
		return &domain.ExternalServiceError{Service: "store", Err: fmt.Errorf("DeletePeriod: delete %s: %w", id, err)}
	}
	return nil
}

// ListPeriods returns the ids of all saved periods, sorted.
func (r *Repository) ListPeriods(ctx context.Context) ([]string, error) {
	keys, err := r.blobs.List(ctx, periodPrefix)
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "store", Err: fmt.Errorf("ListPeriods: %w", err)}
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, periodSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(k, periodPrefix), periodSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}
