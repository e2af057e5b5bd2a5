// Package gcs stores blobs as objects in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/bookkeeper/internal/store"
	"google.golang.org/api/iterator"
)

// BlobStore keeps each key as the object <prefix><key> in a bucket.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBlobStore opens a storage client for bucket. Keys are stored below prefix.
func NewBlobStore(ctx context.Context, bucket, prefix string) (*BlobStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewBlobStore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBlobStore: create storage client: %w", err)
	}
	return &BlobStore{client: client, bucket: bucket, prefix: normalizePrefix(prefix)}, nil
}

// NewBlobStoreFromURI opens a store from a gs://bucket/prefix URI.
func NewBlobStoreFromURI(ctx context.Context, uri string) (*BlobStore, error) {
	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(ctx, bucket, prefix)
}

// ParseURI splits gs://bucket/some/prefix into its bucket and prefix.
func ParseURI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	if len(parts) == 2 {
		prefix = normalizePrefix(parts[1])
	}
	return parts[0], prefix, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// Close releases the storage client.
func (s *BlobStore) Close() error {
	return s.client.Close()
}

func (s *BlobStore) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + key)
}

// Get implements store.BlobStore.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, store.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object %s: %w", key, err)
	}
	return data, nil
}

// Put implements store.BlobStore.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object %s: %w", key, err)
	}
	// Close finalizes the upload; the object is not visible before it returns.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s: %w", key, err)
	}
	return nil
}

// Delete implements store.BlobStore.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return store.ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("delete GCS object %s: %w", key, err)
	}
	return nil
}

// List implements store.BlobStore.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix + prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list GCS objects %s: %w", prefix, err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, s.prefix))
	}
	return keys, nil
}
