// Package inmemory provides a BlobStore kept in process memory, with error
// injection for exercising persistence failures.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dvloznov/bookkeeper/internal/store"
)

// BlobStore is an in-memory implementation of store.BlobStore.
// It is safe for concurrent use. Data is lost when the process exits.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	putErr    error
	failAfter int // puts left before putErr applies
	puts      int
}

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// FailPuts lets the next n Put calls succeed and fails every later one with err.
// FailPuts(0, err) fails the very next Put. A nil err clears the injection.
func (s *BlobStore) FailPuts(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
	s.failAfter = n
}

// Puts returns the number of successful Put calls.
func (s *BlobStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Get implements store.BlobStore.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, store.ErrBlobNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put implements store.BlobStore.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		if s.failAfter <= 0 {
			return s.putErr
		}
		s.failAfter--
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = cp
	s.puts++
	return nil
}

// Delete implements store.BlobStore.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return store.ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// List implements store.BlobStore.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
