// Package memory provides in-memory store implementations.
package memory

import (
	"context"
	"sort"
	"sync"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/storage"
)

// SwapRecordStore is an in-memory implementation of
// storage.SwapRecordStore.
type SwapRecordStore struct {
	mu       sync.RWMutex
	records  []*domain.SwapRecord
	byDigest map[string]*domain.SwapRecord
	nextID   int64
}

// NewSwapRecordStore creates a new in-memory swap record store.
func NewSwapRecordStore() *SwapRecordStore {
	return &SwapRecordStore{
		byDigest: make(map[string]*domain.SwapRecord),
		nextID:   1,
	}
}

// Compile-time interface check.
var _ storage.SwapRecordStore = (*SwapRecordStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the digest is
// already present.
func (s *SwapRecordStore) Insert(_ context.Context, r *domain.SwapRecord) error {
	if r == nil || r.Owner == "" || r.Status == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Digest != "" {
		if _, exists := s.byDigest[r.Digest]; exists {
			return storage.ErrDuplicateKey
		}
	}

	copy := *r
	copy.ID = s.nextID
	s.nextID++
	s.records = append(s.records, &copy)
	if copy.Digest != "" {
		s.byDigest[copy.Digest] = &copy
	}
	return nil
}

// GetByDigest retrieves a record by transaction digest.
func (s *SwapRecordStore) GetByDigest(_ context.Context, digest string) (*domain.SwapRecord, error) {
	if digest == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byDigest[digest]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// GetByOwner retrieves an owner's records, most recent first.
func (s *SwapRecordStore) GetByOwner(_ context.Context, owner string, limit int) ([]*domain.SwapRecord, error) {
	if owner == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapRecord
	for _, r := range s.records {
		if r.Owner == owner {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CompletedAt != result[j].CompletedAt {
			return result[i].CompletedAt > result[j].CompletedAt
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// CountByStatus returns record counts keyed by status.
func (s *SwapRecordStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts, nil
}
