package storage

import (
	"context"

	"sui-swap-engine/internal/domain"
)

// SwapRecordStore provides access to swap_records storage. Records are
// an append-only audit trail of submitted swaps; the lifecycle machine
// never reads them back.
type SwapRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if a record
	// with the same non-empty digest exists.
	Insert(ctx context.Context, r *domain.SwapRecord) error

	// GetByDigest retrieves a record by transaction digest. Returns
	// ErrNotFound if not exists.
	GetByDigest(ctx context.Context, digest string) (*domain.SwapRecord, error)

	// GetByOwner retrieves all records for an owner, most recent first.
	GetByOwner(ctx context.Context, owner string, limit int) ([]*domain.SwapRecord, error)

	// CountByStatus returns record counts keyed by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
