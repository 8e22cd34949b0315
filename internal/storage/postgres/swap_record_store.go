package postgres

import (
	"context"
	"fmt"
	"time"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/observability"
	"sui-swap-engine/internal/storage"
)

// SwapRecordStore implements storage.SwapRecordStore using PostgreSQL.
type SwapRecordStore struct {
	pool *Pool
}

// NewSwapRecordStore creates a new SwapRecordStore.
func NewSwapRecordStore(pool *Pool) *SwapRecordStore {
	return &SwapRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapRecordStore = (*SwapRecordStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the digest is
// already present.
func (s *SwapRecordStore) Insert(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil || r.Owner == "" || r.Status == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO swap_records (
			owner, from_asset, to_asset, amount_in, min_out,
			request_id, digest, status, fail_reason, submitted_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		r.Owner,
		r.FromAsset,
		r.ToAsset,
		r.AmountIn,
		r.MinOut,
		r.RequestID,
		r.Digest,
		r.Status,
		r.FailReason,
		r.SubmittedAt,
		r.CompletedAt,
	)
	observability.RecordDBQuery("insert_swap_record", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap record: %w", err)
	}
	return nil
}

const recordColumns = `
	id, owner, from_asset, to_asset, amount_in, min_out,
	request_id, digest, status, fail_reason, submitted_at, completed_at, created_at
`

// GetByDigest retrieves a record by transaction digest.
func (s *SwapRecordStore) GetByDigest(ctx context.Context, digest string) (*domain.SwapRecord, error) {
	if digest == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `SELECT ` + recordColumns + ` FROM swap_records WHERE digest = $1`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, digest)

	var r domain.SwapRecord
	err := row.Scan(
		&r.ID, &r.Owner, &r.FromAsset, &r.ToAsset, &r.AmountIn, &r.MinOut,
		&r.RequestID, &r.Digest, &r.Status, &r.FailReason,
		&r.SubmittedAt, &r.CompletedAt, &r.CreatedAt,
	)
	observability.RecordDBQuery("get_swap_record_by_digest", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get swap record by digest: %w", err)
	}
	return &r, nil
}

// GetByOwner retrieves an owner's records, most recent first.
func (s *SwapRecordStore) GetByOwner(ctx context.Context, owner string, limit int) ([]*domain.SwapRecord, error) {
	if owner == "" {
		return nil, storage.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + recordColumns + `
		FROM swap_records
		WHERE owner = $1
		ORDER BY completed_at DESC, id DESC
		LIMIT $2
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, owner, limit)
	observability.RecordDBQuery("get_swap_records_by_owner", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("get swap records by owner: %w", err)
	}
	defer rows.Close()

	var result []*domain.SwapRecord
	for rows.Next() {
		var r domain.SwapRecord
		if err := rows.Scan(
			&r.ID, &r.Owner, &r.FromAsset, &r.ToAsset, &r.AmountIn, &r.MinOut,
			&r.RequestID, &r.Digest, &r.Status, &r.FailReason,
			&r.SubmittedAt, &r.CompletedAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan swap record: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap records: %w", err)
	}
	return result, nil
}

// CountByStatus returns record counts keyed by status.
func (s *SwapRecordStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM swap_records GROUP BY status`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query)
	observability.RecordDBQuery("count_swap_records_by_status", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("count swap records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}
