package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/storage"
	pgstore "sui-swap-engine/internal/storage/postgres"
)

func testRecord(digest string) *domain.SwapRecord {
	return &domain.SwapRecord{
		Owner:       "0xowner",
		FromAsset:   "0x2::sui::SUI",
		ToAsset:     "0xusdc::usdc::USDC",
		AmountIn:    "120",
		MinOut:      "995",
		RequestID:   "req-" + digest,
		Digest:      digest,
		Status:      domain.SwapRecordSucceeded,
		SubmittedAt: 1000,
		CompletedAt: 2000,
	}
}

func TestSwapRecordStore_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewSwapRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("digest1")))

	got, err := store.GetByDigest(ctx, "digest1")
	require.NoError(t, err)
	assert.Equal(t, "0xowner", got.Owner)
	assert.Equal(t, "120", got.AmountIn)
	assert.Equal(t, "995", got.MinOut)
	assert.Equal(t, domain.SwapRecordSucceeded, got.Status)
	assert.NotZero(t, got.ID)
	assert.NotZero(t, got.CreatedAt)
}

func TestSwapRecordStore_DuplicateDigest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewSwapRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("digest1")))

	err := store.Insert(ctx, testRecord("digest1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSwapRecordStore_EmptyDigestsNotUnique(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewSwapRecordStore(pool)
	ctx := context.Background()

	// Failed submissions carry no digest; the partial unique index
	// must not collapse them.
	r1 := testRecord("")
	r1.Status = domain.SwapRecordFailed
	r2 := testRecord("")
	r2.Status = domain.SwapRecordFailed

	require.NoError(t, store.Insert(ctx, r1))
	require.NoError(t, store.Insert(ctx, r2))
}

func TestSwapRecordStore_GetByDigest_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewSwapRecordStore(pool)

	_, err := store.GetByDigest(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSwapRecordStore_GetByOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewSwapRecordStore(pool)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		r := testRecord(fmt.Sprintf("digest%d", i))
		r.CompletedAt = int64(i * 1000)
		require.NoError(t, store.Insert(ctx, r))
	}

	other := testRecord("other")
	other.Owner = "0xother"
	require.NoError(t, store.Insert(ctx, other))

	got, err := store.GetByOwner(ctx, "0xowner", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "digest3", got[0].Digest, "most recent first")
	assert.Equal(t, "digest2", got[1].Digest)
}

func TestSwapRecordStore_CountByStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewSwapRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("digest1")))
	require.NoError(t, store.Insert(ctx, testRecord("digest2")))
	failed := testRecord("digest3")
	failed.Status = domain.SwapRecordFailed
	failed.FailReason = "execution failure"
	require.NoError(t, store.Insert(ctx, failed))

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.SwapRecordSucceeded])
	assert.Equal(t, int64(1), counts[domain.SwapRecordFailed])
}
