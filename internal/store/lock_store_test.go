package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/lock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchLockStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	locks := NewMatchLockStore(db)
	now := time.Now()
	locks.now = func() time.Time { return now }

	ctx := context.Background()
	matchID := uuid.New()

	lease, err := locks.Acquire(ctx, matchID, "user:a", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "user:a", lease.HolderID)

	t.Run("other holder is turned away", func(t *testing.T) {
		_, err := locks.Acquire(ctx, matchID, "table:b", 30*time.Second)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrMatchLocked)

		var held *lock.HeldError
		require.ErrorAs(t, err, &held)
		assert.Equal(t, "user:a", held.HolderID)
		assert.Equal(t, now.Add(30*time.Second).UnixMilli(), held.ExpiresAt.UnixMilli())
	})

	t.Run("holder renews", func(t *testing.T) {
		renewed, err := locks.Acquire(ctx, matchID, "user:a", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Minute), renewed.ExpiresAt)
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		lease, err := locks.Acquire(ctx, matchID, "table:b", 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "table:b", lease.HolderID)
	})

	t.Run("release only by holder", func(t *testing.T) {
		require.NoError(t, locks.Release(ctx, matchID, "user:a"))
		_, err := locks.Acquire(ctx, matchID, "user:a", 30*time.Second)
		assert.ErrorIs(t, err, apperr.ErrMatchLocked)

		require.NoError(t, locks.Release(ctx, matchID, "table:b"))
		_, err = locks.Acquire(ctx, matchID, "user:a", 30*time.Second)
		assert.NoError(t, err)
	})
}

func TestMatchLockHolderLookup(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	locks := NewMatchLockStore(db)
	ctx := context.Background()
	matchID := uuid.New()

	held, err := locks.heldError(ctx, matchID)
	require.NoError(t, err)
	assert.Nil(t, held, "a released match reads as free")

	_, err = locks.Acquire(ctx, matchID, "user:a", 30*time.Second)
	require.NoError(t, err)

	held, err = locks.heldError(ctx, matchID)
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, "user:a", held.HolderID)

	require.NoError(t, locks.Release(ctx, matchID, "user:a"))
	held, err = locks.heldError(ctx, matchID)
	require.NoError(t, err)
	assert.Nil(t, held)

	lease, err := locks.Acquire(ctx, matchID, "table:b", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "table:b", lease.HolderID)
}
