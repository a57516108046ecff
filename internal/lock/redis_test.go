package lock

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, NewRedisLocker(rdb)
}

func TestRedisLockerAcquire(t *testing.T) {
	_, locker := setupRedis(t)
	ctx := context.Background()
	matchID := uuid.New()

	lease, err := locker.Acquire(ctx, matchID, "user:a", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "user:a", lease.HolderID)
	assert.Equal(t, matchID, lease.MatchID)

	_, err = locker.Acquire(ctx, matchID, "table:b", 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrMatchLocked)

	var held *HeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, "user:a", held.HolderID)
	assert.True(t, held.ExpiresAt.After(time.Now()))

	// The holder can renew its own lease.
	_, err = locker.Acquire(ctx, matchID, "user:a", 10*time.Second)
	require.NoError(t, err)
}

func TestRedisLockerRelease(t *testing.T) {
	_, locker := setupRedis(t)
	ctx := context.Background()
	matchID := uuid.New()

	_, err := locker.Acquire(ctx, matchID, "user:a", time.Minute)
	require.NoError(t, err)

	// Someone else's release leaves the lease alone.
	require.NoError(t, locker.Release(ctx, matchID, "table:b"))
	_, err = locker.Acquire(ctx, matchID, "table:b", time.Minute)
	assert.ErrorIs(t, err, apperr.ErrMatchLocked)

	require.NoError(t, locker.Release(ctx, matchID, "user:a"))
	_, err = locker.Acquire(ctx, matchID, "table:b", time.Minute)
	assert.NoError(t, err)
}

func TestRedisLockerExpiry(t *testing.T) {
	mr, locker := setupRedis(t)
	ctx := context.Background()
	matchID := uuid.New()

	_, err := locker.Acquire(ctx, matchID, "user:a", 5*time.Second)
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	lease, err := locker.Acquire(ctx, matchID, "table:b", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "table:b", lease.HolderID)
}

func TestRedisLockerDefaultTTL(t *testing.T) {
	mr, locker := setupRedis(t)
	matchID := uuid.New()

	_, err := locker.Acquire(context.Background(), matchID, "user:a", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, mr.TTL(lockKey(matchID)))
}

func TestHeldErrorMessage(t *testing.T) {
	expires := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)

	held := &HeldError{MatchID: uuid.New(), HolderID: "table:7", ExpiresAt: expires}
	assert.Equal(t, "Match is being scored by table:7 until 2024-05-01T18:30:00Z.", held.Error())
	assert.ErrorIs(t, held, apperr.ErrMatchLocked)

	unknown := &HeldError{MatchID: uuid.New()}
	assert.Equal(t, "Match is being scored by someone else.", unknown.Error())
	assert.ErrorIs(t, unknown, apperr.ErrMatchLocked)
}
