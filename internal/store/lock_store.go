package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/lock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MatchLockStore keeps scoring leases in the match_locks table. It is the
// default lock.Locker when no redis is configured.
type MatchLockStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ lock.Locker = (*MatchLockStore)(nil)

const (
	// Takes the row when it is free, expired or already ours.
	acquireLockQuery = `
		INSERT INTO match_locks (match_id, holder_id, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (match_id) DO UPDATE SET holder_id = excluded.holder_id, expires_at = excluded.expires_at
		WHERE match_locks.holder_id = excluded.holder_id OR match_locks.expires_at <= ?
	`
	releaseLockQuery = "DELETE FROM match_locks WHERE match_id = ? AND holder_id = ?"
)

type lockRow struct {
	HolderID  string `db:"holder_id"`
	ExpiresAt int64  `db:"expires_at"`
}

func NewMatchLockStore(db *sqlx.DB) *MatchLockStore {
	return &MatchLockStore{db: db, now: time.Now}
}

func (s *MatchLockStore) Acquire(ctx context.Context, matchID uuid.UUID, holderID string, ttl time.Duration) (*lock.Lease, error) {
	if ttl <= 0 {
		ttl = lock.DefaultTTL
	}

	// A second attempt covers a release that lands between the upsert and
	// the holder lookup.
	for attempt := 0; attempt < 2; attempt++ {
		now := s.now()
		expiresAt := now.Add(ttl)

		res, err := s.db.ExecContext(ctx, s.db.Rebind(acquireLockQuery), matchID, holderID, expiresAt.UnixMilli(), now.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("failed to acquire match lock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire match lock: %w", err)
		}
		if n > 0 {
			return &lock.Lease{MatchID: matchID, HolderID: holderID, ExpiresAt: expiresAt}, nil
		}

		held, err := s.heldError(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if held != nil {
			return nil, held
		}
	}

	return nil, &lock.HeldError{MatchID: matchID}
}

// heldError describes the current lease on matchID, or returns nil when the
// match is free.
func (s *MatchLockStore) heldError(ctx context.Context, matchID uuid.UUID) (*lock.HeldError, error) {
	var current lockRow
	err := s.db.GetContext(ctx, &current, s.db.Rebind("SELECT holder_id, expires_at FROM match_locks WHERE match_id = ?"), matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read match lock: %w", err)
	}
	return &lock.HeldError{
		MatchID:   matchID,
		HolderID:  current.HolderID,
		ExpiresAt: time.UnixMilli(current.ExpiresAt),
	}, nil
}

func (s *MatchLockStore) Release(ctx context.Context, matchID uuid.UUID, holderID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(releaseLockQuery), matchID, holderID); err != nil {
		return fmt.Errorf("failed to release match lock: %w", err)
	}
	return nil
}
