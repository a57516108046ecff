// Package lock provides short per-match leases that stop two devices from
// scoring the same match at once.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/google/uuid"
)

const DefaultTTL = 30 * time.Second

type Lease struct {
	MatchID   uuid.UUID
	HolderID  string
	ExpiresAt time.Time
}

// Locker hands out exclusive, expiring leases. Acquire never waits: a lease
// held by someone else fails immediately with a *HeldError. Re-acquiring a
// lease you already hold extends it.
type Locker interface {
	Acquire(ctx context.Context, matchID uuid.UUID, holderID string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, matchID uuid.UUID, holderID string) error
}

type HeldError struct {
	MatchID   uuid.UUID
	HolderID  string
	ExpiresAt time.Time
}

func (e *HeldError) Error() string {
	if e.HolderID == "" {
		return "Match is being scored by someone else."
	}
	return fmt.Sprintf("Match is being scored by %s until %s.", e.HolderID, e.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *HeldError) Is(target error) bool {
	return target == apperr.ErrMatchLocked
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
