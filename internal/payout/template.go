package payout

import (
	"time"

	"github.com/google/uuid"
)

// Template is a reusable prize table for a band of player counts.
type Template struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	OwnerID    uuid.UUID    `db:"owner_id" json:"ownerId"`
	Name       string       `db:"name" json:"name"`
	MinPlayers int          `db:"min_players" json:"minPlayers"`
	MaxPlayers int          `db:"max_players" json:"maxPlayers"`
	Places     int          `db:"places" json:"places"`
	Percents   Distribution `db:"percents" json:"percents"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updatedAt"`
}
