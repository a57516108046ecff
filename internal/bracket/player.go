package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Player is a registration of someone in a tournament (a TournamentPlayer).
type Player struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`
	Name         string    `db:"name" json:"name"`
	Seed         int       `db:"seed" json:"seed"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
