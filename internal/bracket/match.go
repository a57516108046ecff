package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type BracketSide string

const (
	WinnersSide BracketSide = "winners"
	LosersSide  BracketSide = "losers"
	FinalsSide  BracketSide = "finals"
)

// SourceType records where a slot's player comes from.
type SourceType string

const (
	SourceSeed     SourceType = "seed"
	SourceWinnerOf SourceType = "winner_of"
	SourceLoserOf  SourceType = "loser_of"
)

type RaceTo struct {
	Winners int
	Losers  int
	Finals  int
}

func (r RaceTo) For(side BracketSide) int {
	var v int
	switch side {
	case LosersSide:
		v = r.Losers
	case FinalsSide:
		v = r.Finals
	default:
		v = r.Winners
	}
	if v < 1 {
		return DefaultRaceTo
	}
	return v
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`
	StageID      uuid.UUID `db:"stage_id" json:"stageId"`

	// Position in the stage for reconstructing the view
	BracketSide     BracketSide `db:"bracket_side" json:"bracket"`
	RoundNumber     int         `db:"round_number" json:"roundNo"`
	PositionInRound int         `db:"position_in_round" json:"positionInRound"`

	Player1TpID          *uuid.UUID `db:"player1_tp_id" json:"player1TpId"`
	Player2TpID          *uuid.UUID `db:"player2_tp_id" json:"player2TpId"`
	Player1SourceType    SourceType `db:"player1_source_type" json:"player1SourceType"`
	Player1SourceMatchID *uuid.UUID `db:"player1_source_match_id" json:"player1SourceMatchId"`
	Player2SourceType    SourceType `db:"player2_source_type" json:"player2SourceType"`
	Player2SourceMatchID *uuid.UUID `db:"player2_source_match_id" json:"player2SourceMatchId"`
	NextWinnerMatchID    *uuid.UUID `db:"next_winner_match_id" json:"nextWinnerMatchId"`
	NextLoserMatchID     *uuid.UUID `db:"next_loser_match_id" json:"nextLoserMatchId"`

	RaceTo       int         `db:"race_to" json:"raceTo"`
	Status       MatchStatus `db:"status" json:"status"`
	ScoreP1      int         `db:"score_p1" json:"scoreP1"`
	ScoreP2      int         `db:"score_p2" json:"scoreP2"`
	WinnerTpID   *uuid.UUID  `db:"winner_tp_id" json:"winnerTpId"`
	TableID      *int        `db:"table_id" json:"tableId"`
	ScheduledUTC *time.Time  `db:"scheduled_utc" json:"scheduledUtc"`

	// A bye match has at most one player that will ever arrive.
	IsBye bool `db:"is_bye" json:"isBye"`

	RowVersion int64     `db:"row_version" json:"rowVersion"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

func (m *Match) IsReady() bool {
	return m.Player1TpID != nil && m.Player2TpID != nil
}

func (m *Match) HasPlayer(id uuid.UUID) bool {
	return (m.Player1TpID != nil && *m.Player1TpID == id) || (m.Player2TpID != nil && *m.Player2TpID == id)
}

// Loser is the other player of a completed match, nil for byes.
func (m *Match) Loser() *uuid.UUID {
	if m.WinnerTpID == nil {
		return nil
	}
	if m.Player1TpID != nil && *m.Player1TpID == *m.WinnerTpID {
		return m.Player2TpID
	}
	return m.Player1TpID
}

// Validate checks the winner invariant: a winner exists exactly when the match
// is completed and it is one of the two players. Byes that never received a
// player complete without a winner.
func (m *Match) Validate() error {
	if m.Status != MatchCompleted {
		if m.WinnerTpID != nil {
			return fmt.Errorf("match %s has a winner but is %s", m.ID, m.Status)
		}
		return nil
	}
	if m.WinnerTpID == nil {
		if m.IsBye && m.Player1TpID == nil && m.Player2TpID == nil {
			return nil
		}
		return fmt.Errorf("match %s is completed without a winner", m.ID)
	}
	if !m.HasPlayer(*m.WinnerTpID) {
		return fmt.Errorf("match %s winner is not one of its players", m.ID)
	}
	return nil
}

// slotFedBy returns 1 or 2 for the slot fed by source/kind, or 0.
func (m *Match) slotFedBy(source uuid.UUID, kind SourceType) int {
	if m.Player1SourceType == kind && m.Player1SourceMatchID != nil && *m.Player1SourceMatchID == source {
		return 1
	}
	if m.Player2SourceType == kind && m.Player2SourceMatchID != nil && *m.Player2SourceMatchID == source {
		return 2
	}
	return 0
}
