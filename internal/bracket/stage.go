package bracket

import (
	"time"

	"github.com/google/uuid"
)

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

type Stage struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	TournamentID uuid.UUID   `db:"tournament_id" json:"tournamentId"`
	StageNo      int         `db:"stage_no" json:"stageNo"`
	Type         BracketType `db:"bracket_type" json:"type"`
	Status       StageStatus `db:"status" json:"status"`
	AdvanceCount *int        `db:"advance_count" json:"advanceCount"`
	Ordering     Ordering    `db:"ordering" json:"ordering"`
	CompletedAt  *time.Time  `db:"completed_at" json:"completedAt"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}

// StagesFor lays out the stages a tournament runs through. Stage 2 only exists
// for multi-stage tournaments and waits until Stage 1 is done.
func StagesFor(t *Tournament) []Stage {
	stages := []Stage{{
		ID:           uuid.New(),
		TournamentID: t.ID,
		StageNo:      1,
		Type:         t.BracketType,
		Status:       StageInProgress,
		Ordering:     t.Stage1Ordering,
	}}

	if t.IsMultiStage {
		stages[0].AdvanceCount = t.AdvanceToStage2Count
		stages = append(stages, Stage{
			ID:           uuid.New(),
			TournamentID: t.ID,
			StageNo:      2,
			Type:         t.Stage2Type,
			Status:       StagePending,
			Ordering:     t.Stage2Ordering,
		})
	}
	return stages
}
