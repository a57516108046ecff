package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/bracket"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type transition struct {
	StageCompleted      bool
	TournamentCompleted bool
}

// checkStage runs the structural checks of a stage's match graph.
func checkStage(matches []bracket.Match) error {
	ptrs := make([]*bracket.Match, len(matches))
	for i := range matches {
		ptrs[i] = &matches[i]
	}
	if err := bracket.CheckGraph(ptrs); err != nil {
		return fmt.Errorf("inconsistent bracket: %w", err)
	}
	return nil
}

// completeStageIfDone closes the stage once its last deciding match is
// played. Qualifiers of a multi-stage Stage 1 are seeded into Stage 2;
// finishing the last stage finishes the tournament.
func completeStageIfDone(ctx context.Context, tx *sqlx.Tx, st *store.TournamentStore, stageID uuid.UUID, shuffle shuffleFunc) (*transition, error) {
	stageMatches, err := st.GetStageMatchesTx(ctx, tx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage matches: %w", err)
	}

	if err := checkStage(stageMatches); err != nil {
		return nil, err
	}

	ptrs := make([]*bracket.Match, len(stageMatches))
	for i := range stageMatches {
		ptrs[i] = &stageMatches[i]
	}
	if !bracket.StageComplete(ptrs) {
		return &transition{}, nil
	}
	tournamentID := stageMatches[0].TournamentID

	stages, err := st.GetStagesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}

	var current, next *bracket.Stage
	for i := range stages {
		if stages[i].ID == stageID {
			current = &stages[i]
		}
	}
	if current == nil {
		return nil, fmt.Errorf("stage %s not found", stageID)
	}
	for i := range stages {
		if stages[i].StageNo == current.StageNo+1 {
			next = &stages[i]
		}
	}

	now := time.Now().UTC()
	current.Status = bracket.StageCompleted
	current.CompletedAt = &now
	if err := st.UpdateStage(ctx, tx, current); err != nil {
		return nil, fmt.Errorf("failed to complete stage: %w", err)
	}
	slog.Info("stage completed", "tournament_id", tournamentID, "stage", current.StageNo)

	t, err := st.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	if next == nil {
		t.Status = bracket.TournamentCompleted
		t.UpdatedAt = now
		if err := st.UpdateTournament(ctx, tx, t); err != nil {
			return nil, fmt.Errorf("failed to complete tournament: %w", err)
		}
		slog.Info("tournament completed", "tournament_id", tournamentID)
		return &transition{StageCompleted: true, TournamentCompleted: true}, nil
	}

	players, err := st.GetPlayersTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	byID := make(map[uuid.UUID]bracket.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	// Qualifiers are seeded in the order they qualified.
	var qualified []bracket.Player
	for i, id := range bracket.Qualifiers(ptrs) {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("qualifier %s is not registered", id)
		}
		p.Seed = i + 1
		qualified = append(qualified, p)
	}

	matches, err := bracket.Generate(bracket.GenerateInput{
		TournamentID: tournamentID,
		StageID:      next.ID,
		Type:         next.Type,
		Players:      bracket.OrderPlayers(qualified, next.Ordering, shuffle),
		RaceTo:       t.RaceTo(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate stage %d: %w", next.StageNo, err)
	}
	if err := checkStage(matches); err != nil {
		return nil, err
	}
	stampNew(matches, now)

	if err := st.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create stage %d matches: %w", next.StageNo, err)
	}

	next.Status = bracket.StageInProgress
	if err := st.UpdateStage(ctx, tx, next); err != nil {
		return nil, fmt.Errorf("failed to start stage %d: %w", next.StageNo, err)
	}
	slog.Info("stage started", "tournament_id", tournamentID, "stage", next.StageNo, "players", len(qualified))

	return &transition{StageCompleted: true}, nil
}
