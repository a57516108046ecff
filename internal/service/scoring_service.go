package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/actor"
	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/bracket"
	"github.com/AdamBeresnev/poolbracket/internal/lock"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/AdamBeresnev/poolbracket/internal/token"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ScoringService records live scores from organizers and table devices.
// Every write holds the match lease and checks the row version the caller
// last saw.
type ScoringService struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	locker  lock.Locker
	tokens  *token.Service
	lockTTL time.Duration
	shuffle shuffleFunc
}

func NewScoringService(db *sqlx.DB, store *store.TournamentStore, locker lock.Locker, tokens *token.Service, lockTTL time.Duration) *ScoringService {
	if lockTTL <= 0 {
		lockTTL = lock.DefaultTTL
	}
	return &ScoringService{db: db, store: store, locker: locker, tokens: tokens, lockTTL: lockTTL, shuffle: rand.Shuffle}
}

type ScoreInput struct {
	MatchID    uuid.UUID `json:"-"`
	ScoreP1    int       `json:"scoreP1"`
	ScoreP2    int       `json:"scoreP2"`
	RowVersion int64     `json:"rowVersion"`
}

type CompletionResult struct {
	Match               *bracket.Match  `json:"match"`
	Advanced            []bracket.Match `json:"advanced"`
	StageCompleted      bool            `json:"stageCompleted"`
	TournamentCompleted bool            `json:"tournamentCompleted"`
}

type TableToken struct {
	Token        string    `json:"token"`
	TournamentID uuid.UUID `json:"tournamentId"`
	TableID      int       `json:"tableId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (s *ScoringService) UpdateScore(ctx context.Context, a actor.Actor, in ScoreInput) (*bracket.Match, error) {
	var updated *bracket.Match
	err := s.withMatch(ctx, a, in, false, func(tx *sqlx.Tx, m *bracket.Match) error {
		m.ScoreP1, m.ScoreP2 = in.ScoreP1, in.ScoreP2
		if m.Status == bracket.MatchScheduled {
			m.Status = bracket.MatchInProgress
		}
		if err := s.writeMatch(ctx, tx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CompleteMatch records the final score, moves both players on and closes
// the stage when this was its last deciding match.
func (s *ScoringService) CompleteMatch(ctx context.Context, a actor.Actor, in ScoreInput) (*CompletionResult, error) {
	var result *CompletionResult
	err := s.withMatch(ctx, a, in, true, func(tx *sqlx.Tx, m *bracket.Match) error {
		winner := *m.Player1TpID
		if in.ScoreP2 > in.ScoreP1 {
			winner = *m.Player2TpID
		}
		m.ScoreP1, m.ScoreP2 = in.ScoreP1, in.ScoreP2
		m.Status = bracket.MatchCompleted
		m.WinnerTpID = &winner

		if err := s.writeMatch(ctx, tx, m); err != nil {
			return err
		}

		stageMatches, err := s.store.GetStageMatchesTx(ctx, tx, m.StageID)
		if err != nil {
			return fmt.Errorf("failed to get stage matches: %w", err)
		}
		ptrs := make([]*bracket.Match, len(stageMatches))
		var completed *bracket.Match
		for i := range stageMatches {
			ptrs[i] = &stageMatches[i]
			if stageMatches[i].ID == m.ID {
				completed = ptrs[i]
			}
		}
		if completed == nil {
			return fmt.Errorf("match %s missing from its stage", m.ID)
		}

		changed, err := bracket.Advance(ptrs, completed)
		if err != nil {
			return fmt.Errorf("failed to advance players: %w", err)
		}

		result = &CompletionResult{Match: m, Advanced: make([]bracket.Match, 0, len(changed))}
		for _, c := range changed {
			if err := s.writeMatch(ctx, tx, c); err != nil {
				return err
			}
			result.Advanced = append(result.Advanced, *c)
		}

		tr, err := completeStageIfDone(ctx, tx, s.store, m.StageID, s.shuffle)
		if err != nil {
			return err
		}
		result.StageCompleted = tr.StageCompleted
		result.TournamentCompleted = tr.TournamentCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withMatch runs the shared scoring pipeline: load, authorize, validate,
// lease, then fn inside a transaction against a fresh, version-checked copy.
func (s *ScoringService) withMatch(ctx context.Context, a actor.Actor, in ScoreInput, completing bool, fn func(tx *sqlx.Tx, m *bracket.Match) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.store.GetMatch(ctx, in.MatchID)
	if err != nil {
		return lookup(err, msgMatchNotFound, "match")
	}

	if err := s.authorize(ctx, a, m); err != nil {
		return err
	}
	if err := validateScores(m.RaceTo, in.ScoreP1, in.ScoreP2, completing); err != nil {
		return err
	}

	holder := a.HolderID()
	if _, err := s.locker.Acquire(ctx, m.ID, holder, s.lockTTL); err != nil {
		return err
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), m.ID, holder); err != nil {
			slog.Warn("failed to release match lock", "match_id", m.ID, "holder", holder, "error", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := s.store.GetMatchTx(ctx, tx, m.ID)
	if err != nil {
		return lookup(err, msgMatchNotFound, "match")
	}
	if current.RowVersion != in.RowVersion {
		return &ConflictError{Latest: current}
	}
	if current.Status == bracket.MatchCompleted {
		return apperr.InvalidOperation("Match is already completed.")
	}
	if !current.IsReady() {
		return apperr.InvalidOperation("Match is not ready to be played.")
	}

	if err := fn(tx, current); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ScoringService) authorize(ctx context.Context, a actor.Actor, m *bracket.Match) error {
	switch a := a.(type) {
	case actor.User:
		t, err := s.store.GetTournament(ctx, m.TournamentID)
		if err != nil {
			return lookup(err, msgTournamentNotFound, "tournament")
		}
		if t.OwnerID != a.ID {
			return apperr.Unauthorized("You do not manage this tournament.")
		}
		return nil
	case actor.Table:
		if m.TableID == nil {
			return apperr.InvalidOperation("Match is not assigned to a table.")
		}
		if a.TournamentID != m.TournamentID || a.TableID != *m.TableID {
			return apperr.Unauthorized("Table token is not valid for this match.")
		}
		return nil
	default:
		return apperr.Unauthorized("Authentication required.")
	}
}

func validateScores(raceTo, p1, p2 int, completing bool) error {
	if p1 < 0 || p2 < 0 {
		return apperr.Validation("Scores cannot be negative.")
	}
	if p1 > raceTo || p2 > raceTo {
		return apperr.Validationf("Scores cannot exceed the race-to of %d.", raceTo)
	}
	if p1 == raceTo && p2 == raceTo {
		return apperr.Validation("Only one player can reach the race-to.")
	}
	if completing && max(p1, p2) != raceTo {
		return apperr.Validation("Winning score must equal race-to and losing score must be lower.")
	}
	return nil
}

// writeMatch persists m, turning a lost version race into a ConflictError
// that carries the row as it is now.
func (s *ScoringService) writeMatch(ctx context.Context, tx *sqlx.Tx, m *bracket.Match) error {
	err := s.store.UpdateMatch(ctx, tx, m)
	if errors.Is(err, store.ErrStaleMatch) {
		latest, getErr := s.store.GetMatchTx(ctx, tx, m.ID)
		if getErr != nil {
			return fmt.Errorf("failed to reload match: %w", getErr)
		}
		return &ConflictError{Latest: latest}
	}
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	return nil
}

// AssignTable puts a match on a table, or takes it off with a nil tableID.
func (s *ScoringService) AssignTable(ctx context.Context, ownerID, matchID uuid.UUID, tableID *int, rowVersion int64) (*bracket.Match, error) {
	if tableID != nil && *tableID < 1 {
		return nil, apperr.Validation("Table number must be at least 1.")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, lookup(err, msgMatchNotFound, "match")
	}
	t, err := s.store.GetTournamentTx(ctx, tx, m.TournamentID)
	if err != nil {
		return nil, lookup(err, msgTournamentNotFound, "tournament")
	}
	if t.OwnerID != ownerID {
		return nil, apperr.NotFound(msgMatchNotFound)
	}
	if m.RowVersion != rowVersion {
		return nil, &ConflictError{Latest: m}
	}
	if m.Status == bracket.MatchCompleted {
		return nil, apperr.InvalidOperation("Match is already completed.")
	}

	m.TableID = tableID
	if err := s.writeMatch(ctx, tx, m); err != nil {
		return nil, err
	}
	return m, tx.Commit()
}

// IssueTableToken hands out a bearer token for the scoring device at one
// table of the organizer's tournament.
func (s *ScoringService) IssueTableToken(ctx context.Context, ownerID, tournamentID uuid.UUID, tableID int) (*TableToken, error) {
	if tableID < 1 {
		return nil, apperr.Validation("Table number must be at least 1.")
	}

	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, lookup(err, msgTournamentNotFound, "tournament")
	}
	if t.OwnerID != ownerID {
		return nil, apperr.NotFound(msgTournamentNotFound)
	}

	raw, expiresAt, err := s.tokens.IssueTableToken(tournamentID, tableID)
	if err != nil {
		return nil, err
	}
	return &TableToken{Token: raw, TournamentID: tournamentID, TableID: tableID, ExpiresAt: expiresAt}, nil
}

// MatchesForTable lists the unfinished matches assigned to the device's table.
func (s *ScoringService) MatchesForTable(ctx context.Context, table actor.Table) ([]bracket.Match, error) {
	all, err := s.store.GetMatches(ctx, table.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	matches := []bracket.Match{}
	for _, m := range all {
		if m.TableID != nil && *m.TableID == table.TableID && m.Status != bracket.MatchCompleted {
			matches = append(matches, m)
		}
	}
	return matches, nil
}
