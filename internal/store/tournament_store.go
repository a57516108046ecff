package store

import (
	"context"
	"errors"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrStaleMatch means the row changed since it was read.
var ErrStaleMatch = errors.New("match was modified concurrently")

type TournamentStore struct {
	db *sqlx.DB
}

const (
	insertTournamentQuery = `
		INSERT INTO tournaments (id, owner_id, name, description, status, start_utc,
			bracket_type, bracket_ordering, stage1_ordering, stage2_type, stage2_ordering,
			is_multi_stage, advance_to_stage2_count, bracket_size_estimate,
			winners_race_to, losers_race_to, finals_race_to,
			entry_fee, admin_fee, added_money, payout_mode, payout_template_id, custom_payouts, total_prize,
			created_at, updated_at)
		VALUES (:id, :owner_id, :name, :description, :status, :start_utc,
			:bracket_type, :bracket_ordering, :stage1_ordering, :stage2_type, :stage2_ordering,
			:is_multi_stage, :advance_to_stage2_count, :bracket_size_estimate,
			:winners_race_to, :losers_race_to, :finals_race_to,
			:entry_fee, :admin_fee, :added_money, :payout_mode, :payout_template_id, :custom_payouts, :total_prize,
			:created_at, :updated_at)
	`
	updateTournamentQuery = `
		UPDATE tournaments SET
			name = :name,
			description = :description,
			status = :status,
			start_utc = :start_utc,
			bracket_type = :bracket_type,
			bracket_ordering = :bracket_ordering,
			stage1_ordering = :stage1_ordering,
			stage2_type = :stage2_type,
			stage2_ordering = :stage2_ordering,
			is_multi_stage = :is_multi_stage,
			advance_to_stage2_count = :advance_to_stage2_count,
			bracket_size_estimate = :bracket_size_estimate,
			winners_race_to = :winners_race_to,
			losers_race_to = :losers_race_to,
			finals_race_to = :finals_race_to,
			entry_fee = :entry_fee,
			admin_fee = :admin_fee,
			added_money = :added_money,
			payout_mode = :payout_mode,
			payout_template_id = :payout_template_id,
			custom_payouts = :custom_payouts,
			total_prize = :total_prize,
			updated_at = :updated_at
		WHERE id = :id
	`
	insertPlayerQuery = `
		INSERT INTO tournament_players (id, tournament_id, name, seed, created_at)
		VALUES (:id, :tournament_id, :name, :seed, :created_at)
	`
	insertStageQuery = `
		INSERT INTO tournament_stages (id, tournament_id, stage_no, bracket_type, status, advance_count, ordering, completed_at, created_at)
		VALUES (:id, :tournament_id, :stage_no, :bracket_type, :status, :advance_count, :ordering, :completed_at, :created_at)
	`
	updateStageQuery = `
		UPDATE tournament_stages SET status = :status, completed_at = :completed_at WHERE id = :id
	`
	insertMatchQuery = `
		INSERT INTO matches (id, tournament_id, stage_id, bracket_side, round_number, position_in_round,
			player1_tp_id, player2_tp_id, player1_source_type, player1_source_match_id,
			player2_source_type, player2_source_match_id, next_winner_match_id, next_loser_match_id,
			race_to, status, score_p1, score_p2, winner_tp_id, table_id, scheduled_utc, is_bye,
			row_version, created_at, updated_at)
		VALUES (:id, :tournament_id, :stage_id, :bracket_side, :round_number, :position_in_round,
			:player1_tp_id, :player2_tp_id, :player1_source_type, :player1_source_match_id,
			:player2_source_type, :player2_source_match_id, :next_winner_match_id, :next_loser_match_id,
			:race_to, :status, :score_p1, :score_p2, :winner_tp_id, :table_id, :scheduled_utc, :is_bye,
			:row_version, :created_at, :updated_at)
	`
	updateMatchQuery = `
		UPDATE matches SET
			player1_tp_id = ?,
			player2_tp_id = ?,
			status = ?,
			score_p1 = ?,
			score_p2 = ?,
			winner_tp_id = ?,
			table_id = ?,
			scheduled_utc = ?,
			row_version = ?,
			updated_at = ?
		WHERE id = ? AND row_version = ?
	`
	matchOrder = `
		ORDER BY CASE bracket_side WHEN 'winners' THEN 0 WHEN 'losers' THEN 1 ELSE 2 END,
			round_number ASC, position_in_round ASC
	`
)

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, insertTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) UpdateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, updateTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, s.db.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := tx.GetContext(ctx, &tournament, tx.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, s.db.Rebind("SELECT * FROM tournaments WHERE owner_id = ? ORDER BY created_at DESC"), ownerID)
	return tournaments, err
}

func (s *TournamentStore) CreatePlayers(ctx context.Context, tx *sqlx.Tx, players []bracket.Player) error {
	if len(players) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, insertPlayerQuery, players)
	return err
}

func (s *TournamentStore) GetPlayers(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Player, error) {
	players := []bracket.Player{}
	err := s.db.SelectContext(ctx, &players, s.db.Rebind("SELECT * FROM tournament_players WHERE tournament_id = ? ORDER BY seed ASC"), tournamentID)
	return players, err
}

func (s *TournamentStore) GetPlayersTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Player, error) {
	players := []bracket.Player{}
	err := tx.SelectContext(ctx, &players, tx.Rebind("SELECT * FROM tournament_players WHERE tournament_id = ? ORDER BY seed ASC"), tournamentID)
	return players, err
}

func (s *TournamentStore) CountPlayers(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM tournament_players WHERE tournament_id = ?"), tournamentID)
	return count, err
}

func (s *TournamentStore) CountPlayersTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM tournament_players WHERE tournament_id = ?"), tournamentID)
	return count, err
}

func (s *TournamentStore) CreateStages(ctx context.Context, tx *sqlx.Tx, stages []bracket.Stage) error {
	for i := range stages {
		if _, err := tx.NamedExecContext(ctx, insertStageQuery, &stages[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) UpdateStage(ctx context.Context, tx *sqlx.Tx, stage *bracket.Stage) error {
	_, err := tx.NamedExecContext(ctx, updateStageQuery, stage)
	return err
}

func (s *TournamentStore) GetStages(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Stage, error) {
	stages := []bracket.Stage{}
	err := s.db.SelectContext(ctx, &stages, s.db.Rebind("SELECT * FROM tournament_stages WHERE tournament_id = ? ORDER BY stage_no ASC"), tournamentID)
	return stages, err
}

func (s *TournamentStore) GetStagesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Stage, error) {
	stages := []bracket.Stage{}
	err := tx.SelectContext(ctx, &stages, tx.Rebind("SELECT * FROM tournament_stages WHERE tournament_id = ? ORDER BY stage_no ASC"), tournamentID)
	return stages, err
}

// CreateMatches inserts one row at a time; large brackets would otherwise run
// into SQLite's bound parameter limit.
func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	for i := range matches {
		if _, err := tx.NamedExecContext(ctx, insertMatchQuery, &matches[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := s.db.SelectContext(ctx, &matches, s.db.Rebind("SELECT * FROM matches WHERE tournament_id = ?"+matchOrder), tournamentID)
	return matches, err
}

func (s *TournamentStore) GetStageMatchesTx(ctx context.Context, tx *sqlx.Tx, stageID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := tx.SelectContext(ctx, &matches, tx.Rebind("SELECT * FROM matches WHERE stage_id = ?"+matchOrder), stageID)
	return matches, err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, s.db.Rebind("SELECT * FROM matches WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, tx.Rebind("SELECT * FROM matches WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// UpdateMatch writes the mutable columns of a match only if its row version
// still matches the one it was read with. On success the version is bumped
// in place; otherwise ErrStaleMatch is returned.
func (s *TournamentStore) UpdateMatch(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	expected := match.RowVersion
	next := expected + 1
	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, tx.Rebind(updateMatchQuery),
		match.Player1TpID, match.Player2TpID, match.Status,
		match.ScoreP1, match.ScoreP2, match.WinnerTpID,
		match.TableID, match.ScheduledUTC,
		next, now,
		match.ID, expected,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleMatch
	}

	match.RowVersion = next
	match.UpdatedAt = now
	return nil
}
