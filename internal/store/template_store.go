package store

import (
	"context"

	"github.com/AdamBeresnev/poolbracket/internal/payout"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TemplateStore struct {
	db *sqlx.DB
}

const (
	insertTemplateQuery = `
		INSERT INTO payout_templates (id, owner_id, name, min_players, max_players, places, percents, created_at, updated_at)
		VALUES (:id, :owner_id, :name, :min_players, :max_players, :places, :percents, :created_at, :updated_at)
	`
	updateTemplateQuery = `
		UPDATE payout_templates SET
			name = :name,
			min_players = :min_players,
			max_players = :max_players,
			places = :places,
			percents = :percents,
			updated_at = :updated_at
		WHERE id = :id AND owner_id = :owner_id
	`
	// Overlapping bands resolve to the narrowest one, then the oldest.
	findTemplateForCountQuery = `
		SELECT * FROM payout_templates
		WHERE owner_id = ? AND min_players <= ? AND max_players >= ?
		ORDER BY (max_players - min_players) ASC, created_at ASC
		LIMIT 1
	`
)

func NewTemplateStore(db *sqlx.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) CreateTemplate(ctx context.Context, tx *sqlx.Tx, tpl *payout.Template) error {
	_, err := tx.NamedExecContext(ctx, insertTemplateQuery, tpl)
	return err
}

// UpdateTemplate reports whether a row owned by tpl.OwnerID was updated.
func (s *TemplateStore) UpdateTemplate(ctx context.Context, tx *sqlx.Tx, tpl *payout.Template) (bool, error) {
	res, err := tx.NamedExecContext(ctx, updateTemplateQuery, tpl)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *TemplateStore) GetTemplate(ctx context.Context, id uuid.UUID) (*payout.Template, error) {
	var tpl payout.Template
	err := s.db.GetContext(ctx, &tpl, s.db.Rebind("SELECT * FROM payout_templates WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *TemplateStore) GetTemplateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*payout.Template, error) {
	var tpl payout.Template
	err := tx.GetContext(ctx, &tpl, tx.Rebind("SELECT * FROM payout_templates WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *TemplateStore) GetTemplatesByOwner(ctx context.Context, ownerID uuid.UUID) ([]payout.Template, error) {
	templates := []payout.Template{}
	err := s.db.SelectContext(ctx, &templates, s.db.Rebind("SELECT * FROM payout_templates WHERE owner_id = ? ORDER BY min_players ASC, name ASC"), ownerID)
	return templates, err
}

func (s *TemplateStore) FindTemplateForPlayerCount(ctx context.Context, ownerID uuid.UUID, count int) (*payout.Template, error) {
	var tpl payout.Template
	err := s.db.GetContext(ctx, &tpl, s.db.Rebind(findTemplateForCountQuery), ownerID, count, count)
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}
