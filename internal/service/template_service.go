package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/payout"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TemplateService struct {
	db    *sqlx.DB
	store *store.TemplateStore
}

func NewTemplateService(db *sqlx.DB, store *store.TemplateStore) *TemplateService {
	return &TemplateService{db: db, store: store}
}

type TemplateInput struct {
	Name       string              `json:"name"`
	MinPlayers int                 `json:"minPlayers"`
	MaxPlayers int                 `json:"maxPlayers"`
	Percents   payout.Distribution `json:"percents"`
}

func (in TemplateInput) validate() (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", apperr.Validation("Name is required.")
	}
	if in.MinPlayers > in.MaxPlayers {
		return "", apperr.Validation("MinPlayers cannot be greater than MaxPlayers.")
	}
	if err := payout.ValidateTotal(in.Percents); err != nil {
		return "", err
	}
	return name, nil
}

func (s *TemplateService) Create(ctx context.Context, ownerID uuid.UUID, in TemplateInput) (*payout.Template, error) {
	name, err := in.validate()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tpl := &payout.Template{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		MinPlayers: in.MinPlayers,
		MaxPlayers: in.MaxPlayers,
		Places:     len(in.Percents),
		Percents:   in.Percents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateTemplate(ctx, tx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create payout template: %w", err)
	}

	return tpl, tx.Commit()
}

// Update replaces every field of a template. Templates owned by someone else
// look exactly like missing ones.
func (s *TemplateService) Update(ctx context.Context, id, ownerID uuid.UUID, in TemplateInput) (*payout.Template, error) {
	name, err := in.validate()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tpl, err := s.store.GetTemplateTx(ctx, tx, id)
	if err != nil {
		return nil, lookup(err, msgTemplateNotFound, "payout template")
	}
	if tpl.OwnerID != ownerID {
		return nil, apperr.NotFound(msgTemplateNotFound)
	}

	tpl.Name = name
	tpl.MinPlayers = in.MinPlayers
	tpl.MaxPlayers = in.MaxPlayers
	tpl.Percents = in.Percents
	tpl.Places = len(in.Percents)
	tpl.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateTemplate(ctx, tx, tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to update payout template: %w", err)
	}
	if !updated {
		return nil, apperr.NotFound(msgTemplateNotFound)
	}

	return tpl, tx.Commit()
}

func (s *TemplateService) Get(ctx context.Context, id, ownerID uuid.UUID) (*payout.Template, error) {
	tpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, lookup(err, msgTemplateNotFound, "payout template")
	}
	if tpl.OwnerID != ownerID {
		return nil, apperr.NotFound(msgTemplateNotFound)
	}
	return tpl, nil
}

func (s *TemplateService) List(ctx context.Context, ownerID uuid.UUID) ([]payout.Template, error) {
	return s.store.GetTemplatesByOwner(ctx, ownerID)
}

// FindForPlayerCount returns the owner's template whose band covers count,
// or nil when none does.
func (s *TemplateService) FindForPlayerCount(ctx context.Context, ownerID uuid.UUID, count int) (*payout.Template, error) {
	tpl, err := s.store.FindTemplateForPlayerCount(ctx, ownerID, count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payout template: %w", err)
	}
	return tpl, nil
}
