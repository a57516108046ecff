package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/payout"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type PayoutService struct {
	store     *store.TournamentStore
	templates *TemplateService
}

func NewPayoutService(store *store.TournamentStore, templates *TemplateService) *PayoutService {
	return &PayoutService{store: store, templates: templates}
}

// Breakdown splits a tournament's prize pool using its effective
// distribution: the custom one in custom mode, otherwise the selected
// template, otherwise the owner's template for the field size. It only reads.
func (s *PayoutService) Breakdown(ctx context.Context, tournamentID uuid.UUID) (*payout.Breakdown, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, lookup(err, msgTournamentNotFound, "tournament")
	}

	var (
		players  int
		selected *payout.Template
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountPlayers(gctx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to count players: %w", err)
		}
		players = n
		return nil
	})
	if t.PayoutMode == payout.ModeTemplate && t.PayoutTemplateID != nil {
		g.Go(func() error {
			tpl, err := s.templates.Get(gctx, *t.PayoutTemplateID, t.OwnerID)
			if errors.Is(err, apperr.ErrNotFound) {
				slog.Warn("payout template of tournament is gone", "tournament_id", t.ID, "template_id", *t.PayoutTemplateID)
				return nil
			}
			if err != nil {
				return err
			}
			selected = tpl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dist := payout.Distribution{}
	switch {
	case t.PayoutMode == payout.ModeCustom:
		dist = t.CustomPayouts
	case selected != nil:
		dist = selected.Percents
	default:
		field := players
		if field == 0 && t.BracketSizeEstimate != nil {
			field = *t.BracketSizeEstimate
		}
		tpl, err := s.templates.FindForPlayerCount(ctx, t.OwnerID, field)
		if err != nil {
			return nil, err
		}
		if tpl != nil {
			dist = tpl.Percents
		}
	}

	return &payout.Breakdown{TotalPrize: t.TotalPrize, Payouts: payout.Apply(dist, t.TotalPrize)}, nil
}

// Simulate previews a distribution against an arbitrary pool.
func (s *PayoutService) Simulate(d payout.Distribution, pool decimal.Decimal) (payout.Breakdown, error) {
	return payout.Simulate(d, pool)
}
