package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/bracket"
	"github.com/AdamBeresnev/poolbracket/internal/payout"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/AdamBeresnev/poolbracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type shuffleFunc func(n int, swap func(i, j int))

type TournamentService struct {
	db        *sqlx.DB
	store     *store.TournamentStore
	templates *store.TemplateStore
	shuffle   shuffleFunc
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, templates *store.TemplateStore) *TournamentService {
	return &TournamentService{db: db, store: store, templates: templates, shuffle: rand.Shuffle}
}

// TournamentInput is a create or update request. Every field is optional:
// absent fields keep their stored value (or the default on create).
type TournamentInput struct {
	Name        utils.Opt[string]     `json:"name"`
	Description utils.Opt[string]     `json:"description"`
	StartUTC    utils.Opt[*time.Time] `json:"startUtc"`

	BracketType          utils.Opt[bracket.BracketType] `json:"bracketType"`
	BracketOrdering      utils.Opt[bracket.Ordering]    `json:"bracketOrdering"`
	Stage1Type           utils.Opt[bracket.BracketType] `json:"stage1Type"`
	Stage1Ordering       utils.Opt[bracket.Ordering]    `json:"stage1Ordering"`
	Stage2Type           utils.Opt[bracket.BracketType] `json:"stage2Type"`
	Stage2Ordering       utils.Opt[bracket.Ordering]    `json:"stage2Ordering"`
	IsMultiStage         utils.Opt[bool]                `json:"isMultiStage"`
	AdvanceToStage2Count utils.Opt[*int]                `json:"advanceToStage2Count"`
	BracketSizeEstimate  utils.Opt[*int]                `json:"bracketSizeEstimate"`

	WinnersRaceTo utils.Opt[int] `json:"winnersRaceTo"`
	LosersRaceTo  utils.Opt[int] `json:"losersRaceTo"`
	FinalsRaceTo  utils.Opt[int] `json:"finalsRaceTo"`

	EntryFee         utils.Opt[*decimal.Decimal]   `json:"entryFee"`
	AdminFee         utils.Opt[*decimal.Decimal]   `json:"adminFee"`
	AddedMoney       utils.Opt[*decimal.Decimal]   `json:"addedMoney"`
	PayoutMode       utils.Opt[payout.Mode]        `json:"payoutMode"`
	PayoutTemplateID utils.Opt[*uuid.UUID]         `json:"payoutTemplateId"`
	CustomPayouts    utils.Opt[payout.Distribution] `json:"customPayouts"`
	TotalPrize       utils.Opt[*decimal.Decimal]   `json:"totalPrize"`
}

func (in TournamentInput) configPatch() bracket.ConfigPatch {
	return bracket.ConfigPatch{
		BracketType:          in.BracketType,
		BracketOrdering:      in.BracketOrdering,
		Stage1Type:           in.Stage1Type,
		Stage1Ordering:       in.Stage1Ordering,
		Stage2Type:           in.Stage2Type,
		Stage2Ordering:       in.Stage2Ordering,
		IsMultiStage:         in.IsMultiStage,
		AdvanceToStage2Count: in.AdvanceToStage2Count,
		BracketSizeEstimate:  in.BracketSizeEstimate,
	}
}

type TournamentDetail struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Players    []bracket.Player    `json:"players"`
	Stages     []bracket.Stage     `json:"stages"`
	Matches    []bracket.Match     `json:"matches"`
}

func (s *TournamentService) Create(ctx context.Context, ownerID uuid.UUID, in TournamentInput) (*bracket.Tournament, error) {
	cfg, err := bracket.ResolveCreate(in.configPatch())
	if err != nil {
		return nil, err
	}
	if _, ok := utils.TrimmedText(in.Name).Get(); !ok {
		return nil, apperr.Validation("Name is required.")
	}

	now := time.Now().UTC()
	t := &bracket.Tournament{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Status:        bracket.TournamentUpcoming,
		WinnersRaceTo: bracket.DefaultRaceTo,
		LosersRaceTo:  bracket.DefaultRaceTo,
		FinalsRaceTo:  bracket.DefaultRaceTo,
		PayoutMode:    payout.ModeTemplate,
		CustomPayouts: payout.Distribution{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	t.ApplyConfig(cfg)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.applyDetails(ctx, tx, t, in); err != nil {
		return nil, err
	}
	t.TotalPrize = payout.CalculatePool(t.PoolInput())

	if err := s.store.CreateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	return t, tx.Commit()
}

// Update applies a partial update. Bracket-shape fields are ignored once the
// tournament has started, and nothing is written unless the whole request
// validates.
func (s *TournamentService) Update(ctx context.Context, id, ownerID uuid.UUID, in TournamentInput) (*bracket.Tournament, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.ownedTournamentTx(ctx, tx, id, ownerID)
	if err != nil {
		return nil, err
	}

	registered, err := s.store.CountPlayersTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}

	cfg, err := bracket.ResolveUpdate(t.Config(), in.configPatch(), bracket.UpdateContext{
		CanEditBracket:    t.CanEditBracket(),
		RegisteredPlayers: registered,
	})
	if err != nil {
		return nil, err
	}
	t.ApplyConfig(cfg)

	if err := s.applyDetails(ctx, tx, t, in); err != nil {
		return nil, err
	}
	t.TotalPrize = payout.CalculatePool(t.PoolInput())
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	return t, tx.Commit()
}

// applyDetails copies the non-bracket fields of the request onto t.
func (s *TournamentService) applyDetails(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, in TournamentInput) error {
	if name, ok := utils.TrimmedText(in.Name).Get(); ok {
		if utf8.RuneCountInString(name) > bracket.MaxTournamentNameLen {
			return apperr.Validationf("Name must be at most %d characters.", bracket.MaxTournamentNameLen)
		}
		t.Name = name
	}
	if desc, ok := utils.TrimmedText(in.Description).Get(); ok {
		t.Description = &desc
	}
	if start, ok := in.StartUTC.Get(); ok {
		t.StartUTC = start
	}

	for _, r := range []struct {
		opt utils.Opt[int]
		dst *int
	}{
		{in.WinnersRaceTo, &t.WinnersRaceTo},
		{in.LosersRaceTo, &t.LosersRaceTo},
		{in.FinalsRaceTo, &t.FinalsRaceTo},
	} {
		if v, ok := r.opt.Get(); ok {
			if v < 1 {
				return apperr.Validation("Race-to must be at least 1.")
			}
			*r.dst = v
		}
	}

	for _, f := range []struct {
		opt utils.Opt[*decimal.Decimal]
		dst *decimal.NullDecimal
	}{
		{in.EntryFee, &t.EntryFee},
		{in.AdminFee, &t.AdminFee},
		{in.AddedMoney, &t.AddedMoney},
	} {
		if v, ok := f.opt.Get(); ok {
			if v == nil {
				*f.dst = decimal.NullDecimal{}
				continue
			}
			if v.IsNegative() {
				return apperr.Validation("Fees and added money cannot be negative.")
			}
			*f.dst = decimal.NewNullDecimal(*v)
		}
	}

	if mode, ok := in.PayoutMode.Get(); ok {
		if !mode.Valid() {
			return apperr.Validationf("Unknown payout mode %q.", mode)
		}
		t.PayoutMode = mode
	}

	if tplID, ok := in.PayoutTemplateID.Get(); ok {
		if tplID != nil {
			tpl, err := s.templates.GetTemplateTx(ctx, tx, *tplID)
			if err != nil {
				return lookup(err, msgTemplateNotFound, "payout template")
			}
			if tpl.OwnerID != t.OwnerID {
				return apperr.NotFound(msgTemplateNotFound)
			}
		}
		t.PayoutTemplateID = tplID
	}

	if custom, ok := in.CustomPayouts.Get(); ok {
		if len(custom) > 0 {
			if err := payout.ValidateTotal(custom); err != nil {
				return err
			}
		}
		if custom == nil {
			custom = payout.Distribution{}
		}
		t.CustomPayouts = custom
	}

	if total, ok := in.TotalPrize.Get(); ok {
		if total == nil {
			t.TotalPrize = decimal.Zero
		} else {
			t.TotalPrize = *total
		}
	}

	return nil
}

func (s *TournamentService) ownedTournamentTx(ctx context.Context, tx *sqlx.Tx, id, ownerID uuid.UUID) (*bracket.Tournament, error) {
	t, err := s.store.GetTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, lookup(err, msgTournamentNotFound, "tournament")
	}
	if t.OwnerID != ownerID {
		return nil, apperr.NotFound(msgTournamentNotFound)
	}
	return t, nil
}

func (s *TournamentService) Get(ctx context.Context, id, ownerID uuid.UUID) (*TournamentDetail, error) {
	t, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, lookup(err, msgTournamentNotFound, "tournament")
	}
	if t.OwnerID != ownerID {
		return nil, apperr.NotFound(msgTournamentNotFound)
	}

	players, err := s.store.GetPlayers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	stages, err := s.store.GetStages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}
	matches, err := s.store.GetMatches(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	return &TournamentDetail{Tournament: t, Players: players, Stages: stages, Matches: matches}, nil
}

// Bracket returns the tournament's stages laid out for display.
func (s *TournamentService) Bracket(ctx context.Context, id, ownerID uuid.UUID) ([]bracket.Layout, error) {
	detail, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return bracket.BuildLayouts(detail.Stages, detail.Players, detail.Matches), nil
}

func (s *TournamentService) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	return s.store.GetTournamentsByOwner(ctx, ownerID)
}

// ParsePlayerNames splits pasted text into one name per non-empty line.
func ParsePlayerNames(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// AddPlayers registers players in the given order; their seeds continue after
// the players already registered.
func (s *TournamentService) AddPlayers(ctx context.Context, id, ownerID uuid.UUID, names []string) ([]bracket.Player, error) {
	var cleaned []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperr.Validation("At least one player name is required.")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.ownedTournamentTx(ctx, tx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if t.Status != bracket.TournamentUpcoming {
		return nil, apperr.InvalidOperation("Players can only be added before the tournament starts.")
	}

	registered, err := s.store.CountPlayersTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}
	if t.BracketSizeEstimate != nil && registered+len(cleaned) > *t.BracketSizeEstimate {
		return nil, apperr.Validationf("The bracket is limited to %d players.", *t.BracketSizeEstimate)
	}

	now := time.Now().UTC()
	players := make([]bracket.Player, len(cleaned))
	for i, name := range cleaned {
		players[i] = bracket.Player{
			ID:           uuid.New(),
			TournamentID: id,
			Name:         name,
			Seed:         registered + i + 1,
			CreatedAt:    now,
		}
	}

	if err := s.store.CreatePlayers(ctx, tx, players); err != nil {
		return nil, fmt.Errorf("failed to add players: %w", err)
	}

	return players, tx.Commit()
}

// Start locks the bracket configuration, lays out the stages and generates
// the Stage 1 matches.
func (s *TournamentService) Start(ctx context.Context, id, ownerID uuid.UUID) (*TournamentDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.ownedTournamentTx(ctx, tx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if t.Status != bracket.TournamentUpcoming {
		return nil, apperr.InvalidOperation("Tournament has already started.")
	}

	players, err := s.store.GetPlayersTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	if len(players) < 2 {
		return nil, apperr.Validation("At least 2 players are required to start a bracket.")
	}

	advance := 0
	if t.IsMultiStage && t.AdvanceToStage2Count != nil {
		advance = *t.AdvanceToStage2Count
		if bracket.CalcBracketSize(len(players)) < 2*advance {
			return nil, apperr.Validationf("More than %d players are required to advance %d to Stage 2.", advance, advance)
		}
	}

	now := time.Now().UTC()
	stages := bracket.StagesFor(t)
	for i := range stages {
		stages[i].CreatedAt = now
	}

	matches, err := bracket.Generate(bracket.GenerateInput{
		TournamentID: t.ID,
		StageID:      stages[0].ID,
		Type:         stages[0].Type,
		Players:      bracket.OrderPlayers(players, stages[0].Ordering, s.shuffle),
		AdvanceCount: advance,
		RaceTo:       t.RaceTo(),
	})
	if err != nil {
		return nil, err
	}
	if err := checkStage(matches); err != nil {
		return nil, err
	}
	stampNew(matches, now)

	if err := s.store.CreateStages(ctx, tx, stages); err != nil {
		return nil, fmt.Errorf("failed to create stages: %w", err)
	}
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}

	t.Status = bracket.TournamentInProgress
	t.UpdatedAt = now
	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &TournamentDetail{Tournament: t, Players: players, Stages: stages, Matches: matches}, nil
}

func stampNew(matches []bracket.Match, now time.Time) {
	for i := range matches {
		matches[i].RowVersion = 1
		matches[i].CreatedAt = now
		matches[i].UpdatedAt = now
	}
}
