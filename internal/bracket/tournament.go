package bracket

import (
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/payout"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TournamentStatus string

const (
	TournamentUpcoming   TournamentStatus = "upcoming"
	TournamentInProgress TournamentStatus = "in_progress"
	TournamentCompleted  TournamentStatus = "completed"
)

type BracketType string

const (
	SingleElimination BracketType = "single_elimination"
	DoubleElimination BracketType = "double_elimination"
)

func (t BracketType) Valid() bool {
	return t == SingleElimination || t == DoubleElimination
}

type Ordering string

const (
	OrderingRandom Ordering = "random"
	OrderingSeeded Ordering = "seeded"
)

func (o Ordering) Valid() bool {
	return o == OrderingRandom || o == OrderingSeeded
}

const (
	DefaultBracketType   = DoubleElimination
	DefaultStage2Type    = SingleElimination
	DefaultOrdering      = OrderingRandom
	DefaultRaceTo        = 5
	MinAdvanceToStage2   = 4
	MaxTournamentNameLen = 100
)

type Tournament struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	OwnerID     uuid.UUID        `db:"owner_id" json:"ownerId"`
	Name        string           `db:"name" json:"name"`
	Description *string          `db:"description" json:"description"`
	Status      TournamentStatus `db:"status" json:"status"`
	StartUTC    *time.Time       `db:"start_utc" json:"startUtc"`

	BracketType          BracketType `db:"bracket_type" json:"bracketType"`
	BracketOrdering      Ordering    `db:"bracket_ordering" json:"bracketOrdering"`
	Stage1Ordering       Ordering    `db:"stage1_ordering" json:"stage1Ordering"`
	Stage2Type           BracketType `db:"stage2_type" json:"stage2Type"`
	Stage2Ordering       Ordering    `db:"stage2_ordering" json:"stage2Ordering"`
	IsMultiStage         bool        `db:"is_multi_stage" json:"isMultiStage"`
	AdvanceToStage2Count *int        `db:"advance_to_stage2_count" json:"advanceToStage2Count"`
	BracketSizeEstimate  *int        `db:"bracket_size_estimate" json:"bracketSizeEstimate"`

	WinnersRaceTo int `db:"winners_race_to" json:"winnersRaceTo"`
	LosersRaceTo  int `db:"losers_race_to" json:"losersRaceTo"`
	FinalsRaceTo  int `db:"finals_race_to" json:"finalsRaceTo"`

	EntryFee         decimal.NullDecimal `db:"entry_fee" json:"entryFee"`
	AdminFee         decimal.NullDecimal `db:"admin_fee" json:"adminFee"`
	AddedMoney       decimal.NullDecimal `db:"added_money" json:"addedMoney"`
	PayoutMode       payout.Mode         `db:"payout_mode" json:"payoutMode"`
	PayoutTemplateID *uuid.UUID          `db:"payout_template_id" json:"payoutTemplateId"`
	CustomPayouts    payout.Distribution `db:"custom_payouts" json:"customPayouts"`
	TotalPrize       decimal.Decimal     `db:"total_prize" json:"totalPrize"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CanEditBracket reports whether bracket-shape fields may still change.
func (t *Tournament) CanEditBracket() bool {
	return t.Status == TournamentUpcoming
}

func (t *Tournament) Config() Config {
	return Config{
		BracketType:          t.BracketType,
		BracketOrdering:      t.BracketOrdering,
		Stage1Ordering:       t.Stage1Ordering,
		Stage2Type:           t.Stage2Type,
		Stage2Ordering:       t.Stage2Ordering,
		IsMultiStage:         t.IsMultiStage,
		AdvanceToStage2Count: t.AdvanceToStage2Count,
		BracketSizeEstimate:  t.BracketSizeEstimate,
	}
}

func (t *Tournament) ApplyConfig(c Config) {
	t.BracketType = c.BracketType
	t.BracketOrdering = c.BracketOrdering
	t.Stage1Ordering = c.Stage1Ordering
	t.Stage2Type = c.Stage2Type
	t.Stage2Ordering = c.Stage2Ordering
	t.IsMultiStage = c.IsMultiStage
	t.AdvanceToStage2Count = c.AdvanceToStage2Count
	t.BracketSizeEstimate = c.BracketSizeEstimate
}

func (t *Tournament) RaceTo() RaceTo {
	return RaceTo{Winners: t.WinnersRaceTo, Losers: t.LosersRaceTo, Finals: t.FinalsRaceTo}
}

func nullToPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// PoolInput collects the prize pool factors stored on the tournament.
func (t *Tournament) PoolInput() payout.PoolInput {
	total := t.TotalPrize
	return payout.PoolInput{
		Mode:          t.PayoutMode,
		EntryFee:      nullToPtr(t.EntryFee),
		AdminFee:      nullToPtr(t.AdminFee),
		AddedMoney:    nullToPtr(t.AddedMoney),
		BracketSize:   t.BracketSizeEstimate,
		ExplicitTotal: &total,
	}
}
