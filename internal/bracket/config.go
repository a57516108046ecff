package bracket

import (
	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/utils"
)

// User-facing validation messages. Clients match on these strings.
const (
	MsgSingleElimMultiStageCreate = "Single Elimination is not compatible with multi-stage tournaments. Choose Double Elimination for Stage 1."
	MsgSingleElimMultiStageUpdate = "Single Elimination cannot be used for Stage 1 of a multi-stage tournament. Choose Double Elimination."
	MsgAdvanceRequired            = "AdvanceToStage2Count is required for multi-stage tournaments."
	MsgAdvanceAtLeast4            = "AdvanceToStage2Count must be at least 4 for multi-stage tournaments."
	MsgAdvancePowerOf2            = "AdvanceToStage2Count must be a power of 2 (4,8,16,...)"
	MsgBracketSizeBelowPlayers    = "Cannot reduce bracket size below current player count"
)

// Config is the bracket shape of a tournament.
type Config struct {
	BracketType          BracketType
	BracketOrdering      Ordering
	Stage1Ordering       Ordering
	Stage2Type           BracketType
	Stage2Ordering       Ordering
	IsMultiStage         bool
	AdvanceToStage2Count *int
	BracketSizeEstimate  *int
}

// ConfigPatch carries the bracket-shape fields of a create or update request.
type ConfigPatch struct {
	BracketType          utils.Opt[BracketType]
	BracketOrdering      utils.Opt[Ordering]
	Stage1Type           utils.Opt[BracketType]
	Stage1Ordering       utils.Opt[Ordering]
	Stage2Type           utils.Opt[BracketType]
	Stage2Ordering       utils.Opt[Ordering]
	IsMultiStage         utils.Opt[bool]
	AdvanceToStage2Count utils.Opt[*int]
	BracketSizeEstimate  utils.Opt[*int]
}

type UpdateContext struct {
	CanEditBracket    bool
	RegisteredPlayers int
}

func DefaultConfig() Config {
	return Config{
		BracketType:     DefaultBracketType,
		BracketOrdering: DefaultOrdering,
		Stage1Ordering:  DefaultOrdering,
		Stage2Type:      DefaultStage2Type,
		Stage2Ordering:  DefaultOrdering,
	}
}

// ResolveCreate resolves a new tournament's configuration against the defaults.
func ResolveCreate(p ConfigPatch) (Config, error) {
	return resolve(DefaultConfig(), p, 0, MsgSingleElimMultiStageCreate)
}

// ResolveUpdate resolves a patch against the persisted configuration. When the
// bracket can no longer be edited the patch is ignored and current is returned.
func ResolveUpdate(current Config, p ConfigPatch, uc UpdateContext) (Config, error) {
	if !uc.CanEditBracket {
		return current, nil
	}
	return resolve(current, p, uc.RegisteredPlayers, MsgSingleElimMultiStageUpdate)
}

func resolve(base Config, p ConfigPatch, registeredPlayers int, singleElimMsg string) (Config, error) {
	if err := validateEnums(p); err != nil {
		return Config{}, err
	}

	out := base

	// Stage1Type wins over BracketType, which wins over what is stored.
	out.BracketType = p.Stage1Type.Or(p.BracketType.Or(base.BracketType))
	if !out.BracketType.Valid() {
		out.BracketType = DefaultBracketType
	}

	// BracketOrdering always mirrors the resolved Stage 1 ordering.
	stage1Ordering := base.Stage1Ordering
	if !stage1Ordering.Valid() {
		stage1Ordering = DefaultOrdering
	}
	stage1Ordering = p.Stage1Ordering.Or(p.BracketOrdering.Or(stage1Ordering))
	out.Stage1Ordering = stage1Ordering
	out.BracketOrdering = stage1Ordering

	out.IsMultiStage = p.IsMultiStage.Or(base.IsMultiStage)
	out.AdvanceToStage2Count = p.AdvanceToStage2Count.Or(base.AdvanceToStage2Count)

	if out.IsMultiStage {
		if out.BracketType == SingleElimination {
			return Config{}, apperr.Validation(singleElimMsg)
		}
		if err := validateAdvanceCount(out.AdvanceToStage2Count); err != nil {
			return Config{}, err
		}
		out.Stage2Type = p.Stage2Type.Or(base.Stage2Type)
		out.Stage2Ordering = p.Stage2Ordering.Or(base.Stage2Ordering)
		if !out.Stage2Type.Valid() {
			out.Stage2Type = DefaultStage2Type
		}
		if !out.Stage2Ordering.Valid() {
			out.Stage2Ordering = DefaultOrdering
		}
	} else {
		out.AdvanceToStage2Count = nil
		out.Stage2Type = DefaultStage2Type
		out.Stage2Ordering = DefaultOrdering
	}

	if size, ok := p.BracketSizeEstimate.Get(); ok {
		if size != nil && *size < registeredPlayers {
			return Config{}, apperr.Validation(MsgBracketSizeBelowPlayers)
		}
		out.BracketSizeEstimate = size
	}

	return out, nil
}

func validateAdvanceCount(count *int) error {
	if count == nil {
		return apperr.Validation(MsgAdvanceRequired)
	}
	if *count < MinAdvanceToStage2 {
		return apperr.Validation(MsgAdvanceAtLeast4)
	}
	if !IsPowerOfTwo(*count) {
		return apperr.Validation(MsgAdvancePowerOf2)
	}
	return nil
}

func validateEnums(p ConfigPatch) error {
	for _, o := range []utils.Opt[BracketType]{p.BracketType, p.Stage1Type, p.Stage2Type} {
		if v, ok := o.Get(); ok && !v.Valid() {
			return apperr.Validationf("Unknown bracket type %q.", v)
		}
	}
	for _, o := range []utils.Opt[Ordering]{p.BracketOrdering, p.Stage1Ordering, p.Stage2Ordering} {
		if v, ok := o.Get(); ok && !v.Valid() {
			return apperr.Validationf("Unknown bracket ordering %q.", v)
		}
	}
	return nil
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
