package payout

import (
	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeTemplate Mode = "template"
	ModeCustom   Mode = "custom"
)

func (m Mode) Valid() bool {
	return m == ModeTemplate || m == ModeCustom
}

type PoolInput struct {
	Mode          Mode
	EntryFee      *decimal.Decimal
	AdminFee      *decimal.Decimal
	AddedMoney    *decimal.Decimal
	BracketSize   *int
	ExplicitTotal *decimal.Decimal
}

func orZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}

// CalculatePool derives the prize pool. Template mode builds it from fees,
// custom mode passes the explicit total through. The result is never negative.
func CalculatePool(in PoolInput) decimal.Decimal {
	var total decimal.Decimal

	switch in.Mode {
	case ModeCustom:
		total = orZero(in.ExplicitTotal)
	default:
		size := decimal.Zero
		if in.BracketSize != nil {
			size = decimal.NewFromInt(int64(*in.BracketSize))
		}
		total = size.Mul(orZero(in.EntryFee)).
			Add(orZero(in.AddedMoney)).
			Sub(size.Mul(orZero(in.AdminFee)))
	}

	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
