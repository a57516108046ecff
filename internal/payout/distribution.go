// Package payout turns a rank-to-percentage prize table into money amounts.
package payout

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/shopspring/decimal"
)

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.RequireFromString("0.01")
)

// Currency precision for payout amounts.
const amountPlaces = 2

type Share struct {
	Rank    int             `json:"rank"`
	Percent decimal.Decimal `json:"percent"`
}

type Distribution []Share

type Payout struct {
	Rank    int             `json:"rank"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

type Breakdown struct {
	TotalPrize decimal.Decimal `json:"totalPrize"`
	Payouts    []Payout        `json:"payouts"`
}

// TotalError reports a distribution whose percentages do not add up to 100.
type TotalError struct {
	Total decimal.Decimal
}

func (e *TotalError) Error() string {
	return fmt.Sprintf("Payout percentages must total 100%% (got %s%%).", e.Total.String())
}

func (e *TotalError) Is(target error) bool {
	return target == apperr.ErrValidation
}

func (d Distribution) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range d {
		sum = sum.Add(s.Percent)
	}
	return sum
}

// ValidateTotal accepts a distribution summing to 100 within +/-0.01.
func ValidateTotal(d Distribution) error {
	if len(d) == 0 {
		return &TotalError{Total: decimal.Zero}
	}

	seen := make(map[int]bool, len(d))
	for _, s := range d {
		if s.Rank < 1 || seen[s.Rank] {
			return apperr.Validation("Payout ranks must be unique positive numbers.")
		}
		if s.Percent.IsNegative() {
			return apperr.Validation("Payout percentages cannot be negative.")
		}
		seen[s.Rank] = true
	}

	total := d.Total()
	if total.Sub(hundred).Abs().GreaterThan(tolerance) {
		return &TotalError{Total: total}
	}
	return nil
}

// Apply splits pool across the distribution. The caller is responsible for
// validation; stored templates are trusted. Rounding leftovers go to the
// lowest rank so the amounts always add up to the pool.
func Apply(d Distribution, pool decimal.Decimal) []Payout {
	if !pool.IsPositive() || len(d) == 0 {
		return []Payout{}
	}

	sorted := make(Distribution, len(d))
	copy(sorted, d)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})

	payouts := make([]Payout, 0, len(sorted))
	allocated := decimal.Zero
	for _, s := range sorted {
		amount := pool.Mul(s.Percent).Div(hundred).Round(amountPlaces)
		allocated = allocated.Add(amount)
		payouts = append(payouts, Payout{Rank: s.Rank, Percent: s.Percent, Amount: amount})
	}

	if remainder := pool.Sub(allocated); !remainder.IsZero() {
		payouts[0].Amount = payouts[0].Amount.Add(remainder)
	}

	return payouts
}

// Simulate validates the distribution and applies it to an arbitrary pool.
func Simulate(d Distribution, pool decimal.Decimal) (Breakdown, error) {
	if err := ValidateTotal(d); err != nil {
		return Breakdown{}, err
	}
	return Breakdown{TotalPrize: pool, Payouts: Apply(d, pool)}, nil
}

func (d Distribution) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan never fails: a missing or unreadable payload becomes an empty
// distribution.
func (d *Distribution) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Distribution{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		slog.Warn("unexpected payout distribution column type", "type", fmt.Sprintf("%T", src))
		*d = Distribution{}
		return nil
	}

	var shares Distribution
	if err := json.Unmarshal(raw, &shares); err != nil {
		slog.Warn("corrupt payout distribution, treating as empty", "error", err)
		*d = Distribution{}
		return nil
	}
	if shares == nil {
		shares = Distribution{}
	}
	*d = shares
	return nil
}
