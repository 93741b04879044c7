package ledger

import "github.com/shopspring/decimal"

type Plan struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	DailyRate decimal.Decimal `json:"daily_rate"`
	TotalDays int             `json:"total_days"`
	MinAmount decimal.Decimal `json:"min_amount"`
	MaxAmount decimal.Decimal `json:"max_amount"`
}

var plans = []Plan{
	{ID: 1, Name: "Starter Plan", DailyRate: decimal.RequireFromString("0.04"), TotalDays: 80,
		MinAmount: decimal.NewFromInt(599), MaxAmount: decimal.NewFromInt(1099)},
	{ID: 2, Name: "Growth Plan", DailyRate: decimal.RequireFromString("0.04"), TotalDays: 110,
		MinAmount: decimal.NewFromInt(1799), MaxAmount: decimal.NewFromInt(3050)},
	{ID: 3, Name: "Premium Plan", DailyRate: decimal.RequireFromString("0.05"), TotalDays: 150,
		MinAmount: decimal.NewFromInt(10000), MaxAmount: decimal.NewFromInt(20000)},
}

func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func LookupPlan(id int) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Accepts reports whether amount lies within the plan's purchase range.
func (p Plan) Accepts(amount decimal.Decimal) bool {
	return !amount.LessThan(p.MinAmount) && !amount.GreaterThan(p.MaxAmount)
}

// DailyReturnFor is the per-day credit for a principal, rounded to paise.
func (p Plan) DailyReturnFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.DailyRate).Round(2)
}
