package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Decision is the deterministic adjudication outcome.
type Decision struct {
	Status Status
	Payout decimal.Decimal
}

// Decide approves when damage reaches the threshold. The payout is
// coverage * damage / 100 rounded half-up to paise; rejected claims pay zero.
func Decide(damage, threshold, coverage decimal.Decimal) Decision {
	if damage.LessThan(threshold) {
		return Decision{Status: StatusRejected, Payout: decimal.Zero}
	}
	return Decision{
		Status: StatusApproved,
		Payout: coverage.Mul(damage).Div(hundred).Round(2),
	}
}
