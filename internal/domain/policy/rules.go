// Package policy holds the engine-wide business constants. Per-group money
// settings live on group.Group; these apply to every group.
package policy

import (
	"errors"

	"github.com/shopspring/decimal"
)

type Rules struct {
	// MinContributionPeriods is the number of distinct completed months a
	// member needs before borrowing.
	MinContributionPeriods int
	MinPeriodMonths        int
	MaxPeriodMonths        int
	// RepaymentEpsilon is the rounding tolerance when closing a loan.
	RepaymentEpsilon decimal.Decimal
}

func Default() Rules {
	return Rules{
		MinContributionPeriods: 3,
		MinPeriodMonths:        1,
		MaxPeriodMonths:        36,
		RepaymentEpsilon:       decimal.New(1, -2),
	}
}

func (r Rules) Validate() error {
	if r.MinContributionPeriods < 0 {
		return errors.New("policy: min contribution periods must be >= 0")
	}
	if r.MinPeriodMonths < 1 || r.MaxPeriodMonths < r.MinPeriodMonths {
		return errors.New("policy: loan period bounds must satisfy 1 <= min <= max")
	}
	if r.RepaymentEpsilon.IsNegative() {
		return errors.New("policy: repayment epsilon must be >= 0")
	}
	return nil
}

// PeriodAllowed reports whether months is inside the configured bounds.
func (r Rules) PeriodAllowed(months int) bool {
	return months >= r.MinPeriodMonths && months <= r.MaxPeriodMonths
}
