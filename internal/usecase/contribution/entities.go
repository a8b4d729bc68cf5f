package contribution

import (
	"strings"

	"github.com/shopspring/decimal"

	domain "village-banking/internal/domain/contribution"
	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/penalty"
	"village-banking/pkg/money"
)

type OnlinePaymentInput struct {
	Amount decimal.Decimal
	Month  int
	Year   int
	Method string
	// Ref is the idempotency key; empty disables replay detection.
	Ref   string
	TopUp bool
}

func (in OnlinePaymentInput) Validate() error {
	if err := validateAmountPeriod(in.Amount, in.Month, in.Year); err != nil {
		return err
	}
	switch in.Method {
	case domain.MethodMobileMoney, domain.MethodBankTransfer, domain.MethodCard:
	default:
		return errs.Newf(errs.ErrValidation, "unsupported payment method %q", in.Method)
	}
	if len(strings.TrimSpace(in.Ref)) > 128 {
		return errs.New(errs.ErrValidation, "transaction ref longer than 128 characters")
	}
	return nil
}

type CashPaymentInput struct {
	Amount decimal.Decimal
	Month  int
	Year   int
}

func (in CashPaymentInput) Validate() error {
	return validateAmountPeriod(in.Amount, in.Month, in.Year)
}

func validateAmountPeriod(amount decimal.Decimal, month, year int) error {
	if !money.Positive(amount) {
		return errs.New(errs.ErrInvalidAmount, "amount must be greater than zero")
	}
	if !money.HasMinorPrecision(amount) {
		return errs.New(errs.ErrInvalidAmount, "amount has more than two decimal places")
	}
	if month < 1 || month > 12 {
		return errs.New(errs.ErrInvalidPeriod, "month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return errs.New(errs.ErrInvalidPeriod, "year out of range")
	}
	return nil
}

// CashAllocationResult describes how one cash payment was split. Remaining
// is the part that reached no month and was stored as Credit.
type CashAllocationResult struct {
	PenaltiesSettled []penalty.Penalty     `json:"penalties_settled"`
	PenaltyAmount    decimal.Decimal       `json:"penalty_amount"`
	Contributions    []domain.Contribution `json:"contributions"`
	Credit           *domain.Credit        `json:"credit,omitempty"`
	Remaining        decimal.Decimal       `json:"remaining"`
}

// Stats are the member's completed savings.
type Stats struct {
	Total   decimal.Decimal
	Periods int
}
