package loan

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"village-banking/internal/domain/errs"
	domain "village-banking/internal/domain/loan"
	"village-banking/internal/domain/policy"
	"village-banking/pkg/money"
)

type Reason string

const (
	ReasonInsufficientHistory Reason = "INSUFFICIENT_HISTORY"
	ReasonActiveLoanExists    Reason = "ACTIVE_LOAN_EXISTS"
	ReasonUnpaidPenalties     Reason = "UNPAID_PENALTIES"
	ReasonMemberNotActive     Reason = "MEMBER_NOT_ACTIVE"
)

var reasonText = map[Reason]string{
	ReasonInsufficientHistory: "not enough completed contributions",
	ReasonActiveLoanExists:    "member already has an open loan",
	ReasonUnpaidPenalties:     "member has unpaid penalties",
	ReasonMemberNotActive:     "membership is not active",
}

// Eligibility is a read-only answer to "may this member borrow now".
type Eligibility struct {
	Eligible             bool            `json:"eligible"`
	TotalContributions   decimal.Decimal `json:"total_contributions"`
	ContributionsCount   int             `json:"contributions_count"`
	RequiredCount        int             `json:"required_count"`
	OutstandingPenalties decimal.Decimal `json:"outstanding_penalties"`
	OpenLoanID           string          `json:"open_loan_id,omitempty"`
	MaxLoanAmount        decimal.Decimal `json:"max_loan_amount"`
	Reasons              []Reason        `json:"reasons,omitempty"`
}

// Explain joins the readable form of every failing reason.
func (e *Eligibility) Explain() string {
	parts := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		parts = append(parts, reasonText[r])
	}
	return strings.Join(parts, "; ")
}

type RequestInput struct {
	Amount  decimal.Decimal
	Months  int
	Purpose string
}

func (in RequestInput) Validate(rules policy.Rules) error {
	if !money.Positive(in.Amount) || !money.HasMinorPrecision(in.Amount) {
		return errs.New(errs.ErrInvalidAmount, "requested amount must be a positive amount in cents")
	}
	if !rules.PeriodAllowed(in.Months) {
		return errs.Newf(errs.ErrInvalidPeriod, "repayment period must be between %d and %d months", rules.MinPeriodMonths, rules.MaxPeriodMonths)
	}
	if len(in.Purpose) > 500 {
		return errs.New(errs.ErrValidation, "purpose longer than 500 characters")
	}
	return nil
}

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

type DecideInput struct {
	Decision Decision
	// ApprovedAmount defaults to the requested amount when nil.
	ApprovedAmount *decimal.Decimal
}

func (in DecideInput) Validate() error {
	switch in.Decision {
	case DecisionApprove, DecisionReject:
	default:
		return errs.Newf(errs.ErrValidation, "decision must be APPROVE or REJECT, got %q", in.Decision)
	}
	if in.ApprovedAmount != nil && (!money.Positive(*in.ApprovedAmount) || !money.HasMinorPrecision(*in.ApprovedAmount)) {
		return errs.New(errs.ErrInvalidAmount, "approved amount must be a positive amount in cents")
	}
	return nil
}

// ValidateRepayment rejects non-positive or sub-cent amounts.
func ValidateRepayment(amount decimal.Decimal) error {
	if !money.Positive(amount) || !money.HasMinorPrecision(amount) {
		return errs.New(errs.ErrInvalidAmount, "repayment must be a positive amount in cents")
	}
	return nil
}

type RepaymentResult struct {
	Loan      *domain.Loan      `json:"loan"`
	Repayment *domain.Repayment `json:"repayment"`
	TotalPaid decimal.Decimal   `json:"total_paid"`
	Balance   decimal.Decimal   `json:"balance"`
	Completed bool              `json:"completed"`
}

type Installment struct {
	Number  int             `json:"number"`
	DueDate *time.Time      `json:"due_date,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Paid    decimal.Decimal `json:"paid"`
}

type Schedule struct {
	LoanID             string          `json:"loan_id"`
	Principal          decimal.Decimal `json:"principal"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	Months             int             `json:"months"`
	TotalOwed          decimal.Decimal `json:"total_owed"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	Installments       []Installment   `json:"installments"`
}
