package loan

import (
	"time"

	"github.com/shopspring/decimal"

	"village-banking/pkg/money"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// OpenStatuses are the states that block a new loan request.
var OpenStatuses = []Status{StatusPending, StatusApproved, StatusActive}

func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusApproved || s == StatusActive
}

// open marks the member's single open loan; NULL once the loan closes.
var open uint8 = 1

type Loan struct {
	ID                    uint64              `gorm:"primaryKey;column:id" json:"-"`
	LoanID                string              `gorm:"column:loan_id;type:char(32);not null;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	GroupID               string              `gorm:"column:group_id;size:64;not null;uniqueIndex:ux_loans_open,priority:1;index:idx_loans_group_status,priority:1" json:"group_id"`
	UserID                string              `gorm:"column:user_id;size:64;not null;uniqueIndex:ux_loans_open,priority:2" json:"user_id"`
	AmountRequested       decimal.Decimal     `gorm:"column:amount_requested;type:decimal(18,2);not null" json:"amount_requested"`
	AmountApproved        decimal.NullDecimal `gorm:"column:amount_approved;type:decimal(18,2)" json:"amount_approved"`
	InterestRate          decimal.Decimal     `gorm:"column:interest_rate;type:decimal(6,2);not null;default:0" json:"interest_rate"`
	RepaymentPeriodMonths int                 `gorm:"column:repayment_period_months;not null" json:"repayment_period_months"`
	Purpose               string              `gorm:"column:purpose;type:text" json:"purpose"`
	Status                Status              `gorm:"column:status;type:varchar(16);not null;default:'PENDING';index:idx_loans_group_status,priority:2" json:"status"`
	OpenSlot              *uint8              `gorm:"column:open_slot;uniqueIndex:ux_loans_open,priority:3" json:"-"`
	DecidedBy             string              `gorm:"column:decided_by;size:64" json:"decided_by,omitempty"`
	DecidedAt             *time.Time          `gorm:"column:decided_at" json:"decided_at,omitempty"`
	DisbursedAt           *time.Time          `gorm:"column:disbursed_at" json:"disbursed_at,omitempty"`
	CompletedAt           *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// NewPending builds a loan request that holds the member's open slot.
func NewPending(loanID, groupID, userID string, amount decimal.Decimal, months int, purpose string) *Loan {
	slot := open
	return &Loan{
		LoanID:                loanID,
		GroupID:               groupID,
		UserID:                userID,
		AmountRequested:       amount,
		RepaymentPeriodMonths: months,
		Purpose:               purpose,
		Status:                StatusPending,
		OpenSlot:              &slot,
	}
}

// SetStatus moves the loan and keeps the open slot in step with it.
func (l *Loan) SetStatus(s Status) {
	l.Status = s
	if s.IsOpen() {
		slot := open
		l.OpenSlot = &slot
		return
	}
	l.OpenSlot = nil
}

// Principal is the approved amount, or zero before approval.
func (l *Loan) Principal() decimal.Decimal {
	if !l.AmountApproved.Valid {
		return decimal.Zero
	}
	return l.AmountApproved.Decimal
}

// TotalOwed is principal plus simple interest over the full period.
func (l *Loan) TotalOwed() decimal.Decimal {
	return TotalOwed(l.Principal(), l.InterestRate, l.RepaymentPeriodMonths)
}

// TotalOwed = principal × (1 + rate/100 × months/12), rounded to the minor
// unit. Interest is computed as principal × rate × months / 1200 so only one
// division happens.
func TotalOwed(principal, annualRatePct decimal.Decimal, months int) decimal.Decimal {
	interest := principal.Mul(annualRatePct).Mul(decimal.NewFromInt(int64(months))).Div(decimal.NewFromInt(1200))
	return money.Round(principal.Add(interest))
}

// Installments splits the total owed into equal monthly amounts; the final
// one absorbs the rounding residual.
func Installments(principal, annualRatePct decimal.Decimal, months int) []decimal.Decimal {
	return money.Split(TotalOwed(principal, annualRatePct, months), months)
}

// Repayment is one payment towards an active loan.
type Repayment struct {
	ID          uint64          `gorm:"primaryKey;column:id" json:"-"`
	RepaymentID string          `gorm:"column:repayment_id;type:char(32);not null;uniqueIndex:ux_repayments_repayment_id" json:"repayment_id"`
	LoanID      uint64          `gorm:"column:loan_id;not null;index" json:"-"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"column:payment_date;not null" json:"payment_date"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Repayment) TableName() string { return "loan_repayments" }

// SumRepayments totals the amounts of rs.
func SumRepayments(rs []Repayment) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rs {
		total = total.Add(r.Amount)
	}
	return total
}
