package contribution

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool { return s != StatusPending }

const (
	MethodCash         = "CASH"
	MethodMobileMoney  = "MOBILE_MONEY"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodCard         = "CARD"
)

// filled marks the single COMPLETED non-top-up row of a period; the unique
// index over (group, user, year, month, period_slot) ignores NULLs.
var filled uint8 = 1

type Contribution struct {
	ID             uint64          `gorm:"primaryKey;column:id" json:"-"`
	ContributionID string          `gorm:"column:contribution_id;type:char(32);not null;uniqueIndex:ux_contributions_contribution_id" json:"contribution_id"`
	GroupID        string          `gorm:"column:group_id;size:64;not null;uniqueIndex:ux_contributions_group_ref,priority:1;uniqueIndex:ux_contributions_period,priority:1;index:idx_contributions_member,priority:1" json:"group_id"`
	UserID         string          `gorm:"column:user_id;size:64;not null;uniqueIndex:ux_contributions_period,priority:2;index:idx_contributions_member,priority:2" json:"user_id"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Month          int             `gorm:"column:month;not null;uniqueIndex:ux_contributions_period,priority:4" json:"month"`
	Year           int             `gorm:"column:year;not null;uniqueIndex:ux_contributions_period,priority:3" json:"year"`
	Status         Status          `gorm:"column:status;type:varchar(16);not null;default:'PENDING'" json:"status"`
	PaymentMethod  string          `gorm:"column:payment_method;type:varchar(24);not null" json:"payment_method"`
	PaymentDate    time.Time       `gorm:"column:payment_date" json:"payment_date"`
	TransactionRef *string         `gorm:"column:transaction_ref;size:128;uniqueIndex:ux_contributions_group_ref,priority:2" json:"transaction_ref,omitempty"`
	TopUp          bool            `gorm:"column:top_up;not null;default:false" json:"top_up"`
	PeriodSlot     *uint8          `gorm:"column:period_slot;uniqueIndex:ux_contributions_period,priority:5" json:"-"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Contribution) TableName() string { return "contributions" }

// Fills reports whether the row occupies its period's single completed slot.
func (c *Contribution) Fills() bool { return c.Status == StatusCompleted && !c.TopUp }

// Complete moves a pending contribution to COMPLETED and claims the period
// slot unless it is a top-up.
func (c *Contribution) Complete() bool {
	if c.Status != StatusPending {
		return false
	}
	c.Status = StatusCompleted
	if !c.TopUp {
		slot := filled
		c.PeriodSlot = &slot
	}
	return true
}

// Close moves a pending contribution to a denial state.
func (c *Contribution) Close(to Status) bool {
	if c.Status != StatusPending || (to != StatusRejected && to != StatusFailed) {
		return false
	}
	c.Status = to
	return true
}

// IsPartialCash reports a cash contribution still waiting for a top-up.
func (c *Contribution) IsPartialCash() bool {
	return c.Status == StatusPending && c.PaymentMethod == MethodCash
}

// Credit is an over-payment that could not be attributed to any month.
type Credit struct {
	ID        uint64          `gorm:"primaryKey;column:id" json:"-"`
	CreditID  string          `gorm:"column:credit_id;type:char(32);not null;uniqueIndex:ux_credits_credit_id" json:"credit_id"`
	GroupID   string          `gorm:"column:group_id;size:64;not null;index:idx_credits_member,priority:1" json:"group_id"`
	UserID    string          `gorm:"column:user_id;size:64;not null;index:idx_credits_member,priority:2" json:"user_id"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Month     int             `gorm:"column:month;not null" json:"month"`
	Year      int             `gorm:"column:year;not null" json:"year"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Credit) TableName() string { return "member_credits" }
