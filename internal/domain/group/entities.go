package group

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Group is the policy store row for one village-banking group. The engine
// only reads it; settings workflows own the writes.
type Group struct {
	ID                  uint64          `gorm:"primaryKey;column:id" json:"-"`
	GroupID             string          `gorm:"column:group_id;size:64;not null;uniqueIndex:ux_groups_group_id" json:"group_id"`
	Name                string          `gorm:"column:name;size:255" json:"name"`
	MonthlyContribution decimal.Decimal `gorm:"column:monthly_contribution;type:decimal(18,2);not null;default:0" json:"monthly_contribution"`
	SocialFundAmount    decimal.Decimal `gorm:"column:social_fund_amount;type:decimal(18,2);not null;default:0" json:"social_fund_amount"`
	LateContributionFee decimal.Decimal `gorm:"column:late_contribution_fee;type:decimal(18,2);not null;default:0" json:"late_contribution_fee"`
	LateMeetingFine     decimal.Decimal `gorm:"column:late_meeting_fine;type:decimal(18,2);not null;default:0" json:"late_meeting_fine"`
	MissedMeetingFine   decimal.Decimal `gorm:"column:missed_meeting_fine;type:decimal(18,2);not null;default:0" json:"missed_meeting_fine"`
	PenaltyAmount       decimal.Decimal `gorm:"column:penalty_amount;type:decimal(18,2);not null;default:0" json:"penalty_amount"`
	// annual percent, e.g. 10 means 10% per year
	InterestRate      decimal.Decimal `gorm:"column:interest_rate;type:decimal(6,2);not null;default:0" json:"interest_rate"`
	MaxLoanMultiplier decimal.Decimal `gorm:"column:max_loan_multiplier;type:decimal(6,2);not null;default:1" json:"max_loan_multiplier"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Group) TableName() string { return "savings_groups" }

// Validate checks the policy invariants: money fields >= 0, multiplier >= 1.
func (g *Group) Validate() error {
	fields := map[string]decimal.Decimal{
		"monthly_contribution":  g.MonthlyContribution,
		"social_fund_amount":    g.SocialFundAmount,
		"late_contribution_fee": g.LateContributionFee,
		"late_meeting_fine":     g.LateMeetingFine,
		"missed_meeting_fine":   g.MissedMeetingFine,
		"penalty_amount":        g.PenaltyAmount,
		"interest_rate":         g.InterestRate,
	}
	for name, v := range fields {
		if v.IsNegative() {
			return fmt.Errorf("group %s: %s is negative", g.GroupID, name)
		}
	}
	if g.MaxLoanMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("group %s: max_loan_multiplier below 1", g.GroupID)
	}
	return nil
}
