package penalty

import (
	"time"

	"github.com/shopspring/decimal"

	"village-banking/internal/domain/group"
)

type Type string

const (
	TypeLateMeeting      Type = "LATE_MEETING"
	TypeMissedMeeting    Type = "MISSED_MEETING"
	TypeLateContribution Type = "LATE_CONTRIBUTION"
	TypeGeneral          Type = "GENERAL"
)

func (t Type) Valid() bool {
	switch t {
	case TypeLateMeeting, TypeMissedMeeting, TypeLateContribution, TypeGeneral:
		return true
	}
	return false
}

// AmountFor resolves the fine for t from the group policy. Unknown types fall
// back to the general penalty amount.
func (t Type) AmountFor(g *group.Group) decimal.Decimal {
	switch t {
	case TypeLateMeeting:
		return g.LateMeetingFine
	case TypeMissedMeeting:
		return g.MissedMeetingFine
	case TypeLateContribution:
		return g.LateContributionFee
	default:
		return g.PenaltyAmount
	}
}

// Penalty amounts are frozen at creation; later policy changes never touch them.
type Penalty struct {
	ID        uint64          `gorm:"primaryKey;column:id" json:"-"`
	PenaltyID string          `gorm:"column:penalty_id;type:char(32);not null;uniqueIndex:ux_penalties_penalty_id" json:"penalty_id"`
	GroupID   string          `gorm:"column:group_id;size:64;not null;index:idx_penalties_member,priority:1" json:"group_id"`
	UserID    string          `gorm:"column:user_id;size:64;not null;index:idx_penalties_member,priority:2" json:"user_id"`
	Type      Type            `gorm:"column:type;type:varchar(24);not null" json:"type"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Paid      bool            `gorm:"column:paid;not null;default:false;index:idx_penalties_member,priority:3" json:"paid"`
	PaidAt    *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Penalty) TableName() string { return "penalties" }
