package member

import "time"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleTreasurer Role = "TREASURER"
	RoleSecretary Role = "SECRETARY"
	RoleMember    Role = "MEMBER"
)

// IsManager reports whether the role may decide and disburse loans.
func (r Role) IsManager() bool { return r == RoleAdmin || r == RoleTreasurer }

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTreasurer, RoleSecretary, RoleMember:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
)

// Member is a group-scoped membership. Unpaid penalties are not stored here;
// they are always recomputed from penalty rows.
type Member struct {
	ID        uint64    `gorm:"primaryKey;column:id" json:"-"`
	GroupID   string    `gorm:"column:group_id;size:64;not null;uniqueIndex:ux_members_group_user,priority:1" json:"group_id"`
	UserID    string    `gorm:"column:user_id;size:64;not null;uniqueIndex:ux_members_group_user,priority:2" json:"user_id"`
	Role      Role      `gorm:"column:role;type:varchar(16);not null;default:'MEMBER'" json:"role"`
	Status    Status    `gorm:"column:status;type:varchar(16);not null;default:'PENDING'" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

func (m *Member) IsActive() bool { return m != nil && m.Status == StatusActive }

// Actor is the authenticated caller as supplied by the identity provider.
type Actor struct {
	UserID string
	Role   Role
}
