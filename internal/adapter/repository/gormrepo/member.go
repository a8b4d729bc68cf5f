package gormrepo

import (
	"context"

	memberDomain "village-banking/internal/domain/member"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MemberRepository struct{ db *gorm.DB }

func NewMemberRepository(db *gorm.DB) *MemberRepository { return &MemberRepository{db: db} }

func (r *MemberRepository) Create(ctx context.Context, m *memberDomain.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MemberRepository) Get(ctx context.Context, groupID, userID string) (*memberDomain.Member, error) {
	var out memberDomain.Member
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate issues SELECT ... FOR UPDATE; SQLite ignores the clause and
// relies on its database-level write lock instead.
func (r *MemberRepository) GetForUpdate(ctx context.Context, groupID, userID string) (*memberDomain.Member, error) {
	var out memberDomain.Member
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
