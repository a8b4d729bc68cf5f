package gormrepo

import (
	"context"

	groupDomain "village-banking/internal/domain/group"

	"gorm.io/gorm"
)

type GroupRepository struct{ db *gorm.DB }

func NewGroupRepository(db *gorm.DB) *GroupRepository { return &GroupRepository{db: db} }

func (r *GroupRepository) Create(ctx context.Context, g *groupDomain.Group) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *GroupRepository) GetByGroupID(ctx context.Context, groupID string) (*groupDomain.Group, error) {
	var out groupDomain.Group
	if err := r.db.WithContext(ctx).Where("group_id = ?", groupID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
