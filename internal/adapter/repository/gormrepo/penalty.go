package gormrepo

import (
	"context"

	penaltyDomain "village-banking/internal/domain/penalty"

	"gorm.io/gorm"
)

type PenaltyRepository struct{ db *gorm.DB }

func NewPenaltyRepository(db *gorm.DB) *PenaltyRepository { return &PenaltyRepository{db: db} }

func (r *PenaltyRepository) Create(ctx context.Context, p *penaltyDomain.Penalty) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PenaltyRepository) Save(ctx context.Context, p *penaltyDomain.Penalty) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PenaltyRepository) ListUnpaid(ctx context.Context, groupID, userID string) ([]penaltyDomain.Penalty, error) {
	var out []penaltyDomain.Penalty
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ? AND paid = ?", groupID, userID, false).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
