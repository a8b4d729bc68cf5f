package gormrepo

import (
	"context"

	contribDomain "village-banking/internal/domain/contribution"

	"gorm.io/gorm"
)

type ContributionRepository struct{ db *gorm.DB }

func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

func (r *ContributionRepository) Create(ctx context.Context, c *contribDomain.Contribution) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ContributionRepository) Save(ctx context.Context, c *contribDomain.Contribution) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *ContributionRepository) GetByContributionID(ctx context.Context, contributionID string) (*contribDomain.Contribution, error) {
	var out contribDomain.Contribution
	if err := r.db.WithContext(ctx).Where("contribution_id = ?", contributionID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ContributionRepository) GetByRef(ctx context.Context, groupID, ref string) (*contribDomain.Contribution, error) {
	var out contribDomain.Contribution
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND transaction_ref = ?", groupID, ref).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ContributionRepository) ListByMember(ctx context.Context, groupID, userID string) ([]contribDomain.Contribution, error) {
	var out []contribDomain.Contribution
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Order("year ASC, month ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *ContributionRepository) ListForPeriod(ctx context.Context, groupID, userID string, year, month int) ([]contribDomain.Contribution, error) {
	var out []contribDomain.Contribution
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ? AND year = ? AND month = ?", groupID, userID, year, month).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *ContributionRepository) ListCompletedByGroup(ctx context.Context, groupID string) ([]contribDomain.Contribution, error) {
	var out []contribDomain.Contribution
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND status = ?", groupID, contribDomain.StatusCompleted).
		Find(&out).Error
	return out, err
}

type CreditRepository struct{ db *gorm.DB }

func NewCreditRepository(db *gorm.DB) *CreditRepository { return &CreditRepository{db: db} }

func (r *CreditRepository) Create(ctx context.Context, c *contribDomain.Credit) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CreditRepository) ListByMember(ctx context.Context, groupID, userID string) ([]contribDomain.Credit, error) {
	var out []contribDomain.Credit
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
