package gormrepo

import (
	"context"

	"village-banking/internal/domain/member"
	"village-banking/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func bind(db *gorm.DB) uow.Repos {
	return uow.Repos{
		Groups:        &GroupRepository{db: db},
		Members:       &MemberRepository{db: db},
		Penalties:     &PenaltyRepository{db: db},
		Contributions: &ContributionRepository{db: db},
		Credits:       &CreditRepository{db: db},
		Loans:         &LoanRepository{db: db},
		Repayments:    &RepaymentRepository{db: db},
	}
}

func (u *GormUoW) WithinMemberTx(ctx context.Context, groupID, userID string, fn func(r uow.Repos, m *member.Member) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := bind(tx)
		// lock the membership row up-front so every write for this member queues here
		m, err := r.Members.GetForUpdate(ctx, groupID, userID)
		if err != nil {
			return err
		}
		return fn(r, m)
	})
}

func (u *GormUoW) Reader() uow.Repos { return bind(u.db) }
