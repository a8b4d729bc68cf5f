package loanmock

import (
	"context"

	domain "village-banking/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Only methods you need are included; add more as tests require.
type Repo struct {
	CreateFn               func(ctx context.Context, l *domain.Loan) error
	SaveFn                 func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn          func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetOpenByMemberFn      func(ctx context.Context, groupID, userID string) (*domain.Loan, error)
	ListByGroupFn          func(ctx context.Context, groupID string, statuses ...domain.Status) ([]domain.Loan, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetOpenByMember(ctx context.Context, groupID, userID string) (*domain.Loan, error) {
	if m.GetOpenByMemberFn != nil {
		return m.GetOpenByMemberFn(ctx, groupID, userID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByGroup(ctx context.Context, groupID string, statuses ...domain.Status) ([]domain.Loan, error) {
	if m.ListByGroupFn != nil {
		return m.ListByGroupFn(ctx, groupID, statuses...)
	}
	return nil, context.Canceled
}
