package penaltymock

import (
	"context"

	domain "village-banking/internal/domain/penalty"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn     func(ctx context.Context, p *domain.Penalty) error
	SaveFn       func(ctx context.Context, p *domain.Penalty) error
	ListUnpaidFn func(ctx context.Context, groupID, userID string) ([]domain.Penalty, error)
}

func (m *Repo) Create(ctx context.Context, p *domain.Penalty) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, p *domain.Penalty) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, p)
	}
	return nil
}

func (m *Repo) ListUnpaid(ctx context.Context, groupID, userID string) ([]domain.Penalty, error) {
	if m.ListUnpaidFn != nil {
		return m.ListUnpaidFn(ctx, groupID, userID)
	}
	return nil, context.Canceled
}
