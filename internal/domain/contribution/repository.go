package contribution

import "context"

type Repository interface {
	Create(ctx context.Context, c *Contribution) error
	Save(ctx context.Context, c *Contribution) error
	GetByContributionID(ctx context.Context, contributionID string) (*Contribution, error)
	// GetByRef looks a contribution up by its idempotency key within a group.
	GetByRef(ctx context.Context, groupID, ref string) (*Contribution, error)
	ListByMember(ctx context.Context, groupID, userID string) ([]Contribution, error)
	ListForPeriod(ctx context.Context, groupID, userID string, year, month int) ([]Contribution, error)
	ListCompletedByGroup(ctx context.Context, groupID string) ([]Contribution, error)
}

type CreditRepository interface {
	Create(ctx context.Context, c *Credit) error
	ListByMember(ctx context.Context, groupID, userID string) ([]Credit, error)
}
