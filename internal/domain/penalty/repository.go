package penalty

import "context"

type Repository interface {
	Create(ctx context.Context, p *Penalty) error
	Save(ctx context.Context, p *Penalty) error
	// ListUnpaid returns unpaid penalties oldest first.
	ListUnpaid(ctx context.Context, groupID, userID string) ([]Penalty, error)
}
