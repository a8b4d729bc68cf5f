package member

import "context"

type Repository interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, groupID, userID string) (*Member, error)
	// GetForUpdate row-locks the membership until the transaction ends.
	GetForUpdate(ctx context.Context, groupID, userID string) (*Member, error)
}
