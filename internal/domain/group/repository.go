package group

import "context"

type Repository interface {
	Create(ctx context.Context, g *Group) error
	GetByGroupID(ctx context.Context, groupID string) (*Group, error)
}
