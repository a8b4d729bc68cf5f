package uow

import (
	"context"

	"village-banking/internal/domain/contribution"
	"village-banking/internal/domain/group"
	"village-banking/internal/domain/loan"
	"village-banking/internal/domain/member"
	"village-banking/internal/domain/penalty"
)

type Repos struct {
	Groups        group.Repository
	Members       member.Repository
	Penalties     penalty.Repository
	Contributions contribution.Repository
	Credits       contribution.CreditRepository
	Loans         loan.Repository
	Repayments    loan.RepaymentRepository
}

type UnitOfWork interface {
	// lock the (group, user) membership row first, then pass it in
	WithinMemberTx(ctx context.Context, groupID, userID string, fn func(r Repos, m *member.Member) error) error
	// Reader returns repos bound to no transaction, for advisory reads.
	Reader() Repos
}

// MemberLocker serializes commands for one (group, user) pair, across
// processes when backed by a shared store.
type MemberLocker interface {
	Lock(ctx context.Context, groupID, userID string) (unlock func(), err error)
}
