package coordinator

import (
	"context"

	"github.com/shopspring/decimal"

	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/group"
	"village-banking/internal/domain/member"
	"village-banking/internal/domain/uow"
	"village-banking/internal/usecase/aggregate"
	loanuc "village-banking/internal/usecase/loan"
)

// Queries read outside any lock. They are advisory and may trail an
// in-flight command.

func (c *Coordinator) readMember(ctx context.Context, groupID, userID string) (uow.Repos, *group.Group, *member.Member, error) {
	r := c.uow.Reader()
	g, err := loadGroup(ctx, r, groupID)
	if err != nil {
		return r, nil, nil, classify(err)
	}
	m, err := r.Members.Get(ctx, groupID, userID)
	if err != nil {
		return r, nil, nil, classify(err)
	}
	return r, g, m, nil
}

func (c *Coordinator) CheckEligibility(ctx context.Context, groupID, userID string) (*loanuc.Eligibility, error) {
	r, g, m, err := c.readMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	el, err := c.loans.CheckEligibility(ctx, r, g, m)
	return el, classify(err)
}

func (c *Coordinator) OutstandingPenalties(ctx context.Context, groupID, userID string) (decimal.Decimal, error) {
	r, _, m, err := c.readMember(ctx, groupID, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := c.agg.Outstanding(ctx, r, m)
	return total, classify(err)
}

func (c *Coordinator) MemberSnapshot(ctx context.Context, groupID, userID string) (*aggregate.MemberSnapshot, error) {
	var version int64
	if c.cache != nil {
		s, v, ok := c.cache.Get(ctx, groupID, userID)
		if ok {
			return s, nil
		}
		version = v
	}
	r, g, m, err := c.readMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	s, err := c.agg.MemberSnapshot(ctx, r, g, m)
	if err != nil {
		return nil, classify(err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, s, version)
	}
	return s, nil
}

func (c *Coordinator) GroupTotals(ctx context.Context, groupID string) (*aggregate.GroupTotals, error) {
	r := c.uow.Reader()
	g, err := loadGroup(ctx, r, groupID)
	if err != nil {
		return nil, classify(err)
	}
	t, err := c.agg.GroupTotals(ctx, r, g)
	return t, classify(err)
}

func (c *Coordinator) LoanSchedule(ctx context.Context, groupID, loanID string) (*loanuc.Schedule, error) {
	r := c.uow.Reader()
	l, err := r.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, classify(found(err, "loan"))
	}
	if l.GroupID != groupID {
		return nil, errs.New(errs.ErrNotFound, "loan not found")
	}
	s, err := c.loans.Schedule(ctx, r, l)
	return s, classify(err)
}
