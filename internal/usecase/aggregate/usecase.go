// Package aggregate derives read-only summaries from the ledgers.
package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"village-banking/internal/domain/group"
	loanDomain "village-banking/internal/domain/loan"
	"village-banking/internal/domain/member"
	"village-banking/internal/domain/uow"
	contributionuc "village-banking/internal/usecase/contribution"
	loanuc "village-banking/internal/usecase/loan"
	penaltyuc "village-banking/internal/usecase/penalty"
)

type GroupTotals struct {
	GroupID        string          `json:"group_id"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	TotalDisbursed decimal.Decimal `json:"total_disbursed"`
}

type MemberSnapshot struct {
	GroupID              string              `json:"group_id"`
	UserID               string              `json:"user_id"`
	TotalContributions   decimal.Decimal     `json:"total_contributions"`
	ContributionsCount   int                 `json:"contributions_count"`
	OutstandingPenalties decimal.Decimal     `json:"outstanding_penalties"`
	CreditBalance        decimal.Decimal     `json:"credit_balance"`
	ActiveLoanID         string              `json:"active_loan_id,omitempty"`
	ActiveLoanBalance    decimal.Decimal     `json:"active_loan_balance"`
	Eligibility          *loanuc.Eligibility `json:"eligibility"`
	AsOf                 time.Time           `json:"as_of"`
}

type Aggregator struct {
	loans *loanuc.Engine
	now   func() time.Time
}

func NewAggregator(loans *loanuc.Engine, clock func() time.Time) *Aggregator {
	if clock == nil {
		clock = time.Now
	}
	return &Aggregator{loans: loans, now: clock}
}

// GroupTotals sums completed contributions and the approved amount of every
// ACTIVE or COMPLETED loan. Each loan row has one status, so none is counted twice.
func (a *Aggregator) GroupTotals(ctx context.Context, r uow.Repos, g *group.Group) (*GroupTotals, error) {
	contribs, err := r.Contributions.ListCompletedByGroup(ctx, g.GroupID)
	if err != nil {
		return nil, err
	}
	loans, err := r.Loans.ListByGroup(ctx, g.GroupID, loanDomain.StatusActive, loanDomain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	out := &GroupTotals{GroupID: g.GroupID, TotalCollected: decimal.Zero, TotalDisbursed: decimal.Zero}
	for _, c := range contribs {
		out.TotalCollected = out.TotalCollected.Add(c.Amount)
	}
	for i := range loans {
		out.TotalDisbursed = out.TotalDisbursed.Add(loans[i].Principal())
	}
	return out, nil
}

func (a *Aggregator) MemberSnapshot(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member) (*MemberSnapshot, error) {
	el, err := a.loans.CheckEligibility(ctx, r, g, m)
	if err != nil {
		return nil, err
	}
	credit, err := contributionuc.CreditBalance(ctx, r.Credits, m.GroupID, m.UserID)
	if err != nil {
		return nil, err
	}
	snap := &MemberSnapshot{
		GroupID:              m.GroupID,
		UserID:               m.UserID,
		TotalContributions:   el.TotalContributions,
		ContributionsCount:   el.ContributionsCount,
		OutstandingPenalties: el.OutstandingPenalties,
		CreditBalance:        credit,
		ActiveLoanBalance:    decimal.Zero,
		Eligibility:          el,
		AsOf:                 a.now().UTC(),
	}

	open, err := r.Loans.GetOpenByMember(ctx, m.GroupID, m.UserID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return snap, nil
	case err != nil:
		return nil, err
	}
	if open.Status == loanDomain.StatusActive {
		bal, err := a.loans.Balance(ctx, r, open)
		if err != nil {
			return nil, err
		}
		snap.ActiveLoanID = open.LoanID
		snap.ActiveLoanBalance = bal
	}
	return snap, nil
}

// Outstanding is the member's unpaid penalty total, recomputed from rows.
func (a *Aggregator) Outstanding(ctx context.Context, r uow.Repos, m *member.Member) (decimal.Decimal, error) {
	return penaltyuc.Outstanding(ctx, r.Penalties, m.GroupID, m.UserID)
}
