package coordinator

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	contribDomain "village-banking/internal/domain/contribution"
	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/event"
	"village-banking/internal/domain/group"
	loanDomain "village-banking/internal/domain/loan"
	"village-banking/internal/domain/member"
	penaltyDomain "village-banking/internal/domain/penalty"
	"village-banking/internal/domain/uow"
	contributionuc "village-banking/internal/usecase/contribution"
	loanuc "village-banking/internal/usecase/loan"
)

func requireManager(actor member.Actor, action string) error {
	if !actor.Role.IsManager() {
		return errs.Newf(errs.ErrForbidden, "only an admin or treasurer may %s", action)
	}
	return nil
}

// requireBorrowerOrManager passes the borrower, or a manager who belongs to
// the loan's group.
func requireBorrowerOrManager(ctx context.Context, r uow.Repos, l *loanDomain.Loan, actor member.Actor) error {
	if actor.UserID == l.UserID {
		return nil
	}
	if !actor.Role.IsManager() {
		return errs.New(errs.ErrForbidden, "only the borrower or an admin or treasurer may repay this loan")
	}
	if _, err := r.Members.Get(ctx, l.GroupID, actor.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.New(errs.ErrForbidden, "caller is not a member of the group")
		}
		return err
	}
	return nil
}

func (c *Coordinator) ApplyPenalty(ctx context.Context, groupID, userID string, t penaltyDomain.Type, actor member.Actor) (*penaltyDomain.Penalty, error) {
	if err := requireManager(actor, "apply penalties"); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, errs.Newf(errs.ErrValidation, "unknown penalty type %q", t)
	}
	var out *penaltyDomain.Penalty
	err := c.execute(ctx, command{
		name: "ApplyPenalty", groupID: groupID, userID: userID,
		run: func(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member) ([]event.Event, error) {
			p, err := c.penalties.Apply(ctx, r.Penalties, g, m, t)
			if err != nil {
				return nil, err
			}
			out = p
			return []event.Event{event.New(event.PenaltyApplied, groupID, userID, p.PenaltyID, p.Amount, c.now())}, nil
		},
	})
	return out, err
}

// RecordOnlinePayment stores a PENDING contribution. With a ref the command
// is idempotent and retried; created is false on a replay.
func (c *Coordinator) RecordOnlinePayment(ctx context.Context, groupID, userID string, in contributionuc.OnlinePaymentInput) (*contribDomain.Contribution, bool, error) {
	in.Ref = strings.TrimSpace(in.Ref)
	if err := in.Validate(); err != nil {
		return nil, false, err
	}
	var (
		out     *contribDomain.Contribution
		created bool
	)
	err := c.execute(ctx, command{
		name: "RecordOnlinePayment", groupID: groupID, userID: userID,
		idempotent: in.Ref != "",
		run: func(ctx context.Context, r uow.Repos, _ *group.Group, m *member.Member) ([]event.Event, error) {
			var err error
			out, created, err = c.contributions.RecordOnline(ctx, r, m, in)
			return nil, err
		},
	})
	return out, created, err
}

func (c *Coordinator) ConfirmContribution(ctx context.Context, groupID, contributionID string, actor member.Actor) (*contribDomain.Contribution, error) {
	if err := requireManager(actor, "confirm contributions"); err != nil {
		return nil, err
	}
	owner, err := c.contributionOwner(ctx, groupID, contributionID)
	if err != nil {
		return nil, err
	}
	var out *contribDomain.Contribution
	err = c.execute(ctx, command{
		name: "ConfirmContribution", groupID: groupID, userID: owner, idempotent: true,
		run: func(ctx context.Context, r uow.Repos, _ *group.Group, _ *member.Member) ([]event.Event, error) {
			cur, err := r.Contributions.GetByContributionID(ctx, contributionID)
			if err != nil {
				return nil, found(err, "contribution")
			}
			done, err := c.contributions.Confirm(ctx, r, cur)
			if err != nil {
				return nil, err
			}
			out = done
			return []event.Event{event.New(event.ContributionConfirmed, groupID, owner, done.ContributionID, done.Amount, c.now())}, nil
		},
	})
	return out, err
}

func (c *Coordinator) RejectContribution(ctx context.Context, groupID, contributionID string, failed bool, actor member.Actor) (*contribDomain.Contribution, error) {
	if err := requireManager(actor, "reject contributions"); err != nil {
		return nil, err
	}
	owner, err := c.contributionOwner(ctx, groupID, contributionID)
	if err != nil {
		return nil, err
	}
	var out *contribDomain.Contribution
	err = c.execute(ctx, command{
		name: "RejectContribution", groupID: groupID, userID: owner, idempotent: true,
		run: func(ctx context.Context, r uow.Repos, _ *group.Group, _ *member.Member) ([]event.Event, error) {
			cur, err := r.Contributions.GetByContributionID(ctx, contributionID)
			if err != nil {
				return nil, found(err, "contribution")
			}
			out, err = c.contributions.Reject(ctx, r, cur, failed)
			return nil, err
		},
	})
	return out, err
}

func (c *Coordinator) RecordCashPayment(ctx context.Context, groupID, userID string, in contributionuc.CashPaymentInput, actor member.Actor) (*contributionuc.CashAllocationResult, error) {
	if err := requireManager(actor, "record cash payments"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out *contributionuc.CashAllocationResult
	err := c.execute(ctx, command{
		name: "RecordCashPayment", groupID: groupID, userID: userID,
		run: func(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member) ([]event.Event, error) {
			res, err := c.contributions.RecordCash(ctx, r, g, m, in)
			if err != nil {
				return nil, err
			}
			out = res
			var evs []event.Event
			for _, cb := range res.Contributions {
				if cb.Status == contribDomain.StatusCompleted {
					evs = append(evs, event.New(event.ContributionConfirmed, groupID, userID, cb.ContributionID, cb.Amount, c.now()))
				}
			}
			return evs, nil
		},
	})
	return out, err
}

func (c *Coordinator) RequestLoan(ctx context.Context, groupID, userID string, in loanuc.RequestInput) (*loanDomain.Loan, error) {
	if err := in.Validate(c.loans.Rules()); err != nil {
		return nil, err
	}
	var out *loanDomain.Loan
	err := c.execute(ctx, command{
		name: "RequestLoan", groupID: groupID, userID: userID,
		run: func(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member) ([]event.Event, error) {
			l, _, err := c.loans.Request(ctx, r, g, m, in)
			if err != nil {
				return nil, err
			}
			out = l
			return []event.Event{event.New(event.LoanRequested, groupID, userID, l.LoanID, l.AmountRequested, c.now())}, nil
		},
	})
	return out, err
}

func (c *Coordinator) DecideLoan(ctx context.Context, groupID, loanID string, in loanuc.DecideInput, actor member.Actor) (*loanDomain.Loan, error) {
	if err := requireManager(actor, "decide loans"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.loanCommand(ctx, "DecideLoan", groupID, loanID, true, func(ctx context.Context, r uow.Repos, g *group.Group, l *loanDomain.Loan) ([]event.Event, error) {
		if _, err := c.loans.Decide(ctx, r, g, l, actor, in); err != nil {
			return nil, err
		}
		if l.Status == loanDomain.StatusApproved {
			return []event.Event{event.New(event.LoanApproved, groupID, l.UserID, l.LoanID, l.Principal(), c.now())}, nil
		}
		return []event.Event{event.New(event.LoanRejected, groupID, l.UserID, l.LoanID, decimal.Zero, c.now())}, nil
	})
}

func (c *Coordinator) DisburseLoan(ctx context.Context, groupID, loanID string, actor member.Actor) (*loanDomain.Loan, error) {
	if err := requireManager(actor, "disburse loans"); err != nil {
		return nil, err
	}
	return c.loanCommand(ctx, "DisburseLoan", groupID, loanID, true, func(ctx context.Context, r uow.Repos, _ *group.Group, l *loanDomain.Loan) ([]event.Event, error) {
		if _, err := c.loans.Disburse(ctx, r, l, actor); err != nil {
			return nil, err
		}
		return []event.Event{event.New(event.LoanDisbursed, groupID, l.UserID, l.LoanID, l.Principal(), c.now())}, nil
	})
}

// RecordRepayment is open to the borrower and to managers of the loan's group.
func (c *Coordinator) RecordRepayment(ctx context.Context, groupID, loanID string, amount decimal.Decimal, actor member.Actor) (*loanuc.RepaymentResult, error) {
	if err := loanuc.ValidateRepayment(amount); err != nil {
		return nil, err
	}
	var out *loanuc.RepaymentResult
	_, err := c.loanCommand(ctx, "RecordRepayment", groupID, loanID, false, func(ctx context.Context, r uow.Repos, _ *group.Group, l *loanDomain.Loan) ([]event.Event, error) {
		if err := requireBorrowerOrManager(ctx, r, l, actor); err != nil {
			return nil, err
		}
		res, err := c.loans.RecordRepayment(ctx, r, l, amount)
		if err != nil {
			return nil, err
		}
		out = res
		evs := []event.Event{event.New(event.RepaymentRecorded, groupID, l.UserID, res.Repayment.RepaymentID, amount, c.now())}
		if res.Completed {
			evs = append(evs, event.New(event.LoanCompleted, groupID, l.UserID, l.LoanID, res.TotalPaid, c.now()))
		}
		return evs, nil
	})
	return out, err
}

type loanFn func(ctx context.Context, r uow.Repos, g *group.Group, l *loanDomain.Loan) ([]event.Event, error)

// loanCommand locks the loan owner, then re-reads the loan under the member
// transaction so decisions never act on a stale copy.
func (c *Coordinator) loanCommand(ctx context.Context, name, groupID, loanID string, idempotent bool, fn loanFn) (*loanDomain.Loan, error) {
	owner, err := c.loanOwner(ctx, groupID, loanID)
	if err != nil {
		return nil, err
	}
	var out *loanDomain.Loan
	err = c.execute(ctx, command{
		name: name, groupID: groupID, userID: owner, idempotent: idempotent,
		run: func(ctx context.Context, r uow.Repos, g *group.Group, _ *member.Member) ([]event.Event, error) {
			l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
			if err != nil {
				return nil, found(err, "loan")
			}
			evs, err := fn(ctx, r, g, l)
			if err != nil {
				return nil, err
			}
			out = l
			return evs, nil
		},
	})
	return out, err
}

func (c *Coordinator) loanOwner(ctx context.Context, groupID, loanID string) (string, error) {
	l, err := c.uow.Reader().Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return "", classify(found(err, "loan"))
	}
	if l.GroupID != groupID {
		return "", errs.New(errs.ErrNotFound, "loan not found")
	}
	return l.UserID, nil
}

func (c *Coordinator) contributionOwner(ctx context.Context, groupID, contributionID string) (string, error) {
	cb, err := c.uow.Reader().Contributions.GetByContributionID(ctx, contributionID)
	if err != nil {
		return "", classify(found(err, "contribution"))
	}
	if cb.GroupID != groupID {
		return "", errs.New(errs.ErrNotFound, "contribution not found")
	}
	return cb.UserID, nil
}
