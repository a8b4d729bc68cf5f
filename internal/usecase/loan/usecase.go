package loan

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/group"
	domain "village-banking/internal/domain/loan"
	"village-banking/internal/domain/member"
	"village-banking/internal/domain/policy"
	"village-banking/internal/domain/uow"
	contributionuc "village-banking/internal/usecase/contribution"
	penaltyuc "village-banking/internal/usecase/penalty"
	"village-banking/pkg/id"
	"village-banking/pkg/money"
)

// Engine holds the loan rules. Every method works on the repos it is
// handed, so the same code serves previews and locked transactions.
type Engine struct {
	rules policy.Rules
	now   func() time.Time
}

func NewEngine(rules policy.Rules, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{rules: rules, now: clock}
}

func (e *Engine) Rules() policy.Rules { return e.rules }

func (e *Engine) CheckEligibility(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member) (*Eligibility, error) {
	stats, err := contributionuc.MemberStats(ctx, r.Contributions, m.GroupID, m.UserID)
	if err != nil {
		return nil, err
	}
	outstanding, err := penaltyuc.Outstanding(ctx, r.Penalties, m.GroupID, m.UserID)
	if err != nil {
		return nil, err
	}
	res := &Eligibility{
		TotalContributions:   stats.Total,
		ContributionsCount:   stats.Periods,
		RequiredCount:        e.rules.MinContributionPeriods,
		OutstandingPenalties: outstanding,
		MaxLoanAmount:        decimal.Zero,
	}

	open, err := r.Loans.GetOpenByMember(ctx, m.GroupID, m.UserID)
	switch {
	case err == nil:
		res.OpenLoanID = open.LoanID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if !m.IsActive() {
		res.Reasons = append(res.Reasons, ReasonMemberNotActive)
	}
	if stats.Periods < e.rules.MinContributionPeriods {
		res.Reasons = append(res.Reasons, ReasonInsufficientHistory)
	}
	if res.OpenLoanID != "" {
		res.Reasons = append(res.Reasons, ReasonActiveLoanExists)
	}
	if money.Positive(outstanding) {
		res.Reasons = append(res.Reasons, ReasonUnpaidPenalties)
	}
	res.Eligible = len(res.Reasons) == 0
	if res.Eligible {
		res.MaxLoanAmount = money.Round(stats.Total.Mul(g.MaxLoanMultiplier))
	}
	return res, nil
}

// Request re-evaluates eligibility against r and inserts a PENDING loan.
// Callers must hand in repos bound to the member's locked transaction.
func (e *Engine) Request(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member, in RequestInput) (*domain.Loan, *Eligibility, error) {
	if err := in.Validate(e.rules); err != nil {
		return nil, nil, err
	}
	if !m.IsActive() {
		return nil, nil, errs.New(errs.ErrInvalidMember, "member is not active in the group")
	}
	el, err := e.CheckEligibility(ctx, r, g, m)
	if err != nil {
		return nil, nil, err
	}
	if !el.Eligible {
		return nil, el, errs.New(errs.ErrNotEligible, el.Explain())
	}
	if in.Amount.GreaterThan(el.MaxLoanAmount) {
		return nil, el, errs.Newf(errs.ErrAmountExceedsLimit, "requested %s exceeds the maximum of %s", in.Amount.StringFixed(2), el.MaxLoanAmount.StringFixed(2))
	}
	l := domain.NewPending(id.NewID32(), m.GroupID, m.UserID, in.Amount, in.Months, in.Purpose)
	if err := r.Loans.Create(ctx, l); err != nil {
		return nil, el, err
	}
	return l, el, nil
}

// Decide approves or rejects a PENDING loan. Approval snapshots the group's
// interest rate onto the loan.
func (e *Engine) Decide(ctx context.Context, r uow.Repos, g *group.Group, l *domain.Loan, actor member.Actor, in DecideInput) (*domain.Loan, error) {
	if !actor.Role.IsManager() {
		return nil, errs.New(errs.ErrForbidden, "only an admin or treasurer may decide loans")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if l.Status != domain.StatusPending {
		return nil, errs.Newf(errs.ErrInvalidTransition, "loan is %s, only PENDING can be decided", l.Status)
	}
	now := e.now().UTC()
	if in.Decision == DecisionApprove {
		approved := l.AmountRequested
		if in.ApprovedAmount != nil {
			approved = *in.ApprovedAmount
		}
		if approved.GreaterThan(l.AmountRequested) {
			return nil, errs.Newf(errs.ErrAmountExceedsLimit, "approved %s exceeds the requested %s", approved.StringFixed(2), l.AmountRequested.StringFixed(2))
		}
		l.AmountApproved = decimal.NewNullDecimal(approved)
		l.InterestRate = g.InterestRate
		l.SetStatus(domain.StatusApproved)
	} else {
		l.SetStatus(domain.StatusRejected)
	}
	l.DecidedBy = actor.UserID
	l.DecidedAt = &now
	if err := r.Loans.Save(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Disburse moves APPROVED → ACTIVE.
func (e *Engine) Disburse(ctx context.Context, r uow.Repos, l *domain.Loan, actor member.Actor) (*domain.Loan, error) {
	if !actor.Role.IsManager() {
		return nil, errs.New(errs.ErrForbidden, "only an admin or treasurer may disburse loans")
	}
	if l.Status != domain.StatusApproved {
		return nil, errs.Newf(errs.ErrInvalidTransition, "loan is %s, only APPROVED can be disbursed", l.Status)
	}
	now := e.now().UTC()
	l.SetStatus(domain.StatusActive)
	l.DisbursedAt = &now
	if err := r.Loans.Save(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// RecordRepayment appends a repayment and completes the loan once the sum
// reaches the total owed within the rounding tolerance.
func (e *Engine) RecordRepayment(ctx context.Context, r uow.Repos, l *domain.Loan, amount decimal.Decimal) (*RepaymentResult, error) {
	if err := ValidateRepayment(amount); err != nil {
		return nil, err
	}
	if l.Status != domain.StatusActive {
		return nil, errs.Newf(errs.ErrLoanNotActive, "loan is %s", l.Status)
	}
	prior, err := r.Repayments.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	owed := l.TotalOwed()
	paid := domain.SumRepayments(prior).Add(amount)
	if paid.GreaterThan(owed.Add(e.rules.RepaymentEpsilon)) {
		return nil, errs.Newf(errs.ErrAmountExceedsLimit, "repayment exceeds the remaining balance of %s", owed.Sub(paid.Sub(amount)).StringFixed(2))
	}

	now := e.now().UTC()
	rp := &domain.Repayment{
		RepaymentID: id.NewID32(),
		LoanID:      l.ID,
		Amount:      amount,
		PaymentDate: now,
	}
	if err := r.Repayments.Create(ctx, rp); err != nil {
		return nil, err
	}

	res := &RepaymentResult{Loan: l, Repayment: rp, TotalPaid: paid, Balance: nonNegative(owed.Sub(paid))}
	if paid.GreaterThanOrEqual(owed.Sub(e.rules.RepaymentEpsilon)) {
		l.SetStatus(domain.StatusCompleted)
		l.CompletedAt = &now
		if err := r.Loans.Save(ctx, l); err != nil {
			return nil, err
		}
		res.Completed = true
	}
	return res, nil
}

// Balance is total owed minus repayments for an ACTIVE loan, else zero.
func (e *Engine) Balance(ctx context.Context, r uow.Repos, l *domain.Loan) (decimal.Decimal, error) {
	if l == nil || l.Status != domain.StatusActive {
		return decimal.Zero, nil
	}
	rs, err := r.Repayments.ListByLoan(ctx, l.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return nonNegative(l.TotalOwed().Sub(domain.SumRepayments(rs))), nil
}

// Schedule lists the installments of an approved loan with repayments
// allocated to them in order.
func (e *Engine) Schedule(ctx context.Context, r uow.Repos, l *domain.Loan) (*Schedule, error) {
	if !l.AmountApproved.Valid {
		return nil, errs.Newf(errs.ErrInvalidTransition, "loan is %s and has no approved amount", l.Status)
	}
	rs, err := r.Repayments.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	parts := domain.Installments(l.Principal(), l.InterestRate, l.RepaymentPeriodMonths)
	paid := domain.SumRepayments(rs)
	out := &Schedule{
		LoanID:       l.LoanID,
		Principal:    l.Principal(),
		InterestRate: l.InterestRate,
		Months:       l.RepaymentPeriodMonths,
		TotalOwed:    l.TotalOwed(),
		TotalPaid:    paid,
		Installments: make([]Installment, 0, len(parts)),
	}
	if len(parts) > 0 {
		out.MonthlyInstallment = parts[0]
	}

	start := l.DisbursedAt
	if start == nil {
		start = l.DecidedAt
	}
	left := paid
	for i, amount := range parts {
		inst := Installment{Number: i + 1, Amount: amount, Paid: money.Min(left, amount)}
		left = left.Sub(inst.Paid)
		if start != nil {
			due := start.AddDate(0, i+1, 0)
			inst.DueDate = &due
		}
		out.Installments = append(out.Installments, inst)
	}
	return out, nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
