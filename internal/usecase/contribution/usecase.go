package contribution

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domain "village-banking/internal/domain/contribution"
	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/group"
	"village-banking/internal/domain/member"
	"village-banking/internal/domain/uow"
	penaltyuc "village-banking/internal/usecase/penalty"
	"village-banking/pkg/id"
	"village-banking/pkg/money"
)

// Ledger records contributions. Like the penalty ledger it runs inside the
// caller's member transaction.
type Ledger struct {
	penalties *penaltyuc.Ledger
	now       func() time.Time
}

func NewLedger(penalties *penaltyuc.Ledger, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{penalties: penalties, now: clock}
}

// RecordOnline creates a PENDING contribution. A replay with the same ref
// returns the stored row and created=false.
func (l *Ledger) RecordOnline(ctx context.Context, r uow.Repos, m *member.Member, in OnlinePaymentInput) (*domain.Contribution, bool, error) {
	if !m.IsActive() {
		return nil, false, errs.New(errs.ErrInvalidMember, "member is not active in the group")
	}
	ref := strings.TrimSpace(in.Ref)
	if ref != "" {
		existing, err := r.Contributions.GetByRef(ctx, m.GroupID, ref)
		switch {
		case err == nil:
			if existing.UserID != m.UserID {
				return nil, false, errs.New(errs.ErrValidation, "transaction ref already used in this group")
			}
			return existing, false, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, false, err
		}
	}

	c := &domain.Contribution{
		ContributionID: id.NewID32(),
		GroupID:        m.GroupID,
		UserID:         m.UserID,
		Amount:         in.Amount,
		Month:          in.Month,
		Year:           in.Year,
		Status:         domain.StatusPending,
		PaymentMethod:  in.Method,
		PaymentDate:    l.now().UTC(),
		TopUp:          in.TopUp,
	}
	if ref != "" {
		c.TransactionRef = &ref
	}
	if err := r.Contributions.Create(ctx, c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Confirm moves PENDING → COMPLETED.
func (l *Ledger) Confirm(ctx context.Context, r uow.Repos, c *domain.Contribution) (*domain.Contribution, error) {
	if c.Status != domain.StatusPending {
		return nil, errs.Newf(errs.ErrInvalidTransition, "contribution is %s, only PENDING can be confirmed", c.Status)
	}
	if !c.TopUp {
		filled, err := l.periodFilled(ctx, r, c.GroupID, c.UserID, c.Year, c.Month)
		if err != nil {
			return nil, err
		}
		if filled {
			return nil, errs.Newf(errs.ErrInvalidTransition, "period %02d/%d already has a completed contribution", c.Month, c.Year)
		}
	}
	c.Complete()
	if err := r.Contributions.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Reject moves PENDING → REJECTED, or FAILED when failed is set.
func (l *Ledger) Reject(ctx context.Context, r uow.Repos, c *domain.Contribution, failed bool) (*domain.Contribution, error) {
	to := domain.StatusRejected
	if failed {
		to = domain.StatusFailed
	}
	if !c.Close(to) {
		return nil, errs.Newf(errs.ErrInvalidTransition, "contribution is %s, only PENDING can be %s", c.Status, to)
	}
	if err := r.Contributions.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordCash allocates a cash payment: penalties first (oldest, whole ones),
// then the month's contribution, then later unfilled months of the same
// year. Whatever is left becomes a credit row.
func (l *Ledger) RecordCash(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member, in CashPaymentInput) (*CashAllocationResult, error) {
	if !m.IsActive() {
		return nil, errs.New(errs.ErrInvalidMember, "member is not active in the group")
	}
	now := l.now().UTC()
	settled, err := l.penalties.Settle(ctx, r.Penalties, m.GroupID, m.UserID, in.Amount)
	if err != nil {
		return nil, err
	}
	res := &CashAllocationResult{
		PenaltiesSettled: settled.Paid,
		PenaltyAmount:    settled.Applied,
		Remaining:        decimal.Zero,
	}
	remaining := settled.Remaining
	monthly := g.MonthlyContribution

	for month := in.Month; month <= 12 && money.Positive(remaining) && money.Positive(monthly); month++ {
		rows, err := r.Contributions.ListForPeriod(ctx, m.GroupID, m.UserID, in.Year, month)
		if err != nil {
			return nil, err
		}
		if anyFills(rows) {
			continue
		}
		c := partialCash(rows)
		if c == nil {
			c = &domain.Contribution{
				ContributionID: id.NewID32(),
				GroupID:        m.GroupID,
				UserID:         m.UserID,
				Amount:         decimal.Zero,
				Month:          month,
				Year:           in.Year,
				Status:         domain.StatusPending,
				PaymentMethod:  domain.MethodCash,
			}
		}
		take := money.Min(remaining, monthly.Sub(c.Amount))
		if take.IsNegative() {
			take = decimal.Zero
		}
		c.Amount = c.Amount.Add(take)
		c.PaymentDate = now
		remaining = remaining.Sub(take)
		if c.Amount.GreaterThanOrEqual(monthly) {
			c.Complete()
		}
		if c.ID == 0 {
			err = r.Contributions.Create(ctx, c)
		} else {
			err = r.Contributions.Save(ctx, c)
		}
		if err != nil {
			return nil, err
		}
		res.Contributions = append(res.Contributions, *c)
	}

	if money.Positive(remaining) {
		credit := &domain.Credit{
			CreditID: id.NewID32(),
			GroupID:  m.GroupID,
			UserID:   m.UserID,
			Amount:   remaining,
			Month:    in.Month,
			Year:     in.Year,
		}
		if err := r.Credits.Create(ctx, credit); err != nil {
			return nil, err
		}
		res.Credit = credit
		res.Remaining = remaining
	}
	return res, nil
}

// MemberStats sums COMPLETED contributions and counts distinct completed months.
func MemberStats(ctx context.Context, repo domain.Repository, groupID, userID string) (Stats, error) {
	rows, err := repo.ListByMember(ctx, groupID, userID)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: decimal.Zero}
	seen := map[[2]int]struct{}{}
	for _, c := range rows {
		if c.Status != domain.StatusCompleted {
			continue
		}
		st.Total = st.Total.Add(c.Amount)
		seen[[2]int{c.Year, c.Month}] = struct{}{}
	}
	st.Periods = len(seen)
	return st, nil
}

// CreditBalance sums the member's unattributed over-payments.
func CreditBalance(ctx context.Context, repo domain.CreditRepository, groupID, userID string) (decimal.Decimal, error) {
	rows, err := repo.ListByMember(ctx, groupID, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range rows {
		total = total.Add(c.Amount)
	}
	return total, nil
}

func (l *Ledger) periodFilled(ctx context.Context, r uow.Repos, groupID, userID string, year, month int) (bool, error) {
	rows, err := r.Contributions.ListForPeriod(ctx, groupID, userID, year, month)
	if err != nil {
		return false, err
	}
	return anyFills(rows), nil
}

func anyFills(rows []domain.Contribution) bool {
	for i := range rows {
		if rows[i].Fills() {
			return true
		}
	}
	return false
}

func partialCash(rows []domain.Contribution) *domain.Contribution {
	for i := range rows {
		if rows[i].IsPartialCash() && !rows[i].TopUp {
			return &rows[i]
		}
	}
	return nil
}
