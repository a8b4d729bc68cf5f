package penalty

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/group"
	"village-banking/internal/domain/member"
	domain "village-banking/internal/domain/penalty"
	"village-banking/pkg/id"
	"village-banking/pkg/money"
)

// Ledger applies and settles member penalties. Its methods run inside the
// caller's transaction; they never open one themselves.
type Ledger struct{ now func() time.Time }

func NewLedger(clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{now: clock}
}

// Apply creates an unpaid penalty whose amount is frozen from the group policy.
func (l *Ledger) Apply(ctx context.Context, repo domain.Repository, g *group.Group, m *member.Member, t domain.Type) (*domain.Penalty, error) {
	if !t.Valid() {
		return nil, errs.Newf(errs.ErrValidation, "unknown penalty type %q", t)
	}
	if !m.IsActive() {
		return nil, errs.New(errs.ErrInvalidMember, "member is not active in the group")
	}
	amount := t.AmountFor(g)
	if !money.Positive(amount) {
		return nil, errs.Newf(errs.ErrValidation, "group has no fine configured for %s", t)
	}
	p := &domain.Penalty{
		PenaltyID: id.NewID32(),
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		Type:      t,
		Amount:    amount,
		CreatedAt: l.now().UTC(),
	}
	if err := repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Outstanding sums the member's unpaid penalty rows. It is always read from
// the rows, never from a stored counter.
func Outstanding(ctx context.Context, repo domain.Repository, groupID, userID string) (decimal.Decimal, error) {
	unpaid, err := repo.ListUnpaid(ctx, groupID, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range unpaid {
		total = total.Add(p.Amount)
	}
	return total, nil
}

type Settlement struct {
	Applied   decimal.Decimal
	Remaining decimal.Decimal
	Paid      []domain.Penalty
}

// Settle pays whole penalties oldest first until the next one no longer fits
// in available. A penalty is never partially paid.
func (l *Ledger) Settle(ctx context.Context, repo domain.Repository, groupID, userID string, available decimal.Decimal) (*Settlement, error) {
	s := &Settlement{Applied: decimal.Zero, Remaining: available}
	if !money.Positive(available) {
		return s, nil
	}
	unpaid, err := repo.ListUnpaid(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	now := l.now().UTC()
	for i := range unpaid {
		p := unpaid[i]
		if p.Amount.GreaterThan(s.Remaining) {
			break
		}
		p.Paid = true
		p.PaidAt = &now
		if err := repo.Save(ctx, &p); err != nil {
			return nil, err
		}
		s.Applied = s.Applied.Add(p.Amount)
		s.Remaining = s.Remaining.Sub(p.Amount)
		s.Paid = append(s.Paid, p)
	}
	return s, nil
}
