package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	Save(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	// GetOpenByMember returns the member's PENDING, APPROVED or ACTIVE loan.
	GetOpenByMember(ctx context.Context, groupID, userID string) (*Loan, error)
	ListByGroup(ctx context.Context, groupID string, statuses ...Status) ([]Loan, error)
}

type RepaymentRepository interface {
	Create(ctx context.Context, r *Repayment) error
	ListByLoan(ctx context.Context, loanNumericID uint64) ([]Repayment, error)
}
