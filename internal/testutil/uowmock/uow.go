package uowmock

import (
	"context"
	"errors"

	"village-banking/internal/domain/member"
	"village-banking/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinMemberTxFn func(ctx context.Context, groupID, userID string, fn func(r uow.Repos, m *member.Member) error) error
	ReaderRepos      uow.Repos
}

func New() *UoW { return &UoW{} }

func (m *UoW) WithWithinMemberTx(fn func(context.Context, string, string, func(uow.Repos, *member.Member) error) error) *UoW {
	m.WithinMemberTxFn = fn
	return m
}

func (m *UoW) WithinMemberTx(ctx context.Context, groupID, userID string, fn func(r uow.Repos, m *member.Member) error) error {
	if m.WithinMemberTxFn != nil {
		return m.WithinMemberTxFn(ctx, groupID, userID, fn)
	}
	return errUnimplemented
}

func (m *UoW) Reader() uow.Repos { return m.ReaderRepos }
