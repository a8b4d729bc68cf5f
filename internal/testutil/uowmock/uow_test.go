package uowmock

import (
	"context"
	"errors"
	"testing"

	"village-banking/internal/domain/member"
	"village-banking/internal/domain/uow"
)

func TestUoW_WithinMemberTx_ForwardsMember(t *testing.T) {
	ctx := context.Background()
	want := &member.Member{GroupID: "G", UserID: "U", Status: member.StatusActive}
	m := New().WithWithinMemberTx(func(_ context.Context, g, u string, fn func(uow.Repos, *member.Member) error) error {
		if g != "G" || u != "U" {
			t.Fatalf("ids not forwarded: %s/%s", g, u)
		}
		return fn(uow.Repos{}, want)
	})
	var got *member.Member
	if err := m.WithinMemberTx(ctx, "G", "U", func(_ uow.Repos, mm *member.Member) error {
		got = mm
		return nil
	}); err != nil {
		t.Fatalf("WithinMemberTx: %v", err)
	}
	if got != want {
		t.Fatalf("member not forwarded")
	}
}

func TestUoW_Defaults_Unimplemented(t *testing.T) {
	ctx := context.Background()
	m := &UoW{}
	if err := m.WithinMemberTx(ctx, "g", "u", func(uow.Repos, *member.Member) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinMemberTx default: want errUnimplemented, got %v", err)
	}
}
