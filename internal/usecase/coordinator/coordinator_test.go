package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"village-banking/internal/adapter/lock"
	"village-banking/internal/adapter/repository/gormrepo"
	contribDomain "village-banking/internal/domain/contribution"
	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/event"
	loanDomain "village-banking/internal/domain/loan"
	"village-banking/internal/domain/member"
	penaltyDomain "village-banking/internal/domain/penalty"
	"village-banking/internal/domain/policy"
	"village-banking/internal/domain/uow"
	"village-banking/internal/testutil/sqlitedb"
	"village-banking/internal/testutil/uowmock"
	"village-banking/internal/usecase/aggregate"
	contributionuc "village-banking/internal/usecase/contribution"
	loanuc "village-banking/internal/usecase/loan"
	"village-banking/pkg/money"
)

var (
	treasurer = member.Actor{UserID: "T1", Role: member.RoleTreasurer}
	borrower  = member.Actor{UserID: "U1", Role: member.RoleMember}
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Dispatch(_ context.Context, evs []event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
}

func (r *recorder) count(t event.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type memCache struct {
	mu          sync.Mutex
	snaps       map[string]*aggregate.MemberSnapshot
	versions    map[string]int64
	invalidated int
	// beforeSet runs once, just before the next Set is applied.
	beforeSet func()
}

func (c *memCache) Get(_ context.Context, groupID, userID string) (*aggregate.MemberSnapshot, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := groupID + "/" + userID
	s, ok := c.snaps[k]
	return s, c.versions[k], ok
}

func (c *memCache) Set(_ context.Context, s *aggregate.MemberSnapshot, version int64) {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	k := s.GroupID + "/" + s.UserID
	if c.versions[k] != version {
		return
	}
	c.snaps[k] = s
}

func (c *memCache) Invalidate(_ context.Context, groupID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := groupID + "/" + userID
	c.versions[k]++
	delete(c.snaps, k)
	c.invalidated++
}

type env struct {
	ctx    context.Context
	gdb    *gorm.DB
	events *recorder
	cache  *memCache
	co     *Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := sqlitedb.Open(t)
	sqlitedb.SeedGroup(t, gdb, "G1")
	sqlitedb.SeedMember(t, gdb, "G1", "U1", member.RoleMember)
	sqlitedb.SeedMember(t, gdb, "G1", "T1", member.RoleTreasurer)
	e := &env{
		ctx:    context.Background(),
		gdb:    gdb,
		events: &recorder{},
		cache:  &memCache{snaps: map[string]*aggregate.MemberSnapshot{}, versions: map[string]int64{}},
	}
	e.co = New(Deps{
		UoW:          gormrepo.NewGormUoW(gdb),
		Locker:       lock.NewLocal(5 * time.Second),
		Rules:        policy.Default(),
		Events:       e.events,
		Cache:        e.cache,
		MaxRetries:   2,
		RetryInitial: time.Millisecond,
	})
	return e
}

// save records and confirms a full monthly contribution for each month.
func (e *env) save(t *testing.T, userID string, months ...int) {
	t.Helper()
	for _, month := range months {
		c, _, err := e.co.RecordOnlinePayment(e.ctx, "G1", userID, contributionuc.OnlinePaymentInput{
			Amount: money.New(5000), Month: month, Year: 2025, Method: contribDomain.MethodMobileMoney,
		})
		if err != nil {
			t.Fatalf("RecordOnlinePayment: %v", err)
		}
		if _, err := e.co.ConfirmContribution(e.ctx, "G1", c.ContributionID, treasurer); err != nil {
			t.Fatalf("ConfirmContribution: %v", err)
		}
	}
}

func TestLoanLifecycle(t *testing.T) {
	e := newEnv(t)
	e.save(t, "U1", 1, 2, 3)

	el, err := e.co.CheckEligibility(e.ctx, "G1", "U1")
	if err != nil || !el.Eligible || !el.MaxLoanAmount.Equal(money.New(45000)) {
		t.Fatalf("eligibility = %+v, %v", el, err)
	}

	l, err := e.co.RequestLoan(e.ctx, "G1", "U1", loanuc.RequestInput{Amount: money.New(30000), Months: 6, Purpose: "goats"})
	if err != nil {
		t.Fatalf("RequestLoan: %v", err)
	}
	if _, err := e.co.DecideLoan(e.ctx, "G1", l.LoanID, loanuc.DecideInput{Decision: loanuc.DecisionApprove}, treasurer); err != nil {
		t.Fatalf("DecideLoan: %v", err)
	}
	active, err := e.co.DisburseLoan(e.ctx, "G1", l.LoanID, treasurer)
	if err != nil || active.Status != loanDomain.StatusActive {
		t.Fatalf("DisburseLoan = %v, %v", active, err)
	}

	sched, err := e.co.LoanSchedule(e.ctx, "G1", l.LoanID)
	if err != nil || !sched.TotalOwed.Equal(money.New(31500)) {
		t.Fatalf("schedule = %+v, %v", sched, err)
	}

	var last *loanuc.RepaymentResult
	for _, inst := range sched.Installments {
		last, err = e.co.RecordRepayment(e.ctx, "G1", l.LoanID, inst.Amount, borrower)
		if err != nil {
			t.Fatalf("RecordRepayment: %v", err)
		}
	}
	if !last.Completed || last.Loan.Status != loanDomain.StatusCompleted {
		t.Fatalf("loan not completed after repaying %s", last.TotalPaid)
	}

	totals, err := e.co.GroupTotals(e.ctx, "G1")
	if err != nil || !totals.TotalCollected.Equal(money.New(15000)) || !totals.TotalDisbursed.Equal(money.New(30000)) {
		t.Fatalf("totals = %+v, %v", totals, err)
	}

	for typ, want := range map[event.Type]int{
		event.ContributionConfirmed: 3,
		event.LoanRequested:         1,
		event.LoanApproved:          1,
		event.LoanDisbursed:         1,
		event.RepaymentRecorded:     6,
		event.LoanCompleted:         1,
	} {
		if got := e.events.count(typ); got != want {
			t.Fatalf("%s events = %d, want %d", typ, got, want)
		}
	}
}

func TestRequestLoan_ConcurrentOnlyOneWins(t *testing.T) {
	e := newEnv(t)
	e.save(t, "U1", 1, 2, 3)

	var (
		g       errgroup.Group
		mu      sync.Mutex
		ok      int
		refused int
	)
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := e.co.RequestLoan(e.ctx, "G1", "U1", loanuc.RequestInput{Amount: money.New(10000), Months: 3})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, errs.ErrNotEligible):
				refused++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok != 1 || refused != 1 {
		t.Fatalf("ok=%d refused=%d, want 1/1", ok, refused)
	}
	var n int64
	e.gdb.Model(&loanDomain.Loan{}).Where("user_id = ? AND status = ?", "U1", loanDomain.StatusPending).Count(&n)
	if n != 1 {
		t.Fatalf("pending loans = %d", n)
	}
}

func TestPenaltyRacingCashStaysConsistent(t *testing.T) {
	e := newEnv(t)
	var g errgroup.Group
	g.Go(func() error {
		_, err := e.co.ApplyPenalty(e.ctx, "G1", "U1", penaltyDomain.TypeLateMeeting, treasurer)
		return err
	})
	g.Go(func() error {
		_, err := e.co.RecordCashPayment(e.ctx, "G1", "U1", contributionuc.CashPaymentInput{Amount: money.New(5000), Month: 3, Year: 2025}, treasurer)
		return err
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	var unpaid []penaltyDomain.Penalty
	e.gdb.Where("user_id = ? AND paid = ?", "U1", false).Find(&unpaid)
	sum := decimal.Zero
	for _, p := range unpaid {
		sum = sum.Add(p.Amount)
	}
	out, err := e.co.OutstandingPenalties(e.ctx, "G1", "U1")
	if err != nil || !out.Equal(sum) {
		t.Fatalf("outstanding %s vs rows %s (%v)", out, sum, err)
	}

	var march contribDomain.Contribution
	e.gdb.Where("user_id = ? AND month = ?", "U1", 3).First(&march)
	switch {
	case out.IsZero() && march.Amount.Equal(money.New(3000)) && march.Status == contribDomain.StatusPending:
	case out.Equal(money.New(2000)) && march.Amount.Equal(money.New(5000)) && march.Status == contribDomain.StatusCompleted:
	default:
		t.Fatalf("inconsistent state: outstanding %s, march %s %s", out, march.Amount, march.Status)
	}
}

func TestRecordOnlinePayment_ReplayReturnsOriginal(t *testing.T) {
	e := newEnv(t)
	in := contributionuc.OnlinePaymentInput{Amount: money.New(5000), Month: 1, Year: 2025, Method: contribDomain.MethodCard, Ref: " TX-1 "}
	first, created, err := e.co.RecordOnlinePayment(e.ctx, "G1", "U1", in)
	if err != nil || !created {
		t.Fatalf("first = %v, %v", created, err)
	}
	again, created, err := e.co.RecordOnlinePayment(e.ctx, "G1", "U1", in)
	if err != nil || created || again.ContributionID != first.ContributionID {
		t.Fatalf("replay = %v created=%v, %v", again, created, err)
	}
	var n int64
	e.gdb.Model(&contribDomain.Contribution{}).Count(&n)
	if n != 1 {
		t.Fatalf("rows = %d", n)
	}
}

func TestCommandErrors(t *testing.T) {
	e := newEnv(t)
	plain := member.Actor{UserID: "U1", Role: member.RoleMember}

	if _, err := e.co.ApplyPenalty(e.ctx, "G1", "U1", penaltyDomain.TypeGeneral, plain); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("member applying penalty: %v", err)
	}
	if _, err := e.co.ApplyPenalty(e.ctx, "G1", "NOBODY", penaltyDomain.TypeGeneral, treasurer); !errors.Is(err, errs.ErrInvalidMember) {
		t.Fatalf("non-member: %v", err)
	}
	if _, err := e.co.ApplyPenalty(e.ctx, "G2", "U1", penaltyDomain.TypeGeneral, treasurer); !errors.Is(err, errs.ErrInvalidMember) {
		t.Fatalf("wrong group: %v", err)
	}
	if _, err := e.co.CheckEligibility(e.ctx, "G1", "NOBODY"); !errors.Is(err, errs.ErrInvalidMember) {
		t.Fatalf("eligibility for non-member: %v", err)
	}
	if _, err := e.co.GroupTotals(e.ctx, "G404"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown group: %v", err)
	}
	if _, err := e.co.DisburseLoan(e.ctx, "G1", "missing", treasurer); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown loan: %v", err)
	}
	if _, err := e.co.ConfirmContribution(e.ctx, "G1", "missing", treasurer); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown contribution: %v", err)
	}
	if _, err := e.co.RecordRepayment(e.ctx, "G1", "missing", decimal.Zero, borrower); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Fatalf("zero repayment: %v", err)
	}
}

func TestRecordRepayment_OnlyBorrowerOrGroupManager(t *testing.T) {
	e := newEnv(t)
	sqlitedb.SeedMember(t, e.gdb, "G1", "U2", member.RoleMember)
	sqlitedb.SeedGroup(t, e.gdb, "G2")
	sqlitedb.SeedMember(t, e.gdb, "G2", "T2", member.RoleTreasurer)
	e.save(t, "U1", 1, 2, 3)

	l, err := e.co.RequestLoan(e.ctx, "G1", "U1", loanuc.RequestInput{Amount: money.New(30000), Months: 6})
	if err != nil {
		t.Fatalf("RequestLoan: %v", err)
	}
	if _, err := e.co.DecideLoan(e.ctx, "G1", l.LoanID, loanuc.DecideInput{Decision: loanuc.DecisionApprove}, treasurer); err != nil {
		t.Fatalf("DecideLoan: %v", err)
	}
	if _, err := e.co.DisburseLoan(e.ctx, "G1", l.LoanID, treasurer); err != nil {
		t.Fatalf("DisburseLoan: %v", err)
	}

	refused := []member.Actor{
		{UserID: "OUTSIDER", Role: member.RoleMember},
		{UserID: "U2", Role: member.RoleMember},
		{UserID: "OUTSIDER", Role: member.RoleAdmin},
		{UserID: "T2", Role: member.RoleTreasurer},
	}
	for _, a := range refused {
		if _, err := e.co.RecordRepayment(e.ctx, "G1", l.LoanID, money.New(31500), a); !errors.Is(err, errs.ErrForbidden) {
			t.Fatalf("%s/%s repaying: want forbidden, got %v", a.UserID, a.Role, err)
		}
	}
	if got := e.events.count(event.RepaymentRecorded); got != 0 {
		t.Fatalf("refused repayments recorded %d events", got)
	}

	res, err := e.co.RecordRepayment(e.ctx, "G1", l.LoanID, money.New(5250), borrower)
	if err != nil || res.Loan.Status != loanDomain.StatusActive {
		t.Fatalf("borrower repayment = %+v, %v", res, err)
	}
	res, err = e.co.RecordRepayment(e.ctx, "G1", l.LoanID, money.New(5250), treasurer)
	if err != nil || !res.TotalPaid.Equal(money.New(10500)) {
		t.Fatalf("treasurer repayment = %+v, %v", res, err)
	}
}

func TestLoanFromAnotherGroupIsNotFound(t *testing.T) {
	e := newEnv(t)
	sqlitedb.SeedGroup(t, e.gdb, "G2")
	sqlitedb.SeedMember(t, e.gdb, "G2", "U1", member.RoleMember)
	e.save(t, "U1", 1, 2, 3)
	l, err := e.co.RequestLoan(e.ctx, "G1", "U1", loanuc.RequestInput{Amount: money.New(100), Months: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.co.DecideLoan(e.ctx, "G2", l.LoanID, loanuc.DecideInput{Decision: loanuc.DecisionReject}, treasurer); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if _, err := e.co.LoanSchedule(e.ctx, "G2", l.LoanID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("schedule across groups: %v", err)
	}
}

func TestSnapshotCacheInvalidatedOnCommit(t *testing.T) {
	e := newEnv(t)
	first, err := e.co.MemberSnapshot(e.ctx, "G1", "U1")
	if err != nil {
		t.Fatal(err)
	}
	if cached, _, ok := e.cache.Get(e.ctx, "G1", "U1"); !ok || cached != first {
		t.Fatal("snapshot not cached")
	}
	again, _ := e.co.MemberSnapshot(e.ctx, "G1", "U1")
	if again != first {
		t.Fatal("cache not used")
	}

	if _, err := e.co.ApplyPenalty(e.ctx, "G1", "U1", penaltyDomain.TypeMissedMeeting, treasurer); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := e.cache.Get(e.ctx, "G1", "U1"); ok {
		t.Fatal("snapshot survived a commit")
	}
	fresh, _ := e.co.MemberSnapshot(e.ctx, "G1", "U1")
	if !fresh.OutstandingPenalties.Equal(money.New(3000)) {
		t.Fatalf("fresh snapshot penalties = %s", fresh.OutstandingPenalties)
	}
}

func TestSnapshotReadBeforeCommitIsNotCached(t *testing.T) {
	e := newEnv(t)
	// the penalty commits after the miss has read the ledger but before the
	// snapshot reaches the cache
	e.cache.beforeSet = func() {
		if _, err := e.co.ApplyPenalty(e.ctx, "G1", "U1", penaltyDomain.TypeLateMeeting, treasurer); err != nil {
			t.Errorf("ApplyPenalty: %v", err)
		}
	}
	stale, err := e.co.MemberSnapshot(e.ctx, "G1", "U1")
	if err != nil {
		t.Fatal(err)
	}
	if !stale.OutstandingPenalties.IsZero() {
		t.Fatalf("read should predate the penalty, got %s", stale.OutstandingPenalties)
	}
	if _, _, ok := e.cache.Get(e.ctx, "G1", "U1"); ok {
		t.Fatal("pre-commit snapshot was cached")
	}
	fresh, err := e.co.MemberSnapshot(e.ctx, "G1", "U1")
	if err != nil || !fresh.OutstandingPenalties.Equal(money.New(2000)) {
		t.Fatalf("fresh snapshot = %+v, %v", fresh, err)
	}
	if cached, _, ok := e.cache.Get(e.ctx, "G1", "U1"); !ok || cached != fresh {
		t.Fatal("current snapshot should be cached")
	}
}

func mockCoordinator(u *uowmock.UoW, ev event.Dispatcher) *Coordinator {
	return New(Deps{
		UoW:          u,
		Locker:       lock.NewLocal(time.Second),
		Rules:        policy.Default(),
		Events:       ev,
		MaxRetries:   2,
		RetryInitial: time.Millisecond,
	})
}

func TestRetryPolicy(t *testing.T) {
	online := func(ref string) contributionuc.OnlinePaymentInput {
		return contributionuc.OnlinePaymentInput{Amount: money.New(10), Month: 1, Year: 2025, Method: contribDomain.MethodCard, Ref: ref}
	}
	tests := []struct {
		name      string
		failWith  error
		call      func(c *Coordinator) error
		wantCalls int
		want      error
	}{
		{
			name:     "idempotent persistence failure is retried",
			failWith: errors.New("connection reset"),
			call: func(c *Coordinator) error {
				_, _, err := c.RecordOnlinePayment(context.Background(), "G1", "U1", online("R1"))
				return err
			},
			wantCalls: 3, want: errs.ErrPersistence,
		},
		{
			name:     "without a ref nothing is retried",
			failWith: errors.New("connection reset"),
			call: func(c *Coordinator) error {
				_, _, err := c.RecordOnlinePayment(context.Background(), "G1", "U1", online(""))
				return err
			},
			wantCalls: 1, want: errs.ErrPersistence,
		},
		{
			name:     "cash is never retried",
			failWith: gorm.ErrDuplicatedKey,
			call: func(c *Coordinator) error {
				_, err := c.RecordCashPayment(context.Background(), "G1", "U1", contributionuc.CashPaymentInput{Amount: money.New(10), Month: 1, Year: 2025}, treasurer)
				return err
			},
			wantCalls: 1, want: errs.ErrConcurrencyConflict,
		},
		{
			name:     "business errors are not retried",
			failWith: errs.New(errs.ErrNotEligible, "no"),
			call: func(c *Coordinator) error {
				_, _, err := c.RecordOnlinePayment(context.Background(), "G1", "U1", online("R2"))
				return err
			},
			wantCalls: 1, want: errs.ErrNotEligible,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ev := &recorder{}
			u := uowmock.New().WithWithinMemberTx(func(context.Context, string, string, func(uow.Repos, *member.Member) error) error {
				calls++
				return tt.failWith
			})
			err := tt.call(mockCoordinator(u, ev))
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if len(ev.events) != 0 {
				t.Fatalf("events dispatched for a failed command: %v", ev.events)
			}
		})
	}
}

func TestRetryRecoversOnSecondAttempt(t *testing.T) {
	calls := 0
	u := uowmock.New().WithWithinMemberTx(func(context.Context, string, string, func(uow.Repos, *member.Member) error) error {
		calls++
		if calls == 1 {
			return errors.New("deadlock found")
		}
		return nil
	})
	_, _, err := mockCoordinator(u, nil).RecordOnlinePayment(context.Background(), "G1", "U1", contributionuc.OnlinePaymentInput{
		Amount: money.New(10), Month: 1, Year: 2025, Method: contribDomain.MethodCard, Ref: "R3",
	})
	if err != nil || calls != 2 {
		t.Fatalf("calls = %d, err = %v", calls, err)
	}
}

func TestValidationRejectedBeforeTransaction(t *testing.T) {
	u := uowmock.New() // any transaction would fail with errUnimplemented
	c := mockCoordinator(u, nil)
	_, err := c.RecordCashPayment(context.Background(), "G1", "U1", contributionuc.CashPaymentInput{Amount: money.New(-1), Month: 1, Year: 2025}, treasurer)
	if !errors.Is(err, errs.ErrInvalidAmount) {
		t.Fatalf("want invalid amount, got %v", err)
	}
	_, err = c.RequestLoan(context.Background(), "G1", "U1", loanuc.RequestInput{Amount: money.New(100), Months: 99})
	if !errors.Is(err, errs.ErrInvalidPeriod) {
		t.Fatalf("want invalid period, got %v", err)
	}
}
