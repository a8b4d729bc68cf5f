// Package coordinator runs ledger commands one member at a time. Each command
// takes the member lock, runs in a single transaction that row-locks the
// membership, and hands its events to the dispatcher once committed.
package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"

	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/event"
	"village-banking/internal/domain/group"
	"village-banking/internal/domain/member"
	"village-banking/internal/domain/policy"
	"village-banking/internal/domain/uow"
	"village-banking/internal/usecase/aggregate"
	contributionuc "village-banking/internal/usecase/contribution"
	loanuc "village-banking/internal/usecase/loan"
	penaltyuc "village-banking/internal/usecase/penalty"
)

// SnapshotCache keeps advisory member snapshots. A miss is never an error.
// Get reports the member's cache version alongside a miss; Set stores the
// snapshot only while that version is current, and Invalidate advances it,
// so a snapshot read before a commit is never cached after it.
type SnapshotCache interface {
	Get(ctx context.Context, groupID, userID string) (snap *aggregate.MemberSnapshot, version int64, ok bool)
	Set(ctx context.Context, s *aggregate.MemberSnapshot, version int64)
	Invalidate(ctx context.Context, groupID, userID string)
}

type Deps struct {
	UoW    uow.UnitOfWork
	Locker uow.MemberLocker
	Rules  policy.Rules
	Events event.Dispatcher
	Cache  SnapshotCache
	// MaxRetries bounds extra attempts for idempotent commands.
	MaxRetries   uint
	RetryInitial time.Duration
	Clock        func() time.Time
}

type Coordinator struct {
	uow           uow.UnitOfWork
	locker        uow.MemberLocker
	events        event.Dispatcher
	cache         SnapshotCache
	maxRetries    uint
	retryInitial  time.Duration
	now           func() time.Time
	penalties     *penaltyuc.Ledger
	contributions *contributionuc.Ledger
	loans         *loanuc.Engine
	agg           *aggregate.Aggregator
}

func New(d Deps) *Coordinator {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	if d.Events == nil {
		d.Events = discard{}
	}
	if d.RetryInitial <= 0 {
		d.RetryInitial = 25 * time.Millisecond
	}
	penalties := penaltyuc.NewLedger(clock)
	loans := loanuc.NewEngine(d.Rules, clock)
	return &Coordinator{
		uow:           d.UoW,
		locker:        d.Locker,
		events:        d.Events,
		cache:         d.Cache,
		maxRetries:    d.MaxRetries,
		retryInitial:  d.RetryInitial,
		now:           clock,
		penalties:     penalties,
		contributions: contributionuc.NewLedger(penalties, clock),
		loans:         loans,
		agg:           aggregate.NewAggregator(loans, clock),
	}
}

type discard struct{}

func (discard) Dispatch(context.Context, []event.Event) {}

// runFn is the body of a command. It runs inside the member transaction and
// returns the events to emit on commit.
type runFn func(ctx context.Context, r uow.Repos, g *group.Group, m *member.Member) ([]event.Event, error)

type command struct {
	name       string
	groupID    string
	userID     string
	idempotent bool
	run        runFn
}

// execute runs cmd once, or with bounded backoff when it is safe to repeat.
func (c *Coordinator) execute(ctx context.Context, cmd command) error {
	tries := uint(1)
	if cmd.idempotent {
		tries += c.maxRetries
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = 20 * c.retryInitial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.runOnce(ctx, cmd)
		if err == nil || (cmd.idempotent && retryable(err)) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Printf("coordinator: %s %s/%s retry in %s: %v", cmd.name, cmd.groupID, cmd.userID, wait, err)
		}),
	)
	return err
}

func (c *Coordinator) runOnce(ctx context.Context, cmd command) error {
	unlock, err := c.locker.Lock(ctx, cmd.groupID, cmd.userID)
	if err != nil {
		return classify(err)
	}
	defer unlock()

	var events []event.Event
	err = c.uow.WithinMemberTx(ctx, cmd.groupID, cmd.userID, func(r uow.Repos, m *member.Member) error {
		g, err := loadGroup(ctx, r, cmd.groupID)
		if err != nil {
			return err
		}
		events, err = cmd.run(ctx, r, g, m)
		return err
	})
	if err != nil {
		return classify(err)
	}
	c.afterCommit(ctx, cmd.groupID, cmd.userID, events)
	return nil
}

// afterCommit never fails the command; delivery is best effort.
func (c *Coordinator) afterCommit(ctx context.Context, groupID, userID string, events []event.Event) {
	ctx = context.WithoutCancel(ctx)
	if c.cache != nil {
		c.cache.Invalidate(ctx, groupID, userID)
	}
	if len(events) > 0 {
		c.events.Dispatch(ctx, events)
	}
}

func loadGroup(ctx context.Context, r uow.Repos, groupID string) (*group.Group, error) {
	g, err := r.Groups.GetByGroupID(ctx, groupID)
	if err != nil {
		return nil, found(err, "group")
	}
	if err := g.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, err)
	}
	return g, nil
}

// found turns a missing row into ErrNotFound for the named entity.
func found(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Newf(errs.ErrNotFound, "%s not found", what)
	}
	return err
}

// classify maps whatever escaped a transaction onto the error taxonomy. A
// bare not-found at this level can only come from the membership lookup.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errs.IsDomain(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.New(errs.ErrInvalidMember, "user is not a member of the group")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errs.Wrap(errs.ErrConcurrencyConflict, err)
	default:
		return errs.Wrap(errs.ErrPersistence, err)
	}
}

func retryable(err error) bool {
	return errors.Is(err, errs.ErrConcurrencyConflict) || errors.Is(err, errs.ErrPersistence)
}
