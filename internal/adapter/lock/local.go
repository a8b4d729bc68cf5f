// Package lock serializes ledger commands per (group, user) pair.
package lock

import (
	"context"
	"sync"
	"time"

	"village-banking/internal/domain/errs"
	"village-banking/internal/domain/uow"
)

var (
	_ uow.MemberLocker = (*Local)(nil)
	_ uow.MemberLocker = (*Redis)(nil)
)

func memberKey(groupID, userID string) string { return groupID + ":" + userID }

type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex. It only serializes callers sharing the
// same process.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// NewLocal returns a locker that gives up after wait; zero waits until ctx ends.
func NewLocal(wait time.Duration) *Local {
	return &Local{slots: make(map[string]*slot), wait: wait}
}

func (l *Local) Lock(ctx context.Context, groupID, userID string) (func(), error) {
	key := memberKey(groupID, userID)
	l.mu.Lock()
	s := l.slots[key]
	if s == nil {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		return nil, errs.Wrap(errs.ErrConcurrencyConflict, ctx.Err())
	case <-timeout:
		l.release(key, s)
		return nil, errs.New(errs.ErrConcurrencyConflict, "member is busy, try again")
	}
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports the number of keys with a holder or waiter.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
