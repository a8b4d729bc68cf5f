package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"village-banking/internal/domain/event"
	"village-banking/pkg/money"
)

type capture struct {
	mu    sync.Mutex
	got   []event.Event
	block chan struct{}
	err   error
}

func (c *capture) Publish(_ context.Context, e event.Event) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, e)
	return c.err
}

func sample(t event.Type) event.Event {
	return event.New(t, "G1", "U1", "E1", money.New(5000), time.Now())
}

func TestRedis_PublishesJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "ledger")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	e := sample(event.LoanApproved)
	if err := NewRedis(rdb, "ledger").Publish(ctx, e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got event.Event
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != e.ID || got.Type != event.LoanApproved || !got.Amount.Equal(e.Amount) {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestAsync_DeliversInOrder(t *testing.T) {
	c := &capture{}
	a := NewAsync(c, 8)
	a.Dispatch(context.Background(), []event.Event{sample(event.PenaltyApplied), sample(event.LoanCompleted)})
	a.Close()

	if len(c.got) != 2 || c.got[0].Type != event.PenaltyApplied || c.got[1].Type != event.LoanCompleted {
		t.Fatalf("delivered %+v", c.got)
	}
}

func TestAsync_FullQueueDropsWithoutBlocking(t *testing.T) {
	c := &capture{block: make(chan struct{})}
	a := NewAsync(c, 1)

	done := make(chan struct{})
	go func() {
		evs := make([]event.Event, 10)
		for i := range evs {
			evs[i] = sample(event.RepaymentRecorded)
		}
		a.Dispatch(context.Background(), evs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	close(c.block)
	a.Close()
	if len(c.got) == 0 || len(c.got) >= 10 {
		t.Fatalf("delivered %d events, want some dropped", len(c.got))
	}
}

func TestAsync_PublishErrorIsSwallowed(t *testing.T) {
	c := &capture{err: errors.New("redis down")}
	a := NewAsync(c, 4)
	a.Dispatch(context.Background(), []event.Event{sample(event.LoanApproved)})
	a.Close()
	a.Dispatch(context.Background(), []event.Event{sample(event.LoanApproved)}) // after close: ignored
	if len(c.got) != 1 {
		t.Fatalf("attempts = %d", len(c.got))
	}
}
