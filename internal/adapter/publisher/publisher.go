// Package publisher delivers committed ledger events without blocking the
// command that produced them.
package publisher

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"village-banking/internal/domain/event"
)

var (
	_ event.Publisher  = (*Redis)(nil)
	_ event.Publisher  = Log{}
	_ event.Dispatcher = (*Async)(nil)
)

// Redis publishes each event as JSON on a pub/sub channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

func NewRedis(rdb *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = "vb:ledger:events"
	}
	return &Redis{rdb: rdb, channel: channel}
}

func (p *Redis) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// Log writes events to the standard logger; used when no redis is configured.
type Log struct{}

func (Log) Publish(_ context.Context, e event.Event) error {
	log.Printf("event %s %s group=%s user=%s entity=%s", e.ID, e.Type, e.GroupID, e.UserID, e.EntityID)
	return nil
}

// Async queues events on a buffered channel drained by one worker. When the
// queue is full the event is dropped and logged.
type Async struct {
	pub     event.Publisher
	queue   chan event.Event
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

func NewAsync(pub event.Publisher, buffer int) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	a := &Async{pub: pub, queue: make(chan event.Event, buffer), timeout: 2 * time.Second}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *Async) Dispatch(_ context.Context, events []event.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	for _, e := range events {
		select {
		case a.queue <- e:
		default:
			log.Printf("publisher: queue full, dropped %s %s", e.Type, e.ID)
		}
	}
}

func (a *Async) loop() {
	defer a.wg.Done()
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.pub.Publish(ctx, e); err != nil {
			log.Printf("publisher: deliver %s %s: %v", e.Type, e.ID, err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (a *Async) Close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
		a.wg.Wait()
	})
}
