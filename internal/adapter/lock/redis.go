package lock

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"village-banking/internal/domain/errs"
	"village-banking/pkg/id"
)

const retryEvery = 15 * time.Millisecond

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a shared lock built on SET NX PX. The TTL bounds how long a
// crashed holder can block the member.
type Redis struct {
	rdb  *redis.Client
	ttl  time.Duration
	wait time.Duration
}

// NewRedis returns a locker that gives up after wait; zero waits until ctx
// ends, as Local does.
func NewRedis(rdb *redis.Client, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{rdb: rdb, ttl: ttl, wait: wait}
}

func redisKey(groupID, userID string) string { return "vb:lock:member:" + memberKey(groupID, userID) }

func (l *Redis) Lock(ctx context.Context, groupID, userID string) (func(), error) {
	key := redisKey(groupID, userID)
	token := id.NewEventID()
	var deadline time.Time
	if l.wait > 0 {
		deadline = time.Now().Add(l.wait)
	}

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errs.Wrap(errs.ErrConcurrencyConflict, ctx.Err())
			}
			return nil, errs.Wrap(errs.ErrPersistence, err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := release.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
					log.Printf("lock: release %s: %v", key, err)
				}
			}, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, errs.New(errs.ErrConcurrencyConflict, "member is busy, try again")
		}
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.ErrConcurrencyConflict, ctx.Err())
		case <-time.After(retryEvery):
		}
	}
}
