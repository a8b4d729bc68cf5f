// Package snapshotcache keeps member snapshots in redis for dashboards.
package snapshotcache

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"village-banking/internal/usecase/aggregate"
	"village-banking/internal/usecase/coordinator"
)

var _ coordinator.SnapshotCache = (*Redis)(nil)

// versionTTL outlives any read that could still be racing an invalidation.
const versionTTL = 24 * time.Hour

// setIfCurrent writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfCurrent = redis.NewScript(`
local v = redis.call('GET', KEYS[2]) or '0'
if v ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Redis { return &Redis{rdb: rdb, ttl: ttl} }

func key(groupID, userID string) string { return "vb:snapshot:" + groupID + ":" + userID }

func versionKey(groupID, userID string) string { return "vb:snapshot:ver:" + groupID + ":" + userID }

func (c *Redis) Get(ctx context.Context, groupID, userID string) (*aggregate.MemberSnapshot, int64, bool) {
	vals, err := c.rdb.MGet(ctx, key(groupID, userID), versionKey(groupID, userID)).Result()
	if err != nil {
		log.Printf("snapshotcache: get %s/%s: %v", groupID, userID, err)
		return nil, 0, false
	}
	var version int64
	if v, ok := vals[1].(string); ok {
		version, _ = strconv.ParseInt(v, 10, 64)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, false
	}
	var s aggregate.MemberSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, version, false
	}
	return &s, version, true
}

// Set is dropped when the member was invalidated after version was read.
func (c *Redis) Set(ctx context.Context, s *aggregate.MemberSnapshot, version int64) {
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	keys := []string{key(s.GroupID, s.UserID), versionKey(s.GroupID, s.UserID)}
	err = setIfCurrent.Run(ctx, c.rdb, keys, strconv.FormatInt(version, 10), payload, c.ttl.Milliseconds()).Err()
	if err != nil {
		log.Printf("snapshotcache: set %s/%s: %v", s.GroupID, s.UserID, err)
	}
}

func (c *Redis) Invalidate(ctx context.Context, groupID, userID string) {
	vk := versionKey(groupID, userID)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, vk)
		p.PExpire(ctx, vk, versionTTL)
		p.Del(ctx, key(groupID, userID))
		return nil
	})
	if err != nil {
		log.Printf("snapshotcache: invalidate %s/%s: %v", groupID, userID, err)
	}
}
