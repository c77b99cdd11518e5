package repository

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// WaitTimeCache keeps the latest minimum wait (minutes) per ride in a
// single Redis hash. A nil client makes every call a no-op.
type WaitTimeCache struct {
	rdb *redis.Client
	key string
}

func NewWaitTimeCache(rdb *redis.Client, prefix string) *WaitTimeCache {
	return &WaitTimeCache{rdb: rdb, key: prefix + ":ride_wait_minutes"}
}

// Replace swaps the whole snapshot atomically.
func (c *WaitTimeCache) Replace(ctx context.Context, minutes map[uint64]int) error {
	if c.rdb == nil {
		return nil
	}
	fields := make(map[string]any, len(minutes))
	for rideID, m := range minutes {
		fields[strconv.FormatUint(rideID, 10)] = m
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, c.key)
		if len(fields) > 0 {
			p.HSet(ctx, c.key, fields)
		}
		return nil
	})
	return err
}

// All returns the stored snapshot. Unparseable entries are skipped.
func (c *WaitTimeCache) All(ctx context.Context) (map[uint64]int, error) {
	out := map[uint64]int{}
	if c.rdb == nil {
		return out, nil
	}
	raw, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	for k, v := range raw {
		id, err1 := strconv.ParseUint(k, 10, 64)
		m, err2 := strconv.Atoi(v)
		if err1 != nil || err2 != nil {
			continue
		}
		out[id] = m
	}
	return out, nil
}
