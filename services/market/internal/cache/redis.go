package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "tb:market:snap:"

// putScript compares generations and writes in one step so concurrent
// market replicas cannot interleave.
var putScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "gen")
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "gen", ARGV[1], "data", ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 1
`)

// RedisCache shares snapshots across market replicas. Entries expire after
// ttl so a stalled poller cannot serve stale quotes forever.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (Entry, bool, error) {
	key := normalize(symbol)
	if key == "" {
		return Entry{}, false, nil
	}

	vals, err := c.client.HMGet(ctx, c.prefix+key, "gen", "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Entry{}, false, nil
	}

	genStr, ok1 := vals[0].(string)
	data, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return Entry{}, false, fmt.Errorf("unexpected redis response")
	}

	var e Entry
	if _, err := fmt.Sscan(genStr, &e.Generation); err != nil {
		return Entry{}, false, fmt.Errorf("decode generation: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return Entry{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return e, true, nil
}

func (c *RedisCache) Put(ctx context.Context, e Entry) (bool, error) {
	key := normalize(e.Data.Symbol)
	if key == "" {
		return false, nil
	}
	e.Data.Symbol = key

	data, err := json.Marshal(e.Data)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}

	res, err := putScript.Run(ctx, c.client, []string{c.prefix + key}, e.Generation, string(data), c.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
