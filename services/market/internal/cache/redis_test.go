package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl, "test:"), s
}

func TestRedisCacheLatestWins(t *testing.T) {
	c, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()

	stored, err := c.Put(ctx, entry("ethusdt", 5, 3200.5))
	if err != nil || !stored {
		t.Fatalf("expected store, got %v %v", stored, err)
	}
	stored, err = c.Put(ctx, entry("ETHUSDT", 4, 3000))
	if err != nil || stored {
		t.Fatalf("expected older generation dropped, got %v %v", stored, err)
	}

	got, ok, err := c.Get(ctx, "ETHUSDT")
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v %v", ok, err)
	}
	if got.Generation != 5 || got.Data.Price != 3200.5 || got.Data.Symbol != "ETHUSDT" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestRedisCacheExpires(t *testing.T) {
	c, s := newRedisCache(t, 500*time.Millisecond)
	ctx := context.Background()

	if _, err := c.Put(ctx, entry("AAPL", 1, 190)); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.FastForward(time.Second)

	if _, ok, err := c.Get(ctx, "AAPL"); err != nil || ok {
		t.Fatalf("expected expired entry, got %v %v", ok, err)
	}
	// after expiry any generation is accepted again
	if stored, _ := c.Put(ctx, entry("AAPL", 1, 191)); !stored {
		t.Fatal("expected store after expiry")
	}
}

func TestRedisCacheMiss(t *testing.T) {
	c, _ := newRedisCache(t, 0)
	if _, ok, err := c.Get(context.Background(), "MSFT"); err != nil || ok {
		t.Fatalf("expected miss, got %v %v", ok, err)
	}
}
