package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBasicOps(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Fatalf("Get = %q", got)
	}

	n, err := c.Exists(ctx, "k", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Exists = %d, want 1", n)
	}

	if err := c.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	got, err = c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after Del: %v", err)
	}
	if got != "" {
		t.Fatalf("deleted key returned %q", got)
	}
}

func TestZSetOps(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	err := c.ZAdd(ctx, "board",
		ZMember{Score: 10, Member: "a"},
		ZMember{Score: 30, Member: "b"},
		ZMember{Score: 20, Member: "c"},
	)
	if err != nil {
		t.Fatalf("ZAdd: %v", err)
	}

	n, err := c.ZCard(ctx, "board")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("ZCard = %d", n)
	}

	score, err := c.ZScore(ctx, "board", "b")
	if err != nil {
		t.Fatal(err)
	}
	if score != 30 {
		t.Fatalf("ZScore = %v", score)
	}

	members, err := c.ZRevRangeWithScores(ctx, "board", 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].Member != "b" || members[1].Member != "c" {
		t.Fatalf("ZRevRangeWithScores = %v", members)
	}

	if err := c.ZRem(ctx, "board", "b"); err != nil {
		t.Fatal(err)
	}
	n, err = c.ZCard(ctx, "board")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("ZCard after ZRem = %d", n)
	}
}
