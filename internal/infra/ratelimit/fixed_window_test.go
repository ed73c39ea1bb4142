package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newLimiter(t *testing.T, limit int) (*FixedWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	limiter, err := NewFixedWindow(client, "test:ratelimit", limit, time.Minute, nil)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, mr
}

func TestFixedWindowBlocksAfterLimit(t *testing.T) {
	limiter, _ := newLimiter(t, 2)
	ctx := context.Background()

	if !limiter.Allow(ctx, "ip-1") || !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first two requests should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "ip-2") {
		t.Fatalf("other keys have their own window")
	}
}

func TestFixedWindowResetsNextSlot(t *testing.T) {
	limiter, _ := newLimiter(t, 1)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	if !limiter.Allow(ctx, "ip-1") || limiter.Allow(ctx, "ip-1") {
		t.Fatalf("limit of one not enforced")
	}
	limiter.now = func() time.Time { return base.Add(time.Minute) }
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("new window should allow again")
	}
}

func TestFixedWindowSetsExpiry(t *testing.T) {
	limiter, mr := newLimiter(t, 5)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }
	limiter.Allow(context.Background(), "ip-1")

	slot := base.UnixMilli() / time.Minute.Milliseconds()
	key := "test:ratelimit:ip-1:" + strconv.FormatInt(slot, 10)
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v for %s", ttl, key)
	}
}

func TestFixedWindowFailsClosed(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
	if err := limiter.Check(context.Background()); err == nil {
		t.Fatalf("check should report the dead redis")
	}
}

func TestConstructorValidation(t *testing.T) {
	if _, err := NewClient("  ", ""); err == nil {
		t.Fatal("expected error for empty addr")
	}
	if _, err := NewFixedWindow(nil, "", 1, time.Second, nil); err == nil {
		t.Fatal("expected error for nil client")
	}
	client, _ := NewClient("localhost:6379", "")
	defer client.Close()
	if _, err := NewFixedWindow(client, "", 0, time.Second, nil); err == nil {
		t.Fatal("expected error for zero limit")
	}
}
