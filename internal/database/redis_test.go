package database

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/keyxmakerx/healthcore/internal/config"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedis(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer rdb.Close()

	if err := rdb.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("SET: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("got %q", got)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), config.RedisConfig{URL: "mysql://nope"}); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

func TestWaitReady_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := waitReady(ctx, "fake", func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 1 {
		t.Errorf("ping retried %d times after cancel", calls)
	}
}
