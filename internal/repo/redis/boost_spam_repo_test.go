package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestBoostSpamWindowLifecycle(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	repo := NewBoostSpamRepo(client, 24*time.Hour)
	ctx := context.Background()
	userID := int64(7)

	count, err := repo.Count(ctx, userID)
	if err != nil {
		t.Fatalf("initial count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty window, got %d", count)
	}

	for want := int64(1); want <= 2; want++ {
		got, err := repo.Record(ctx, userID)
		if err != nil {
			t.Fatalf("record #%d: %v", want, err)
		}
		if got != want {
			t.Fatalf("unexpected count after record: got %d want %d", got, want)
		}
	}

	count, err = repo.Count(ctx, userID)
	if err != nil {
		t.Fatalf("count after records: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	mr.FastForward(25 * time.Hour)

	count, err = repo.Count(ctx, userID)
	if err != nil {
		t.Fatalf("count after window: %v", err)
	}
	if count != 0 {
		t.Fatalf("window must expire after 24h, got %d", count)
	}

	got, err := repo.Record(ctx, userID)
	if err != nil {
		t.Fatalf("record after window: %v", err)
	}
	if got != 1 {
		t.Fatalf("fresh window must restart at 1, got %d", got)
	}
}
