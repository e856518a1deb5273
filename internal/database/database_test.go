package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alias1177/goldscalper/internal/trading/profit"
)

func TestDSN(t *testing.T) {
	p := ConnectionParams{Host: "db", Port: 5433, User: "bot", Password: "secret", DBName: "stats"}
	want := "host=db port=5433 user=bot password=secret dbname=stats sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestRedisKeys(t *testing.T) {
	s := newRedisStats(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	defer s.Close()
	if got, want := s.dayKey("2024-05-06"), "goldscalper:stats:2024-05-06"; got != want {
		t.Errorf("dayKey() = %q, want %q", got, want)
	}
	if got, want := s.indexKey(), "goldscalper:stats:days"; got != want {
		t.Errorf("indexKey() = %q, want %q", got, want)
	}
}

// exerciseStore runs the StatsStore contract against a live backend.
func exerciseStore(t *testing.T, store profit.StatsStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx, "1999-01-01"); !errors.Is(err, profit.ErrNoStats) {
		t.Fatalf("Load() on empty day error = %v, want ErrNoStats", err)
	}

	stopped := time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC)
	days := []profit.Stats{
		{Date: "2024-05-05", Profit: -4.5, Trades: 2},
		{Date: "2024-05-06", Profit: 21.3, Trades: 5, TargetReached: true, StoppedAt: &stopped},
	}
	for _, d := range days {
		if err := store.Save(ctx, d); err != nil {
			t.Fatalf("Save(%s) error = %v", d.Date, err)
		}
	}

	got, err := store.Load(ctx, "2024-05-06")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Profit != 21.3 || got.Trades != 5 || !got.TargetReached || got.StoppedAt == nil || !got.StoppedAt.Equal(stopped) {
		t.Errorf("Load() = %+v, want %+v", got, days[1])
	}

	hist, err := store.History(ctx, 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(hist) != 2 || hist[0].Date != "2024-05-06" {
		t.Errorf("History() = %+v, want newest first", hist)
	}
}

func TestPostgresStats(t *testing.T) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, ConnectionParams{
		Host: host, Port: 5432, User: "postgres",
		Password: os.Getenv("TEST_DB_PASSWORD"), DBName: "postgres",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`DELETE FROM daily_stats`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	exerciseStore(t, NewPostgresStats(db))
}

func TestRedisStats(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStats(context.Background(), RedisParams{Addr: addr, Prefix: "goldscalper-test"})
	if err != nil {
		t.Fatalf("NewRedisStats() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	keys, _ := s.client.Keys(ctx, "goldscalper-test:*").Result()
	if len(keys) > 0 {
		s.client.Del(ctx, keys...)
	}
	exerciseStore(t, s)
}
