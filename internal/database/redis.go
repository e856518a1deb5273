package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alias1177/goldscalper/internal/trading/profit"
)

const statsTTL = 90 * 24 * time.Hour

// RedisParams holds Redis connection parameters
type RedisParams struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStats is a profit.StatsStore keeping one JSON document per day plus a
// sorted index of days.
type RedisStats struct {
	client *redis.Client
	prefix string
}

// NewRedisStats connects to Redis and verifies the connection.
func NewRedisStats(ctx context.Context, params RedisParams) (*RedisStats, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         params.Addr,
		Password:     params.Password,
		DB:           params.DB,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStats(client, params.Prefix), nil
}

func newRedisStats(client *redis.Client, prefix string) *RedisStats {
	if prefix == "" {
		prefix = "goldscalper"
	}
	return &RedisStats{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (s *RedisStats) Close() error {
	return s.client.Close()
}

func (s *RedisStats) dayKey(date string) string {
	return fmt.Sprintf("%s:stats:%s", s.prefix, date)
}

func (s *RedisStats) indexKey() string {
	return fmt.Sprintf("%s:stats:days", s.prefix)
}

func (s *RedisStats) Load(ctx context.Context, date string) (profit.Stats, error) {
	data, err := s.client.Get(ctx, s.dayKey(date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return profit.Stats{}, profit.ErrNoStats
		}
		return profit.Stats{}, fmt.Errorf("loading stats for %s: %w", date, err)
	}
	var st profit.Stats
	if err := json.Unmarshal(data, &st); err != nil {
		return profit.Stats{}, fmt.Errorf("decoding stats for %s: %w", date, err)
	}
	return st, nil
}

func (s *RedisStats) Save(ctx context.Context, st profit.Stats) error {
	day, err := time.Parse(profit.DateLayout, st.Date)
	if err != nil {
		return fmt.Errorf("stats date %q: %w", st.Date, err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dayKey(st.Date), data, statsTTL)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(day.Unix()), Member: st.Date})
	pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprint(day.Add(-statsTTL).Unix()))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving stats for %s: %w", st.Date, err)
	}
	return nil
}

func (s *RedisStats) History(ctx context.Context, days int) ([]profit.Stats, error) {
	if days <= 0 {
		days = 30
	}
	dates, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(days-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading stats index: %w", err)
	}
	if len(dates) == 0 {
		return nil, nil
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = s.dayKey(d)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading stats history: %w", err)
	}

	out := make([]profit.Stats, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var st profit.Stats
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

var (
	_ profit.StatsStore = (*RedisStats)(nil)
	_ profit.StatsStore = (*PostgresStats)(nil)
)
