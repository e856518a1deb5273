package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/trading/profit"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// New creates a new database connection. The first ping is retried with
// backoff until ctx expires.
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 30 * time.Second
	ping := func() error {
		err := db.PingContext(ctx)
		if err != nil {
			log.Warn().Err(err).Str("host", params.Host).Msg("postgres not ready")
		}
		return err
	}
	if err := backoff.Retry(ping, backoff.WithContext(strategy, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS daily_stats (
			day DATE PRIMARY KEY,
			profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			trades INTEGER NOT NULL DEFAULT 0,
			target_reached BOOLEAN NOT NULL DEFAULT FALSE,
			stopped_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("creating daily_stats: %w", err)
	}
	return nil
}

// PostgresStats is a profit.StatsStore backed by the daily_stats table.
type PostgresStats struct {
	db *DB
}

// NewPostgresStats wraps db as a stats store.
func NewPostgresStats(db *DB) *PostgresStats {
	return &PostgresStats{db: db}
}

// Load retrieves the stats of one day
func (s *PostgresStats) Load(ctx context.Context, date string) (profit.Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD'), profit, trades, target_reached, stopped_at
		FROM daily_stats
		WHERE day = $1
	`, date)

	st, err := scanStats(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profit.Stats{}, profit.ErrNoStats
		}
		return profit.Stats{}, fmt.Errorf("loading stats for %s: %w", date, err)
	}
	return st, nil
}

// Save upserts the stats of st.Date
func (s *PostgresStats) Save(ctx context.Context, st profit.Stats) error {
	var stoppedAt sql.NullTime
	if st.StoppedAt != nil {
		stoppedAt = sql.NullTime{Time: *st.StoppedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_stats (day, profit, trades, target_reached, stopped_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (day)
		DO UPDATE SET
			profit = EXCLUDED.profit,
			trades = EXCLUDED.trades,
			target_reached = EXCLUDED.target_reached,
			stopped_at = EXCLUDED.stopped_at
	`, st.Date, st.Profit, st.Trades, st.TargetReached, stoppedAt)
	if err != nil {
		return fmt.Errorf("saving stats for %s: %w", st.Date, err)
	}
	return nil
}

// History returns up to days entries, newest first
func (s *PostgresStats) History(ctx context.Context, days int) ([]profit.Stats, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD'), profit, trades, target_reached, stopped_at
		FROM daily_stats
		ORDER BY day DESC
		LIMIT $1
	`, days)
	if err != nil {
		return nil, fmt.Errorf("querying stats history: %w", err)
	}
	defer rows.Close()

	var out []profit.Stats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStats(sc scanner) (profit.Stats, error) {
	var st profit.Stats
	var stoppedAt sql.NullTime
	if err := sc.Scan(&st.Date, &st.Profit, &st.Trades, &st.TargetReached, &stoppedAt); err != nil {
		return profit.Stats{}, err
	}
	if stoppedAt.Valid {
		t := stoppedAt.Time
		st.StoppedAt = &t
	}
	return st, nil
}
