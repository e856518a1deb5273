package profit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNoStats is returned by a StatsStore that has nothing recorded for a day.
var ErrNoStats = errors.New("no stats recorded")

// DateLayout is the layout of Stats.Date.
const DateLayout = "2006-01-02"

// Stats is the running tally of one trading day.
type Stats struct {
	Date          string     `json:"date" db:"day"`
	Profit        float64    `json:"profit" db:"profit"`
	Trades        int        `json:"trades" db:"trades"`
	TargetReached bool       `json:"target_reached" db:"target_reached"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty" db:"stopped_at"`
}

// StatsStore persists daily stats.
type StatsStore interface {
	Load(ctx context.Context, date string) (Stats, error)
	Save(ctx context.Context, s Stats) error
	// History returns up to days entries, newest first.
	History(ctx context.Context, days int) ([]Stats, error)
}

// MemoryStore keeps stats in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	days map[string]Stats
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[string]Stats)}
}

func (m *MemoryStore) Load(_ context.Context, date string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.days[date]
	if !ok {
		return Stats{}, ErrNoStats
	}
	return s, nil
}

func (m *MemoryStore) Save(_ context.Context, s Stats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[s.Date] = s
	return nil
}

func (m *MemoryStore) History(_ context.Context, days int) ([]Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Stats, 0, len(m.days))
	for _, s := range m.days {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if days > 0 && len(out) > days {
		out = out[:days]
	}
	return out, nil
}
