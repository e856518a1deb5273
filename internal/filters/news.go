package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/config"
	httpClient "github.com/Alias1177/goldscalper/internal/platform/http"
)

const newsCacheTTL = time.Hour

// Event is one high-impact calendar entry.
type Event struct {
	Time     time.Time
	Currency string
	Impact   string
	Title    string
}

// calendarEntry is the wire format of the weekly calendar feed.
type calendarEntry struct {
	Title   string `json:"title"`
	Country string `json:"country"`
	Date    string `json:"date"`
	Impact  string `json:"impact"`
}

var currencyMap = map[string][]string{
	"XAUUSD": {"USD"},
	"XAUEUR": {"EUR", "USD"},
	"EURUSD": {"EUR", "USD"},
	"GBPUSD": {"GBP", "USD"},
	"USDJPY": {"USD", "JPY"},
	"AUDUSD": {"AUD", "USD"},
	"USDCAD": {"USD", "CAD"},
	"NZDUSD": {"NZD", "USD"},
	"USDCHF": {"USD", "CHF"},
}

// Currencies returns the currencies whose news moves symbol.
func Currencies(symbol string) []string {
	symbol = strings.ToUpper(symbol)
	if c, ok := currencyMap[symbol]; ok {
		return c
	}
	if len(symbol) == 6 {
		return []string{symbol[:3], symbol[3:]}
	}
	return []string{"USD"}
}

// NewsFilter blocks entries around high-impact news for the traded currencies.
type NewsFilter struct {
	client *httpClient.Client

	mu          sync.RWMutex
	enabled     bool
	url         string
	before      time.Duration
	after       time.Duration
	events      []Event
	lastUpdate  time.Time
	lastAttempt time.Time

	now    func() time.Time
	logger zerolog.Logger
}

// NewNewsFilter creates a news filter fetching the calendar through client.
func NewNewsFilter(opts config.FilterOptions, client *httpClient.Client) *NewsFilter {
	if client == nil {
		client = httpClient.NewClient(httpClient.ClientOptions{Timeout: 10 * time.Second})
	}
	f := &NewsFilter{
		client: client,
		now:    time.Now,
		logger: log.With().Str("component", "news_filter").Logger(),
	}
	f.Reconfigure(opts)
	return f
}

// Reconfigure applies new filter options.
func (f *NewsFilter) Reconfigure(opts config.FilterOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = opts.NewsEnabled
	f.url = opts.NewsURL
	f.before = time.Duration(opts.NewsBeforeMinutes) * time.Minute
	f.after = time.Duration(opts.NewsAfterMinutes) * time.Minute
}

// Refresh re-fetches the calendar when the cache is older than an hour.
// Failed fetches keep the previous events and are retried after the same
// interval.
func (f *NewsFilter) Refresh(ctx context.Context) error {
	f.mu.RLock()
	enabled, url := f.enabled, f.url
	stale := f.now().Sub(f.lastAttempt) > newsCacheTTL
	f.mu.RUnlock()
	if !enabled || !stale {
		return nil
	}

	f.mu.Lock()
	f.lastAttempt = f.now()
	f.mu.Unlock()

	events, err := f.fetch(ctx, url)
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to fetch news calendar")
		return err
	}

	f.mu.Lock()
	f.events = events
	f.lastUpdate = f.now()
	f.mu.Unlock()
	f.logger.Info().Int("events", len(events)).Msg("news calendar updated")
	return nil
}

func (f *NewsFilter) fetch(ctx context.Context, url string) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.client.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	return ParseCalendar(body, f.logger)
}

// ParseCalendar decodes the weekly calendar feed, keeping HIGH impact events.
func ParseCalendar(body []byte, logger zerolog.Logger) ([]Event, error) {
	var entries []calendarEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	events := make([]Event, 0, len(entries))
	for _, e := range entries {
		impact := strings.ToUpper(e.Impact)
		if impact != "HIGH" {
			continue
		}
		at, err := time.Parse(time.RFC3339, e.Date)
		if err != nil {
			logger.Debug().Str("date", e.Date).Msg("skipping event with unparsable time")
			continue
		}
		currency := e.Country
		if currency == "" {
			currency = "USD"
		}
		events = append(events, Event{Time: at.UTC(), Currency: currency, Impact: impact, Title: e.Title})
	}
	return events, nil
}

// SetEvents replaces the cached events.
func (f *NewsFilter) SetEvents(events []Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append([]Event(nil), events...)
	f.lastUpdate = f.now()
}

// Check reports whether t falls inside the blackout window of a high-impact
// event for symbol.
func (f *NewsFilter) Check(symbol string, t time.Time) (bool, string, *Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.enabled {
		return false, "News filter disabled", nil
	}

	relevant := make(map[string]bool)
	for _, c := range Currencies(symbol) {
		relevant[c] = true
	}
	for i := range f.events {
		ev := f.events[i]
		if !relevant[ev.Currency] {
			continue
		}
		if t.Before(ev.Time.Add(-f.before)) || t.After(ev.Time.Add(f.after)) {
			continue
		}
		if t.Before(ev.Time) {
			return true, fmt.Sprintf("High impact %s news in %.0f mins: %s", ev.Currency, ev.Time.Sub(t).Minutes(), ev.Title), &ev
		}
		return true, fmt.Sprintf("High impact %s news %.0f mins ago: %s", ev.Currency, t.Sub(ev.Time).Minutes(), ev.Title), &ev
	}
	return false, "No major news upcoming", nil
}

// CloseBeforeNews reports whether a relevant event starts within lead.
func (f *NewsFilter) CloseBeforeNews(symbol string, t time.Time, lead time.Duration) (bool, string) {
	hit, _, ev := f.Check(symbol, t)
	if !hit || ev == nil || !t.Before(ev.Time) {
		return false, "No immediate news threat"
	}
	until := ev.Time.Sub(t)
	if until > lead {
		return false, "No immediate news threat"
	}
	return true, fmt.Sprintf("Close positions - %s imminent (%.0f mins)", ev.Title, until.Minutes())
}

// Prune drops events whose blackout window has passed.
func (f *NewsFilter) Prune(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := t.Add(-f.after)
	kept := f.events[:0]
	for _, ev := range f.events {
		if ev.Time.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	f.events = kept
}

// Events returns a copy of the cached events.
func (f *NewsFilter) Events() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Event(nil), f.events...)
}
