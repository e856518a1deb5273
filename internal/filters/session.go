// Package filters holds the entry gates that sit outside the strategy:
// trading sessions, spread limits and the economic news calendar.
package filters

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Alias1177/goldscalper/internal/config"
)

// Window is a session's opening hours in UTC. End may be smaller than Start
// for sessions that wrap midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) contains(hour int) bool {
	if w.Start > w.End {
		return hour >= w.Start || hour < w.End
	}
	return hour >= w.Start && hour < w.End
}

// Sessions are the market sessions in UTC.
var Sessions = map[string]Window{
	"asian":  {Start: 0, End: 9},
	"london": {Start: 8, End: 17},
	"us":     {Start: 13, End: 22},
	"sydney": {Start: 22, End: 7},
}

var sessionOrder = []string{"asian", "london", "us", "sydney"}

// SessionFilter admits trading only in the allowed sessions.
type SessionFilter struct {
	mu      sync.RWMutex
	enabled bool
	allowed map[string]bool
}

// NewSessionFilter creates a session filter from the filter options.
func NewSessionFilter(opts config.FilterOptions) *SessionFilter {
	f := &SessionFilter{}
	f.Reconfigure(opts)
	return f
}

// Reconfigure applies new filter options.
func (f *SessionFilter) Reconfigure(opts config.FilterOptions) {
	allowed := make(map[string]bool, len(opts.AllowedSessions))
	for _, s := range opts.AllowedSessions {
		allowed[strings.ToLower(s)] = true
	}
	f.mu.Lock()
	f.enabled = opts.SessionEnabled
	f.allowed = allowed
	f.mu.Unlock()
}

// Active lists the sessions open at t.
func Active(t time.Time) []string {
	hour := t.UTC().Hour()
	var out []string
	for _, name := range sessionOrder {
		if Sessions[name].contains(hour) {
			out = append(out, name)
		}
	}
	return out
}

// Allowed reports whether trading is allowed at t and the session label to
// trade under. London and US are preferred, then Asia, then any other
// allowed session. A disabled filter always allows trading as "london".
func (f *SessionFilter) Allowed(t time.Time) (bool, string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.enabled {
		return true, "london"
	}

	active := Active(t)
	if len(active) == 0 {
		return false, "No active session"
	}
	for _, s := range active {
		if (s == "london" || s == "us") && f.allowed[s] {
			return true, s
		}
	}
	if f.allowed["asian"] {
		for _, s := range active {
			if s == "asian" {
				return true, s
			}
		}
	}
	for _, s := range active {
		if f.allowed[s] {
			return true, s
		}
	}
	return false, fmt.Sprintf("Current sessions %v not in allowed list", active)
}

// Overlap reports whether more than one session is open at t.
func Overlap(t time.Time) bool {
	return len(Active(t)) > 1
}

// Peak reports the high-liquidity overlaps.
func Peak(t time.Time) (bool, string) {
	switch h := t.UTC().Hour(); {
	case h >= 13 && h < 17:
		return true, "London-US overlap"
	case h >= 8 && h < 9:
		return true, "Asian-London overlap"
	}
	return false, "Not peak hours"
}

// NextSession returns the nearest allowed session start after t and the
// hours until it.
func (f *SessionFilter) NextSession(t time.Time) (string, int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.enabled {
		return "", 0, false
	}
	hour := t.UTC().Hour()

	type upcoming struct {
		name  string
		hours int
	}
	var list []upcoming
	for name := range f.allowed {
		w, ok := Sessions[name]
		if !ok {
			continue
		}
		h := w.Start - hour
		if h <= 0 {
			h += 24
		}
		list = append(list, upcoming{name, h})
	}
	if len(list) == 0 {
		return "", 0, false
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].hours != list[j].hours {
			return list[i].hours < list[j].hours
		}
		return list[i].name < list[j].name
	})
	return list[0].name, list[0].hours, true
}
