package filters

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/models"
)

// SpreadFilter rejects entries while the spread exceeds a per-symbol,
// per-session limit.
type SpreadFilter struct {
	mu   sync.RWMutex
	opts config.SpreadOptions
}

// NewSpreadFilter creates a spread filter.
func NewSpreadFilter(opts config.SpreadOptions) *SpreadFilter {
	return &SpreadFilter{opts: opts}
}

// Reconfigure applies new spread options.
func (f *SpreadFilter) Reconfigure(opts config.SpreadOptions) {
	f.mu.Lock()
	f.opts = opts
	f.mu.Unlock()
}

// MaxSpread returns the allowed spread in points for symbol during session.
func (f *SpreadFilter) MaxSpread(symbol, session string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	base := f.opts.DefaultMax
	if v, ok := f.opts.Overrides[symbol]; ok {
		base = v
	}
	mult := 1.0
	if v, ok := f.opts.SessionMultiplier[strings.ToLower(session)]; ok {
		mult = v
	}
	return int(math.Round(float64(base) * mult))
}

// Check reports whether the current spread of info is acceptable.
func (f *SpreadFilter) Check(info models.SymbolInfo, session string) (bool, string) {
	if info.Spread < 0 {
		return false, fmt.Sprintf("invalid spread value (%d)", info.Spread)
	}
	if session == "" {
		session = "unknown"
	}
	limit := f.MaxSpread(info.Name, session)
	if info.Spread > limit {
		return false, fmt.Sprintf("Spread too high: %d pts (max: %d for %s in %s session)", info.Spread, limit, info.Name, session)
	}
	return true, "Spread OK"
}
