package risk

import (
	"math"

	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/models"
)

const (
	minRiskPoints      = 10
	breakevenBufferPts = 50
	goldBufferFraction = 0.0003
)

// lifecycle records the one-shot transitions already applied to a ticket.
type lifecycle struct {
	breakeven bool
	scaledOut bool
}

func (m *Manager) state(ticket int64) *lifecycle {
	st, ok := m.states[ticket]
	if !ok {
		st = &lifecycle{}
		m.states[ticket] = st
	}
	return st
}

// Breakeven returns the protective stop for pos once price has moved in its
// favor by the breakeven R multiple. It fires at most once per ticket and
// never loosens the current stop.
func (m *Manager) Breakeven(pos models.Position, price float64, info models.SymbolInfo) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state(pos.Ticket).breakeven {
		return 0, false
	}

	rr := m.opts.BreakevenRR
	if rr <= 0 || pos.SL == 0 {
		return 0, false
	}
	point := info.PointSize()
	risk := math.Abs(pos.PriceOpen - pos.SL)
	if risk < minRiskPoints*point {
		return 0, false
	}
	trigger := risk * rr

	buffer := breakevenBufferPts * point
	if isGoldName(info) {
		buffer = math.Max(buffer, pos.PriceOpen*goldBufferFraction)
	}

	digits := info.PriceDigits()
	switch pos.Side {
	case models.SideBuy:
		if price-pos.PriceOpen < trigger {
			return 0, false
		}
		sl := pos.PriceOpen + buffer
		if sl > pos.SL && sl < price {
			return calculate.Round(sl, digits), true
		}
	case models.SideSell:
		if pos.PriceOpen-price < trigger {
			return 0, false
		}
		sl := pos.PriceOpen - buffer
		if sl < pos.SL && sl > price {
			return calculate.Round(sl, digits), true
		}
	}
	return 0, false
}

// MarkBreakeven records that the breakeven stop was applied.
func (m *Manager) MarkBreakeven(ticket int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(ticket).breakeven = true
}

// AtBreakeven reports whether breakeven has been applied to the ticket.
func (m *Manager) AtBreakeven(ticket int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[ticket]
	return ok && st.breakeven
}

// ScaleOut returns the volume to close once profit reaches the scale-out R
// multiple. The volume is floored to the lot step, at least one step, and
// must leave at least one step open. It fires at most once per ticket.
func (m *Manager) ScaleOut(pos models.Position, price float64, info models.SymbolInfo) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opts.ScaleOutEnabled || m.state(pos.Ticket).scaledOut || pos.SL == 0 {
		return 0, false
	}
	risk := math.Abs(pos.PriceOpen - pos.SL)
	if risk < 1e-9 {
		return 0, false
	}

	profit := pos.PriceOpen - price
	if pos.Side == models.SideBuy {
		profit = price - pos.PriceOpen
	}
	if profit < risk*m.opts.ScaleOutRR {
		return 0, false
	}

	step, _, _ := info.VolumeLimits()
	decimals := stepDecimals(step)
	lot := math.Floor(pos.Volume*m.opts.ScaleOutPct/step+1e-9) * step
	lot = math.Max(lot, step)
	if calculate.Round(pos.Volume-lot, decimals) < step {
		return 0, false
	}
	return calculate.Round(lot, decimals), true
}

// MarkScaledOut records that the partial close went through.
func (m *Manager) MarkScaledOut(ticket int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(ticket).scaledOut = true
}

// TrailingStop returns a tighter stop for pos. It is only active after
// breakeven, never crosses the entry, and only advances by at least the
// configured step.
func (m *Manager) TrailingStop(pos models.Position, price, atr float64, info models.SymbolInfo) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.opts
	if !o.TrailingEnabled || atr <= 0 {
		return 0, false
	}
	if st, ok := m.states[pos.Ticket]; !ok || !st.breakeven {
		return 0, false
	}

	initial := atr
	if pos.SL > 0 {
		initial = math.Abs(pos.PriceOpen - pos.SL)
	}
	if math.Abs(price-pos.PriceOpen) < initial*o.TrailingActivation {
		return 0, false
	}

	point := info.PointSize()
	step := o.TrailingStepPoints * point
	dist := atr * o.TrailingATRMult
	digits := info.PriceDigits()

	switch pos.Side {
	case models.SideBuy:
		if price <= pos.PriceOpen {
			return 0, false
		}
		sl := price - dist
		if sl < pos.PriceOpen || sl <= pos.SL || sl-pos.SL < step {
			return 0, false
		}
		return calculate.Round(sl, digits), true
	case models.SideSell:
		if price >= pos.PriceOpen {
			return 0, false
		}
		sl := price + dist
		if sl > pos.PriceOpen {
			return 0, false
		}
		if pos.SL != 0 && (sl >= pos.SL || pos.SL-sl < step) {
			return 0, false
		}
		return calculate.Round(sl, digits), true
	}
	return 0, false
}

// Forget drops the lifecycle state of a closed ticket.
func (m *Manager) Forget(ticket int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, ticket)
}

// Retain drops lifecycle state for every ticket not in open.
func (m *Manager) Retain(open []models.Position) {
	keep := make(map[int64]struct{}, len(open))
	for _, p := range open {
		keep[p.Ticket] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for t := range m.states {
		if _, ok := keep[t]; !ok {
			delete(m.states, t)
		}
	}
}
