package risk

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/models"
)

// Tier is the balance-driven risk profile used for sizing.
type Tier string

const (
	TierSurvival Tier = "SURVIVAL"
	TierGrowth   Tier = "GROWTH"
	TierStandard Tier = "STANDARD"
	TierPro      Tier = "PRO"
)

const (
	survivalBalance = 50.0
	growthBalance   = 200.0
	standardBalance = 1000.0
	minBalance      = 10.0
	flexBalance     = 100.0

	proRiskCap       = 2.0
	riskTolerance    = 1.2
	maxStopPoints    = 2000
	goldMinStop      = 100
	otherMinStop     = 50
	goldMinCalcStop  = 200
	otherMinCalcStop = 50
)

// TierFor returns the tier and effective risk percent for a balance.
// configured is the per-trade risk setting applied in the PRO tier.
func TierFor(balance, configured float64) (Tier, float64) {
	switch {
	case balance < survivalBalance:
		return TierSurvival, 25.0
	case balance < growthBalance:
		return TierGrowth, 8.0
	case balance < standardBalance:
		return TierStandard, 3.0
	}
	return TierPro, math.Min(configured, proRiskCap)
}

// PositionSizingResult holds the stop, target and lot of a planned entry.
type PositionSizingResult struct {
	Entry           float64 `json:"entry"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	Lot             float64 `json:"lot"`
	Risk            float64 `json:"risk"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	Tier            Tier    `json:"tier"`
}

// Stats summarizes the exposure of the open positions.
type Stats struct {
	Total     int     `json:"total_positions"`
	Buys      int     `json:"buy_positions"`
	Sells     int     `json:"sell_positions"`
	TotalRisk float64 `json:"total_risk"`
	RiskPct   float64 `json:"risk_pct"`
}

// Manager sizes entries and drives the lifecycle of open positions.
type Manager struct {
	mu           sync.Mutex
	opts         config.RiskOptions
	maxPositions int
	states       map[int64]*lifecycle
	logger       zerolog.Logger
}

// NewManager creates a risk manager from an options snapshot.
func NewManager(opts config.Options) *Manager {
	return &Manager{
		opts:         opts.Risk,
		maxPositions: opts.Trading.MaxPositions,
		states:       make(map[int64]*lifecycle),
		logger:       log.With().Str("component", "risk").Logger(),
	}
}

// Reconfigure swaps in new risk options. Lifecycle state is kept.
func (m *Manager) Reconfigure(opts config.Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts.Risk
	m.maxPositions = opts.Trading.MaxPositions
}

func (m *Manager) options() (config.RiskOptions, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts, m.maxPositions
}

func isGoldName(info models.SymbolInfo) bool {
	return strings.Contains(strings.ToUpper(info.Name), "XAU")
}

// StopLevels places stop-loss and take-profit around entry from the ATR,
// adjusted for the strategy mode.
func (m *Manager) StopLevels(entry float64, side models.Side, atr float64, info models.SymbolInfo, mode models.Mode) (sl, tp float64, err error) {
	if entry <= 0 || atr <= 0 {
		return 0, 0, fmt.Errorf("stop levels: entry %v and atr %v must be positive", entry, atr)
	}
	if !side.Valid() {
		return 0, 0, fmt.Errorf("stop levels: invalid side %q", side)
	}
	opts, _ := m.options()

	slMult, tpMult := opts.ATRMultiplierSL, opts.ATRMultiplierTP
	switch mode {
	case models.ModeSniper:
		slMult *= 0.9
	case models.ModeTrend:
		slMult *= 1.2
		tpMult *= 2.0
	case models.ModeBreakout:
		slMult *= 1.1
		tpMult *= 1.5
	}

	point := info.PointSize()
	minStop := otherMinStop * point
	if isGoldName(info) {
		minStop = goldMinStop * point
	}
	slDist := math.Max(minStop, math.Min(atr*slMult, maxStopPoints*point))
	tpDist := math.Max(atr*tpMult, slDist*opts.MinRiskReward)

	digits := info.PriceDigits()
	if side == models.SideBuy {
		return calculate.Round(entry-slDist, digits), calculate.Round(entry+tpDist, digits), nil
	}
	return calculate.Round(entry+slDist, digits), calculate.Round(entry-tpDist, digits), nil
}

// LotSize sizes a position from the balance tier. Below $10 it returns 0.
func (m *Manager) LotSize(balance, entry, sl float64, info models.SymbolInfo) float64 {
	opts, _ := m.options()
	tier, pct := TierFor(balance, opts.RiskPerTradePct)
	_, minVol, maxVol := info.VolumeLimits()

	point := info.PointSize()
	minCalc := otherMinCalcStop * point
	if isGoldName(info) {
		minCalc = goldMinCalcStop * point
	}
	dist := math.Max(math.Abs(entry-sl), minCalc)
	perLot := dist * info.ContractUnits()
	if perLot == 0 {
		return minVol
	}

	raw := balance * pct / 100 / perLot
	if raw < minVol {
		if balance < minBalance {
			return 0
		}
		raw = minVol
	}
	lot := NormalizeVolume(raw, info)

	m.logger.Debug().
		Str("tier", string(tier)).
		Float64("balance", balance).
		Float64("risk_pct", pct).
		Float64("lot", lot).
		Msg("lot calculated")
	return math.Max(math.Min(lot, maxVol), 0)
}

// NormalizeVolume rounds a volume to the symbol's step and clamps it to its limits.
func NormalizeVolume(v float64, info models.SymbolInfo) float64 {
	step, minVol, maxVol := info.VolumeLimits()
	v = math.Round(v/step) * step
	v = math.Max(minVol, math.Min(v, maxVol))
	return calculate.Round(v, stepDecimals(step))
}

func stepDecimals(step float64) int {
	if step >= 1 {
		return 0
	}
	return int(math.Ceil(-math.Log10(step) - 1e-9))
}

// PositionRisk is the money lost if a position of lot is stopped out.
func PositionRisk(entry, sl, lot float64, info models.SymbolInfo) float64 {
	return lot * math.Abs(entry-sl) * info.ContractUnits()
}

// Plan combines StopLevels and LotSize into one sized entry.
func (m *Manager) Plan(balance, entry float64, side models.Side, atr float64, info models.SymbolInfo, mode models.Mode) (PositionSizingResult, error) {
	sl, tp, err := m.StopLevels(entry, side, atr, info, mode)
	if err != nil {
		return PositionSizingResult{}, err
	}
	opts, _ := m.options()
	tier, _ := TierFor(balance, opts.RiskPerTradePct)
	lot := m.LotSize(balance, entry, sl, info)

	rr := 0.0
	if d := math.Abs(entry - sl); d > 0 {
		rr = math.Abs(tp-entry) / d
	}
	return PositionSizingResult{
		Entry:           entry,
		StopLoss:        sl,
		TakeProfit:      tp,
		Lot:             lot,
		Risk:            PositionRisk(entry, sl, lot, info),
		RiskRewardRatio: calculate.Round(rr, 2),
		Tier:            tier,
	}, nil
}

// MaxPositionsFor returns the position cap for a balance.
func (m *Manager) MaxPositionsFor(balance float64) int {
	_, configured := m.options()
	switch {
	case balance < survivalBalance:
		return 1
	case balance < growthBalance:
		return min(3, configured)
	}
	return configured
}

// CanOpen decides whether a new position carrying newRisk may be added to
// the open ones.
func (m *Manager) CanOpen(balance float64, positions []models.Position, newRisk float64, info models.SymbolInfo) (bool, string) {
	limit := m.MaxPositionsFor(balance)
	if len(positions) >= limit {
		return false, fmt.Sprintf("Max positions limit (%d/%d) for Balance $%.0f", len(positions), limit, balance)
	}
	if balance < flexBalance {
		return true, "OK (Auto-Flex Entry)"
	}

	opts, _ := m.options()
	budget := balance * opts.MaxTotalRiskPct / 100
	projected := m.openRisk(positions, info) + newRisk
	if projected > budget*riskTolerance {
		return false, fmt.Sprintf("Total Risk Limit: $%.2f > $%.2f", projected, budget)
	}
	return true, "OK"
}

func (m *Manager) openRisk(positions []models.Position, info models.SymbolInfo) float64 {
	var total float64
	for _, p := range positions {
		if p.SL > 0 {
			total += PositionRisk(p.PriceOpen, p.SL, p.Volume, info)
		}
	}
	return total
}

// PositionStats summarizes exposure for status reports.
func (m *Manager) PositionStats(balance float64, positions []models.Position, info models.SymbolInfo) Stats {
	st := Stats{Total: len(positions)}
	for _, p := range positions {
		if p.Side == models.SideBuy {
			st.Buys++
		}
	}
	st.Sells = st.Total - st.Buys
	risk := m.openRisk(positions, info)
	st.TotalRisk = calculate.Round(risk, 2)
	if balance > 0 {
		st.RiskPct = calculate.Round(risk/balance*100, 2)
	}
	return st
}
