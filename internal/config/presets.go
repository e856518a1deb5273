package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Preset is a named style profile merged onto the current options.
type Preset struct {
	Name  string
	Title string
	apply func(*Options)
}

var presets = map[string]Preset{
	"CONSERVATIVE": {
		Name:  "CONSERVATIVE",
		Title: "Conservative (Safe)",
		apply: func(o *Options) {
			o.Risk.RiskPerTradePct = 0.5
			o.Risk.MaxTotalRiskPct = 2.0
			o.Risk.TrailingActivation = 1.5
			o.Signals.EnableMTF = true
			o.Signals.MinConfSniper = 3.0
			o.Filters.NewsEnabled = true
		},
	},
	"BALANCED": {
		Name:  "BALANCED",
		Title: "Balanced (Standard)",
		apply: func(o *Options) {
			o.Risk.RiskPerTradePct = 1.0
			o.Risk.MaxTotalRiskPct = 3.0
			o.Risk.TrailingActivation = 1.0
			o.Signals.EnableMTF = true
			o.Signals.MinConfSniper = 2.0
			o.Filters.NewsEnabled = true
		},
	},
	"SCALPER_GOLD": {
		Name:  "SCALPER_GOLD",
		Title: "Gold Scalper (Aggressive)",
		apply: func(o *Options) {
			o.Risk.RiskPerTradePct = 1.5
			o.Risk.MaxTotalRiskPct = 6.0
			o.Risk.TrailingEnabled = true
			o.Risk.TrailingStepPoints = 50
			o.Risk.TrailingActivation = 0.8
			o.Signals.EnableMTF = false
			o.Signals.ModeOverride = "AUTO"
			o.Signals.CooldownBars = 0
			o.Filters.NewsEnabled = false
			o.Filters.SessionEnabled = false
			o.Filters.Spread.DefaultMax = 35
			if o.Filters.Spread.Overrides == nil {
				o.Filters.Spread.Overrides = map[string]int{}
			}
			o.Filters.Spread.Overrides["XAUUSD"] = 60
			o.Filters.AsiaSessionMode = "DEFENSIVE"
		},
	},
}

// Presets lists the known style profiles sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ApplyPreset merges the named profile onto the live options.
func (s *Store) ApplyPreset(name string) error {
	p, ok := presets[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("preset %q: %w", name, ErrUnknownOption)
	}

	old := s.Snapshot().ActivePreset
	err := s.Update(func(o *Options) {
		p.apply(o)
		o.ActivePreset = p.Name
	})
	if err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	log.Info().Str("component", "config").Str("old", old).Str("new", p.Name).Msg("preset loaded")
	return nil
}

// SetMode sets the strategy mode override.
func (s *Store) SetMode(mode string) error {
	return s.Set("signal_requirements.strategy_mode_override", mode)
}

// Health grades the options: HEALTHY, WARNING or CRITICAL plus the warnings
// that led there.
func (o Options) Health() (string, []string) {
	var warnings []string
	danger := 0
	scalper := strings.Contains(o.ActivePreset, "SCALPER")

	if o.Risk.RiskPerTradePct > 3 {
		warnings = append(warnings, fmt.Sprintf("Aggressive risk (%.1f%%)", o.Risk.RiskPerTradePct))
		danger++
	}
	if !o.Signals.EnableMTF && !scalper {
		warnings = append(warnings, "MTF filter off")
		danger++
	}
	if !o.Filters.NewsEnabled && !scalper {
		warnings = append(warnings, "News filter off")
	}
	if !o.Risk.MarginFilterEnabled {
		warnings = append(warnings, "Margin filter off")
		danger += 2
	}

	switch {
	case danger > 1:
		return "CRITICAL", warnings
	case danger > 0 || len(warnings) > 0:
		return "WARNING", warnings
	}
	return "HEALTHY", nil
}
