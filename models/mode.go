package models

import (
	"fmt"
	"strings"
)

// Mode is the strategy operating mode.
type Mode string

const (
	ModeAuto     Mode = "AUTO"
	ModeSniper   Mode = "SNIPER_ONLY"
	ModeTrend    Mode = "TREND_ONLY"
	ModePullback Mode = "PULLBACK_ONLY"
	ModeBreakout Mode = "BREAKOUT_ONLY"
)

// ParseMode accepts the canonical names plus the short SNIPER/TREND/PULLBACK/BREAKOUT forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AUTO":
		return ModeAuto, nil
	case "SNIPER", "SNIPER_ONLY":
		return ModeSniper, nil
	case "TREND", "TREND_ONLY":
		return ModeTrend, nil
	case "PULLBACK", "PULLBACK_ONLY":
		return ModePullback, nil
	case "BREAKOUT", "BREAKOUT_ONLY":
		return ModeBreakout, nil
	}
	return "", fmt.Errorf("unknown strategy mode %q", s)
}

// Short returns the mode name without the _ONLY suffix, used in order comments.
func (m Mode) Short() string {
	return strings.TrimSuffix(string(m), "_ONLY")
}
