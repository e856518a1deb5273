package config

// Options is the trading options mapping read from settings.yaml.
type Options struct {
	Trading      TradingOptions      `yaml:"trading"`
	Risk         RiskOptions         `yaml:"risk_management"`
	Signals      SignalOptions       `yaml:"signal_requirements"`
	Indicators   IndicatorOptions    `yaml:"indicators"`
	Regime       RegimeOptions       `yaml:"market_regime"`
	Filters      FilterOptions       `yaml:"filters"`
	ProfitTarget ProfitTargetOptions `yaml:"profit_target"`
	ActivePreset string              `yaml:"active_preset,omitempty"`
}

type TradingOptions struct {
	Symbol       string  `yaml:"symbol" default:"XAUUSD" validate:"required"`
	Timeframe    string  `yaml:"timeframe" default:"M5" validate:"oneof=M1 M5 M15 M30 H1 H4 D1"`
	DefaultLot   float64 `yaml:"default_lot" default:"0" validate:"gte=0"`
	MaxPositions int     `yaml:"max_positions" default:"5" validate:"gte=1,lte=20"`
	Magic        int64   `yaml:"magic_number" default:"234000"`
	Bars         int     `yaml:"bars" default:"500" validate:"gte=100"`

	// Seconds between control-loop ticks.
	TickSeconds   int  `yaml:"tick_seconds" default:"1" validate:"gte=1"`
	BarCloseEntry bool `yaml:"bar_close_entry" default:"true"`
}

type RiskOptions struct {
	RiskPerTradePct     float64 `yaml:"risk_per_trade_pct" default:"1.0" validate:"gte=0.1,lte=100"`
	MaxTotalRiskPct     float64 `yaml:"max_total_risk_pct" default:"5.0" validate:"gte=1,lte=100"`
	MinRiskReward       float64 `yaml:"min_risk_reward_ratio" default:"1.5" validate:"gt=0"`
	ATRMultiplierSL     float64 `yaml:"atr_multiplier_sl" default:"1.5" validate:"gt=0"`
	ATRMultiplierTP     float64 `yaml:"atr_multiplier_tp" default:"2.5" validate:"gt=0"`
	BreakevenRR         float64 `yaml:"breakeven_rr" default:"1.0" validate:"gte=0"`
	ScaleOutEnabled     bool    `yaml:"scale_out_enabled" default:"true"`
	ScaleOutRR          float64 `yaml:"scale_out_rr1" default:"1.5" validate:"gt=0"`
	ScaleOutPct         float64 `yaml:"scale_out_pct1" default:"0.5" validate:"gt=0,lt=1"`
	TrailingEnabled     bool    `yaml:"trailing_stop_enabled" default:"true"`
	TrailingATRMult     float64 `yaml:"trailing_stop_atr_multiplier" default:"2.0" validate:"gt=0"`
	TrailingStepPoints  float64 `yaml:"trailing_step_points" default:"50" validate:"gte=0"`
	TrailingActivation  float64 `yaml:"trailing_activation_rr" default:"1.0" validate:"gte=0"`
	MarginFilterEnabled bool    `yaml:"enable_margin_filter" default:"true"`
	MinMarginLevelPct   float64 `yaml:"min_margin_level_pct" default:"500" validate:"gte=0"`
	DailyLossLimitPct   float64 `yaml:"daily_loss_limit_pct" default:"5.0" validate:"gte=0,lte=100"`
}

type SignalOptions struct {
	ModeOverride    string  `yaml:"strategy_mode_override" default:"AUTO" validate:"oneof=AUTO SNIPER_ONLY TREND_ONLY PULLBACK_ONLY BREAKOUT_ONLY"`
	HigherTimeframe string  `yaml:"higher_timeframe" default:"H1" validate:"oneof=M1 M5 M15 M30 H1 H4 D1"`
	EnableMTF       bool    `yaml:"enable_mtf" default:"true"`
	MinConfSniper   float64 `yaml:"min_conf_sniper" default:"2.0" validate:"gte=0"`
	MinConfTrend    float64 `yaml:"min_conf_trend" default:"1.5" validate:"gte=0"`
	MinConfPullback float64 `yaml:"min_conf_pullback" default:"2.0" validate:"gte=0"`
	MinConfBreakout float64 `yaml:"min_conf_breakout" default:"1.2" validate:"gte=0"`
	MinExitScore    float64 `yaml:"min_exit_score" default:"2.0" validate:"gte=0"`
	CooldownBars    int     `yaml:"cooldown_bars" default:"1" validate:"gte=0"`
	OneOrderPerBar  bool    `yaml:"one_order_per_bar" default:"true"`
	UseRSI          bool    `yaml:"use_rsi" default:"true"`
	UseBB           bool    `yaml:"use_bb" default:"true"`
	UseStoch        bool    `yaml:"use_stoch" default:"true"`
	UseMA           bool    `yaml:"use_ma" default:"true"`
	UseMACD         bool    `yaml:"use_macd" default:"true"`
	UseATR          bool    `yaml:"use_atr" default:"true"`
	UseFibonacci    bool    `yaml:"use_fibonacci" default:"true"`

	// Price deviation from the main MA above which AUTO selects BREAKOUT_ONLY (percent).
	BreakoutDeviationPct float64           `yaml:"breakout_deviation_pct" default:"0.3" validate:"gte=0"`
	RegimeModes          map[string]string `yaml:"regime_modes"`
	Scoring              ScoringOptions    `yaml:"scoring"`
}

type ScoringOptions struct {
	SniperSetup     float64 `yaml:"sniper_setup_score" default:"1.5" validate:"gte=0"`
	SniperConfirm   float64 `yaml:"sniper_confirm_score" default:"1.0" validate:"gte=0"`
	TrendMA         float64 `yaml:"trend_ma_score" default:"1.5" validate:"gte=0"`
	TrendMACD       float64 `yaml:"trend_macd_score" default:"1.0" validate:"gte=0"`
	PullbackTrend   float64 `yaml:"pullback_trend_score" default:"1.8" validate:"gte=0"`
	PullbackRSI     float64 `yaml:"pullback_rsi_score" default:"1.2" validate:"gte=0"`
	PullbackStoch   float64 `yaml:"pullback_stoch_score" default:"1.0" validate:"gte=0"`
	BreakoutSignal  float64 `yaml:"breakout_signal_score" default:"1.8" validate:"gte=0"`
	BreakoutConfirm float64 `yaml:"breakout_confirm_score" default:"1.2" validate:"gte=0"`
	MTFBonus        float64 `yaml:"mtf_bonus_score" default:"2.0" validate:"gte=0"`
	MTFPenaltyPct   float64 `yaml:"mtf_penalty_pct" default:"0.5" validate:"gte=0,lte=1"`
}

type IndicatorOptions struct {
	MAPeriod        int     `yaml:"ma_period" default:"50" validate:"gte=2"`
	MAShift         int     `yaml:"ma_shift" default:"0" validate:"gte=0"`
	MALongPeriod    int     `yaml:"ma_long_period" default:"200" validate:"gte=2"`
	HTFMAPeriod     int     `yaml:"htf_ma_period" default:"50" validate:"gte=2"`
	RSIPeriod       int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	RSIOverbought   float64 `yaml:"rsi_overbought" default:"70" validate:"gt=50,lte=100"`
	RSIOversold     float64 `yaml:"rsi_oversold" default:"30" validate:"gte=0,lt=50"`
	BBPeriod        int     `yaml:"bb_period" default:"20" validate:"gte=2"`
	BBDeviation     float64 `yaml:"bb_deviation" default:"2.0" validate:"gt=0"`
	ATRPeriod       int     `yaml:"atr_period" default:"14" validate:"gte=1"`
	StochK          int     `yaml:"stoch_k_period" default:"14" validate:"gte=1"`
	StochD          int     `yaml:"stoch_d_period" default:"3" validate:"gte=1"`
	StochSlowing    int     `yaml:"stoch_slowing" default:"3" validate:"gte=1"`
	StochOverbought float64 `yaml:"stoch_overbought" default:"80" validate:"gt=50,lte=100"`
	StochOversold   float64 `yaml:"stoch_oversold" default:"20" validate:"gte=0,lt=50"`
	MACDFast        int     `yaml:"macd_fast" default:"12" validate:"gte=1"`
	MACDSlow        int     `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal      int     `yaml:"macd_signal" default:"9" validate:"gte=1"`
	FibLookback     int     `yaml:"fib_lookback" default:"100" validate:"gte=10"`
	FibMinSwingPct  float64 `yaml:"fib_min_swing_pct" default:"0.002" validate:"gte=0"`
}

type RegimeOptions struct {
	ADXTrending      float64            `yaml:"adx_trending" default:"25" validate:"gt=0"`
	ADXRanging       float64            `yaml:"adx_ranging" default:"20" validate:"gt=0"`
	ATRVolatileRatio float64            `yaml:"atr_volatile_ratio" default:"1.5" validate:"gt=1"`
	BBWRangingPct    float64            `yaml:"bbw_ranging_pct" default:"0.05" validate:"gt=0"`
	BreakoutMomentum map[string]float64 `yaml:"breakout_momentum_pct"`

	// Seconds between automatic recalibrations.
	RecalibrateSeconds int `yaml:"recalibrate_seconds" default:"14400" validate:"gte=60"`
	// Seconds between regime evaluations in the control loop.
	CheckSeconds int `yaml:"check_seconds" default:"60" validate:"gte=1"`
	HistorySize  int `yaml:"history_size" default:"100" validate:"gte=10"`
}

type FilterOptions struct {
	NewsEnabled       bool          `yaml:"news_filter_enabled" default:"true"`
	NewsBeforeMinutes int           `yaml:"news_before_minutes" default:"30" validate:"gte=0"`
	NewsAfterMinutes  int           `yaml:"news_after_minutes" default:"30" validate:"gte=0"`
	NewsURL           string        `yaml:"news_url" default:"https://nfs.faireconomy.media/ff_calendar_thisweek.json" validate:"url"`
	SessionEnabled    bool          `yaml:"session_filter_enabled" default:"true"`
	AllowedSessions   []string      `yaml:"allowed_sessions" validate:"dive,oneof=asian london us sydney"`
	AsiaSessionMode   string        `yaml:"asia_session_mode" default:"DEFENSIVE" validate:"oneof=DEFENSIVE AGGRESSIVE"`
	Spread            SpreadOptions `yaml:"spread_settings"`
}

type SpreadOptions struct {
	DefaultMax        int                `yaml:"default_max" default:"35" validate:"gte=0,lte=500"`
	Overrides         map[string]int     `yaml:"overrides"`
	SessionMultiplier map[string]float64 `yaml:"session_multiplier"`
}

type ProfitTargetOptions struct {
	Enabled        bool    `yaml:"enabled" default:"false"`
	DailyTargetUSD float64 `yaml:"daily_target_usd" default:"20" validate:"gt=0"`
	Action         string  `yaml:"action_when_reached" default:"STOP" validate:"oneof=STOP REDUCE_LOT CONTINUE"`
	ReduceLotPct   float64 `yaml:"reduce_lot_pct" default:"50" validate:"gt=0,lte=100"`
}

// SetDefaults fills the map and slice options, which struct tags cannot express.
func (o *Options) SetDefaults() {
	if o.Signals.RegimeModes == nil {
		o.Signals.RegimeModes = map[string]string{
			"TRENDING": "TREND_ONLY",
			"BREAKOUT": "BREAKOUT_ONLY",
			"RANGING":  "SNIPER_ONLY",
			"VOLATILE": "BREAKOUT_ONLY",
			"NEUTRAL":  "SNIPER_ONLY",
		}
	}
	if o.Regime.BreakoutMomentum == nil {
		o.Regime.BreakoutMomentum = map[string]float64{"default": 0.005, "XAUUSD": 0.003}
	}
	if o.Filters.AllowedSessions == nil {
		o.Filters.AllowedSessions = []string{"asian", "london", "us"}
	}
	if o.Filters.Spread.Overrides == nil {
		o.Filters.Spread.Overrides = map[string]int{"XAUUSD": 50, "XAUEUR": 150, "EURUSD": 20, "AUDCAD": 30}
	}
	if o.Filters.Spread.SessionMultiplier == nil {
		o.Filters.Spread.SessionMultiplier = map[string]float64{"asian": 1.2, "london": 1.0, "us": 1.0, "sydney": 1.2}
	}
}

// BreakoutMomentumFor returns the breakout momentum fraction for symbol.
func (r RegimeOptions) BreakoutMomentumFor(symbol string) float64 {
	if v, ok := r.BreakoutMomentum[symbol]; ok {
		return v
	}
	if v, ok := r.BreakoutMomentum["default"]; ok {
		return v
	}
	return 0.005
}

// Clone returns a deep copy.
func (o Options) Clone() Options {
	c := o
	c.Signals.RegimeModes = cloneMap(o.Signals.RegimeModes)
	c.Regime.BreakoutMomentum = cloneMap(o.Regime.BreakoutMomentum)
	c.Filters.AllowedSessions = append([]string(nil), o.Filters.AllowedSessions...)
	c.Filters.Spread.Overrides = cloneMap(o.Filters.Spread.Overrides)
	c.Filters.Spread.SessionMultiplier = cloneMap(o.Filters.Spread.SessionMultiplier)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
