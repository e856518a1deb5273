package indicators

// Signal is the categorical reading of an indicator over the last two bars.
type Signal string

const (
	Neutral      Signal = "NEUTRAL"
	Buy          Signal = "BUY"
	Sell         Signal = "SELL"
	Bullish      Signal = "BULLISH"
	Bearish      Signal = "BEARISH"
	Overbought   Signal = "OVERBOUGHT"
	Oversold     Signal = "OVERSOLD"
	BullishCross Signal = "BULLISH_CROSS"
	BearishCross Signal = "BEARISH_CROSS"
)

// IsBullish reports whether the signal leans long.
func (s Signal) IsBullish() bool {
	return s == Buy || s == Bullish || s == BullishCross
}

// IsBearish reports whether the signal leans short.
func (s Signal) IsBearish() bool {
	return s == Sell || s == Bearish || s == BearishCross
}

func (s Signal) String() string { return string(s) }

// Volatility is the ATR-derived volatility state.
type Volatility string

const (
	VolatilityUnknown Volatility = "UNKNOWN"
	VolatilityHigh    Volatility = "HIGH_VOLATILITY"
	VolatilityNormal  Volatility = "NORMAL_VOLATILITY"
	VolatilityLow     Volatility = "LOW_VOLATILITY"
)
