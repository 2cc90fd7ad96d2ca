package model

// Regime is the market state label derived from trend strength and volatility.
type Regime string

const (
	UnknownRegime Regime = "unknown"
	Trending      Regime = "trending"
	Ranging       Regime = "ranging"
	Volatile      Regime = "volatile"
	LowVolatility Regime = "low_volatility"
)

// Trend is the directional bias from the higher timeframe.
type Trend string

const (
	Neutral Trend = "neutral"
	Bullish Trend = "bullish"
	Bearish Trend = "bearish"
)

// Bias returns the numeric vote of the trend.
func (t Trend) Bias() int {
	switch t {
	case Bullish:
		return 1
	case Bearish:
		return -1
	}
	return 0
}
