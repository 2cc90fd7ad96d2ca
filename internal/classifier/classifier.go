package classifier

import (
	"github.com/drakos74/futures-bot/internal/model"
)

// Config holds the regime thresholds.
type Config struct {
	TrendingADX float64 `yaml:"trending_adx" default:"25"`
	RangingADX  float64 `yaml:"ranging_adx" default:"20"`
	TrendingATR float64 `yaml:"trending_atr" default:"0.02"`
	RangingATR  float64 `yaml:"ranging_atr" default:"0.01"`
	VolatileATR float64 `yaml:"volatile_atr" default:"0.03"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TrendingADX: 25,
		RangingADX:  20,
		TrendingATR: 0.02,
		RangingATR:  0.01,
		VolatileATR: 0.03,
	}
}

// Classifier labels the market regime and the higher timeframe trend.
type Classifier struct {
	config Config
}

// New creates a new classifier.
func New(config Config) *Classifier {
	return &Classifier{config: config}
}

// Regime classifies the market state from the trend strength and the relative volatility.
// The rules are evaluated in order, the first match wins.
func (c *Classifier) Regime(features model.Features) model.Regime {
	adx, ok := features.Get(model.ADX)
	if !ok {
		return model.UnknownRegime
	}
	atr, ok := features.Get(model.ATR)
	if !ok {
		return model.UnknownRegime
	}
	price, ok := features.Get(model.Close)
	if !ok || price <= 0 {
		return model.UnknownRegime
	}
	volatility := atr / price
	switch {
	case adx > c.config.TrendingADX && volatility > c.config.TrendingATR:
		return model.Trending
	case adx < c.config.RangingADX && volatility < c.config.RangingATR:
		return model.Ranging
	case volatility > c.config.VolatileATR:
		return model.Volatile
	}
	return model.LowVolatility
}

// Trend returns the directional bias from the moving averages of the higher timeframe.
// It stays neutral until both averages are defined.
func (c *Classifier) Trend(features model.Features) model.Trend {
	short, ok := features.Get(model.ShortMA)
	if !ok {
		return model.Neutral
	}
	long, ok := features.Get(model.LongMA)
	if !ok {
		return model.Neutral
	}
	switch {
	case short > long:
		return model.Bullish
	case short < long:
		return model.Bearish
	}
	return model.Neutral
}
