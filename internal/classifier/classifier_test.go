package classifier

import (
	"testing"
	"time"

	"github.com/drakos74/futures-bot/internal/model"
	"github.com/stretchr/testify/assert"
)

func features(values map[model.Feature]float64) model.Features {
	f := model.NewFeatures(model.BTC, time.Now(), 1)
	for k, v := range values {
		f.Set(k, v)
	}
	return f
}

func TestClassifier_Regime(t *testing.T) {

	type test struct {
		values map[model.Feature]float64
		regime model.Regime
	}

	tests := map[string]test{
		"trending": {
			values: map[model.Feature]float64{model.ADX: 30, model.ATR: 2.5, model.Close: 100},
			regime: model.Trending,
		},
		"strong-trend-but-calm": {
			values: map[model.Feature]float64{model.ADX: 30, model.ATR: 1.5, model.Close: 100},
			regime: model.LowVolatility,
		},
		"ranging": {
			values: map[model.Feature]float64{model.ADX: 15, model.ATR: 0.5, model.Close: 100},
			regime: model.Ranging,
		},
		"volatile": {
			values: map[model.Feature]float64{model.ADX: 22, model.ATR: 4, model.Close: 100},
			regime: model.Volatile,
		},
		"volatile-weak-trend": {
			values: map[model.Feature]float64{model.ADX: 10, model.ATR: 4, model.Close: 100},
			regime: model.Volatile,
		},
		"trending-precedes-volatile": {
			values: map[model.Feature]float64{model.ADX: 40, model.ATR: 5, model.Close: 100},
			regime: model.Trending,
		},
		"low-volatility": {
			values: map[model.Feature]float64{model.ADX: 22, model.ATR: 1.5, model.Close: 100},
			regime: model.LowVolatility,
		},
		"missing-adx": {
			values: map[model.Feature]float64{model.ATR: 1.5, model.Close: 100},
			regime: model.UnknownRegime,
		},
		"missing-atr": {
			values: map[model.Feature]float64{model.ADX: 30, model.Close: 100},
			regime: model.UnknownRegime,
		},
		"zero-price": {
			values: map[model.Feature]float64{model.ADX: 30, model.ATR: 1, model.Close: 0},
			regime: model.UnknownRegime,
		},
	}

	c := New(DefaultConfig())
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.regime, c.Regime(features(tt.values)))
		})
	}
}

func TestClassifier_Trend(t *testing.T) {

	type test struct {
		values map[model.Feature]float64
		trend  model.Trend
	}

	tests := map[string]test{
		"bullish": {
			values: map[model.Feature]float64{model.ShortMA: 110, model.LongMA: 100},
			trend:  model.Bullish,
		},
		"bearish": {
			values: map[model.Feature]float64{model.ShortMA: 90, model.LongMA: 100},
			trend:  model.Bearish,
		},
		"equal": {
			values: map[model.Feature]float64{model.ShortMA: 100, model.LongMA: 100},
			trend:  model.Neutral,
		},
		"not-enough-history": {
			values: map[model.Feature]float64{model.ShortMA: 110},
			trend:  model.Neutral,
		},
	}

	c := New(DefaultConfig())
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			trend := c.Trend(features(tt.values))
			assert.Equal(t, tt.trend, trend)
		})
	}
}
