package predictor

import (
	"fmt"
	"time"

	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/signal"
)

// Rule labels the feature columns with the confluence votes, without any trend bias.
// It stands in for a trained model when none is configured.
type Rule struct {
	oversold   float64
	overbought float64
}

// NewRule creates a new rule predictor.
func NewRule(oversold, overbought float64) *Rule {
	return &Rule{
		oversold:   oversold,
		overbought: overbought,
	}
}

// Predict expects the values of signal.FeatureColumns in order.
func (r *Rule) Predict(x []float64) (int, error) {
	if len(x) != len(signal.FeatureColumns) {
		return 0, fmt.Errorf("input has %d features, expected %d", len(x), len(signal.FeatureColumns))
	}
	features := model.NewFeatures(model.NoCoin, time.Time{}, 0)
	for i, feature := range signal.FeatureColumns {
		features.Set(feature, x[i])
	}
	buy, sell := signal.Votes(features, model.Neutral, r.oversold, r.overbought)
	switch {
	case buy > sell:
		return 1, nil
	case sell > buy:
		return -1, nil
	}
	return 0, nil
}
