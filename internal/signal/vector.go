package signal

import (
	"math"

	"github.com/drakos74/futures-bot/internal/model"
)

// DefaultVectorSize is the input length the secondary predictor expects.
const DefaultVectorSize = 28

// FeatureColumns are the features fed to the predictors, in order.
var FeatureColumns = []model.Feature{
	model.Returns,
	model.Volatility,
	model.Momentum,
	model.BBUpper,
	model.BBLower,
	model.MACDDiff,
	model.RSI,
	model.ADX,
	model.ShortMA,
	model.LongMA,
}

// ConfluenceColumns are the features the confluence votes read.
var ConfluenceColumns = []model.Feature{
	model.ShortMA,
	model.LongMA,
	model.MACDDiff,
	model.RSI,
}

// Fit pads with zeros or truncates the vector to the given size and replaces non-finite values with zero.
// It reports whether the input had to be truncated or cleaned.
func Fit(x []float64, size int) ([]float64, bool, bool) {
	v := make([]float64, size)
	copy(v, x)
	cleaned := false
	for i, value := range v {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			v[i] = 0
			cleaned = true
		}
	}
	return v, len(x) > size, cleaned
}
