package model

import (
	"math"
	"sort"
	"time"
)

// Feature is the name of a derived indicator value.
type Feature string

const (
	Close       Feature = "close"
	Returns     Feature = "returns"
	Volatility  Feature = "volatility"
	Momentum    Feature = "momentum"
	ATR         Feature = "atr"
	ADX         Feature = "adx"
	OBV         Feature = "obv"
	VWAP        Feature = "vwap"
	TenkanSen   Feature = "tenkan_sen"
	KijunSen    Feature = "kijun_sen"
	SenkouSpanA Feature = "senkou_span_a"
	SenkouSpanB Feature = "senkou_span_b"
	BBUpper     Feature = "bb_upper"
	BBMiddle    Feature = "bb_middle"
	BBLower     Feature = "bb_lower"
	MACD        Feature = "macd"
	MACDSignal  Feature = "macd_signal"
	MACDDiff    Feature = "macd_diff"
	RSI         Feature = "rsi"
	StochasticK Feature = "stochastic_k"
	StochasticD Feature = "stochastic_d"
	ShortMA     Feature = "short_ma"
	LongMA      Feature = "long_ma"
)

// AllFeatures lists every feature the indicator engine derives.
var AllFeatures = []Feature{
	Close, Returns, Volatility, Momentum, ATR, ADX, OBV, VWAP,
	TenkanSen, KijunSen, SenkouSpanA, SenkouSpanB,
	BBUpper, BBMiddle, BBLower, MACD, MACDSignal, MACDDiff,
	RSI, StochasticK, StochasticD, ShortMA, LongMA,
}

// Features is the snapshot of derived values for an instrument at a bar.
// A feature missing from the set is not ready and must not be read as zero.
type Features struct {
	Coin   Coin                `json:"coin"`
	Time   time.Time           `json:"time"`
	Bars   int                 `json:"bars"`
	Values map[Feature]float64 `json:"values"`
}

// NewFeatures creates an empty feature set.
func NewFeatures(coin Coin, t time.Time, bars int) Features {
	return Features{
		Coin:   coin,
		Time:   t,
		Bars:   bars,
		Values: make(map[Feature]float64),
	}
}

// Set stores the value if it is finite, otherwise the feature stays not ready.
func (f Features) Set(feature Feature, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	f.Values[feature] = v
}

// Get returns the value of the feature and whether it is ready.
func (f Features) Get(feature Feature) (float64, bool) {
	v, ok := f.Values[feature]
	return v, ok
}

// Ready checks that all the given features are defined.
func (f Features) Ready(features ...Feature) bool {
	return len(f.Missing(features...)) == 0
}

// Missing returns the given features that are not ready.
func (f Features) Missing(features ...Feature) []Feature {
	missing := make([]Feature, 0)
	for _, feature := range features {
		if _, ok := f.Values[feature]; !ok {
			missing = append(missing, feature)
		}
	}
	return missing
}

// Vector returns the values of the given features in order.
// It reports false if any of them is not ready.
func (f Features) Vector(features ...Feature) ([]float64, bool) {
	x := make([]float64, len(features))
	for i, feature := range features {
		v, ok := f.Values[feature]
		if !ok {
			return nil, false
		}
		x[i] = v
	}
	return x, true
}

// Copy creates a deep copy of the feature set.
func (f Features) Copy() Features {
	values := make(map[Feature]float64, len(f.Values))
	for k, v := range f.Values {
		values[k] = v
	}
	f.Values = values
	return f
}

// Names returns the ready feature names sorted.
func (f Features) Names() []Feature {
	names := make([]Feature, 0, len(f.Values))
	for k := range f.Values {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})
	return names
}
