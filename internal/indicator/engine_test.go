package indicator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/drakos74/futures-bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

var start = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func randomWalk(coin model.Coin, n int, seed int64) []model.Bar {
	r := rand.New(rand.NewSource(seed))
	bars := make([]model.Bar, n)
	price := 1000.0
	for i := 0; i < n; i++ {
		open := price
		price = math.Max(1, price+r.NormFloat64()*5)
		bars[i] = model.Bar{
			Coin:   coin,
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   open,
			High:   math.Max(open, price) + 0.1 + r.Float64(),
			Low:    math.Min(open, price) - 0.1 - r.Float64(),
			Close:  price,
			Volume: 1 + r.Float64()*10,
		}
	}
	return bars
}

func linear(coin model.Coin, n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		bars[i] = model.Bar{
			Coin:   coin,
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1,
		}
	}
	return bars
}

func constant(coin model.Coin, n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = model.Bar{
			Coin:   coin,
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   100,
			High:   100,
			Low:    100,
			Close:  100,
			Volume: 1,
		}
	}
	return bars
}

func TestEngine_Warmup(t *testing.T) {
	config := DefaultConfig()
	engine := NewEngine("test", config)
	for i, bar := range randomWalk(model.BTC, 300, 1) {
		features, ok := engine.Update(bar)
		require.True(t, ok)
		n := i + 1
		assert.Equal(t, n, features.Bars)
		for _, feature := range model.AllFeatures {
			_, ready := features.Get(feature)
			assert.Equal(t, n >= config.Warmup(feature), ready, "%s at bar %d", feature, n)
		}
	}
}

func TestEngine_Linear(t *testing.T) {
	config := DefaultConfig()
	engine := NewEngine("test", config)
	closes := make([]float64, 0)
	for i, bar := range linear(model.ETH, 250) {
		features, ok := engine.Update(bar)
		require.True(t, ok)
		closes = append(closes, bar.Close)
		n := i + 1

		expected := map[model.Feature]float64{
			model.Close: bar.Close,
			model.OBV:   float64(n - 1),
			model.VWAP:  100 + float64(n-1)/2,
		}
		if n >= config.Warmup(model.ATR) {
			expected[model.ATR] = 2
		}
		if n >= config.Warmup(model.RSI) {
			expected[model.RSI] = 100
		}
		if n >= config.Warmup(model.ADX) {
			expected[model.ADX] = 100
		}
		if n >= config.Warmup(model.Returns) {
			expected[model.Returns] = 1 / (bar.Close - 1)
		}
		if n >= config.Warmup(model.Momentum) {
			expected[model.Momentum] = float64(config.Momentum)
		}
		if n >= config.Warmup(model.StochasticK) {
			k := 100 * float64(config.StochasticK) / float64(config.StochasticK+1)
			expected[model.StochasticK] = k
			if n >= config.Warmup(model.StochasticD) {
				expected[model.StochasticD] = k
			}
		}
		if n >= config.Warmup(model.ShortMA) {
			expected[model.ShortMA] = stat.Mean(closes[n-config.ShortMA:], nil)
		}
		if n >= config.Warmup(model.LongMA) {
			expected[model.LongMA] = stat.Mean(closes[n-config.LongMA:], nil)
		}
		if n >= config.Warmup(model.BBMiddle) {
			window := closes[n-config.Bollinger:]
			mean, std := stat.MeanStdDev(window, nil)
			expected[model.BBMiddle] = mean
			expected[model.BBUpper] = mean + 2*std
			expected[model.BBLower] = mean - 2*std
		}
		if n >= config.Warmup(model.TenkanSen) {
			expected[model.TenkanSen] = bar.Close - float64(config.Tenkan-1)/2
		}
		if n >= config.Warmup(model.KijunSen) {
			expected[model.KijunSen] = bar.Close - float64(config.Kijun-1)/2
		}
		if n >= config.Warmup(model.SenkouSpanB) {
			past := bar.Close - float64(config.Displacement)
			expected[model.SenkouSpanB] = past - float64(config.Senkou-1)/2
		}

		for feature, value := range expected {
			v, ok := features.Get(feature)
			if assert.True(t, ok, "%s at bar %d", feature, n) {
				assert.InDelta(t, value, v, 1e-6, "%s at bar %d", feature, n)
			}
		}
	}
}

func TestEngine_MACD(t *testing.T) {
	config := DefaultConfig()
	engine := NewEngine("test", config)
	bars := randomWalk(model.BTC, 120, 7)

	ema := func(values []float64, span int) []float64 {
		alpha := 2 / (float64(span) + 1)
		out := make([]float64, len(values))
		for i, v := range values {
			if i == 0 {
				out[i] = v
				continue
			}
			out[i] = alpha*v + (1-alpha)*out[i-1]
		}
		return out
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	fast := ema(closes, config.MACDFast)
	slow := ema(closes, config.MACDSlow)
	macd := make([]float64, 0)
	for i := config.MACDSlow - 1; i < len(closes); i++ {
		macd = append(macd, fast[i]-slow[i])
	}
	signal := ema(macd, config.MACDSignal)

	var last model.Features
	for _, bar := range bars {
		last, _ = engine.Update(bar)
	}
	m, ok := last.Get(model.MACD)
	require.True(t, ok)
	assert.InDelta(t, macd[len(macd)-1], m, 1e-9)
	s, ok := last.Get(model.MACDSignal)
	require.True(t, ok)
	assert.InDelta(t, signal[len(signal)-1], s, 1e-9)
	d, ok := last.Get(model.MACDDiff)
	require.True(t, ok)
	assert.InDelta(t, macd[len(macd)-1]-signal[len(signal)-1], d, 1e-9)
}

func TestEngine_ZeroRange(t *testing.T) {
	engine := NewEngine("test", DefaultConfig())
	var features model.Features
	for _, bar := range constant(model.BTC, 100) {
		features, _ = engine.Update(bar)
	}

	atr, ok := features.Get(model.ATR)
	assert.True(t, ok)
	assert.Equal(t, 0.0, atr)

	upper, ok := features.Get(model.BBUpper)
	assert.True(t, ok)
	lower, _ := features.Get(model.BBLower)
	assert.Equal(t, 100.0, upper)
	assert.Equal(t, 100.0, lower)

	for _, feature := range []model.Feature{model.RSI, model.ADX, model.StochasticK, model.StochasticD} {
		_, ok := features.Get(feature)
		assert.False(t, ok, string(feature))
	}

	for _, v := range features.Values {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestEngine_OutOfOrder(t *testing.T) {

	type test struct {
		bars []int
		ok   []bool
	}

	tests := map[string]test{
		"duplicate": {
			bars: []int{0, 1, 1, 2},
			ok:   []bool{true, true, false, true},
		},
		"older": {
			bars: []int{0, 2, 1, 3},
			ok:   []bool{true, true, false, true},
		},
		"ordered": {
			bars: []int{0, 1, 2, 3},
			ok:   []bool{true, true, true, true},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			series := randomWalk(model.BTC, 10, 3)
			engine := NewEngine("test", DefaultConfig())
			for i, b := range tt.bars {
				before, _ := engine.Snapshot(model.BTC)
				features, ok := engine.Update(series[b])
				assert.Equal(t, tt.ok[i], ok)
				if !ok {
					assert.Equal(t, before, features)
				}
			}
		})
	}
}

func TestEngine_Idempotent(t *testing.T) {
	bars := randomWalk(model.BTC, 260, 11)

	clean := NewEngine("clean", DefaultConfig())
	for _, bar := range bars {
		clean.Update(bar)
	}

	noisy := NewEngine("noisy", DefaultConfig())
	for i, bar := range bars {
		noisy.Update(bar)
		noisy.Update(bar)
		if i > 0 {
			noisy.Update(bars[i-1])
		}
	}

	c, ok := clean.Snapshot(model.BTC)
	require.True(t, ok)
	n, ok := noisy.Snapshot(model.BTC)
	require.True(t, ok)
	assert.Equal(t, c, n)
}

func TestEngine_Invalid(t *testing.T) {
	engine := NewEngine("test", DefaultConfig())
	bar := randomWalk(model.BTC, 1, 1)[0]
	bar.Close = math.NaN()
	_, ok := engine.Update(bar)
	assert.False(t, ok)
	_, ok = engine.Snapshot(model.BTC)
	assert.False(t, ok)
}

func TestEngine_Ingest(t *testing.T) {
	engine := NewEngine("test", DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bars := make(chan model.Bar)
	accepted := 0
	done := make(chan struct{})
	go func() {
		engine.Ingest(ctx, bars, func(bar model.Bar, features model.Features) {
			accepted++
		})
		close(done)
	}()

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		last := 0
		for i := 0; i < 1000; i++ {
			if f, ok := engine.Snapshot(model.ETH); ok {
				assert.GreaterOrEqual(t, f.Bars, last)
				last = f.Bars
			}
		}
	}()

	for _, bar := range randomWalk(model.ETH, 50, 5) {
		bars <- bar
		bars <- bar
	}
	close(bars)
	<-done
	wg.Wait()

	assert.Equal(t, 50, accepted)
	f, ok := engine.Snapshot(model.ETH)
	require.True(t, ok)
	assert.Equal(t, 50, f.Bars)
	last, ok := engine.Last(model.ETH)
	require.True(t, ok)
	assert.Equal(t, start.Add(49*time.Minute), last.Time)
}
