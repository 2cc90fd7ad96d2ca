package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_PnL(t *testing.T) {

	type test struct {
		position Position
		price    float64
		pnl      float64
	}

	tests := map[string]test{
		"buy-profit": {
			position: Position{Type: Buy, Quantity: 2, EntryPrice: 100},
			price:    110,
			pnl:      20,
		},
		"buy-loss": {
			position: Position{Type: Buy, Quantity: 2, EntryPrice: 100},
			price:    90,
			pnl:      -20,
		},
		"sell-profit": {
			position: Position{Type: Sell, Quantity: 0.5, EntryPrice: 100},
			price:    80,
			pnl:      10,
		},
		"sell-loss": {
			position: Position{Type: Sell, Quantity: 0.5, EntryPrice: 100},
			price:    120,
			pnl:      -10,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tt.pnl, tt.position.PnL(tt.price), 1e-9)
		})
	}
}

func TestSignalOf(t *testing.T) {
	for v, s := range map[int]Signal{-1: SellSignal, 0: HoldSignal, 1: BuySignal} {
		signal, err := SignalOf(v)
		require.NoError(t, err)
		assert.Equal(t, s, signal)
	}
	signal, err := SignalOf(2)
	assert.Error(t, err)
	assert.Equal(t, HoldSignal, signal)
}

func TestType_JSON(t *testing.T) {
	p := Position{Coin: BTC, Type: Sell, Quantity: 1}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"sell"`)

	var loaded Position
	err = json.Unmarshal(b, &loaded)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestFeatures(t *testing.T) {
	f := NewFeatures(BTC, time.Time{}, 1)
	f.Set(RSI, 50)
	f.Set(ADX, math.NaN())

	v, ok := f.Get(RSI)
	assert.True(t, ok)
	assert.Equal(t, 50.0, v)

	_, ok = f.Get(ADX)
	assert.False(t, ok)
	assert.Equal(t, []Feature{ADX}, f.Missing(RSI, ADX))

	_, ok = f.Vector(RSI, ADX)
	assert.False(t, ok)

	c := f.Copy()
	c.Set(ADX, 20)
	assert.False(t, f.Ready(ADX))
	assert.True(t, c.Ready(ADX, RSI))
}
