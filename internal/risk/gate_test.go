package risk

import (
	"errors"
	"sync"
	"testing"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var params = model.RiskParameters{
	RiskPercentage:       0.01,
	RiskMultipleStop:     2,
	RewardMultipleTarget: 6,
	MinRewardToRisk:      3,
	Leverage:             20,
}

func TestGate_Evaluate(t *testing.T) {

	type test struct {
		request Request
		reason  Reason
		accept  Accept
	}

	tests := map[string]test{
		"buy": {
			request: Request{Coin: model.BTC, Signal: model.BuySignal, ATR: 50, Price: 10000, Params: params},
			accept: Accept{
				Coin:         model.BTC,
				Type:         model.Buy,
				Price:        10000,
				Quantity:     0.2,
				StopLoss:     9900,
				TakeProfit:   10300,
				RewardToRisk: 3,
				Risk:         10,
			},
		},
		"sell": {
			request: Request{Coin: model.BTC, Signal: model.SellSignal, ATR: 50, Price: 10000, Params: params},
			accept: Accept{
				Coin:         model.BTC,
				Type:         model.Sell,
				Price:        10000,
				Quantity:     0.2,
				StopLoss:     10100,
				TakeProfit:   9700,
				RewardToRisk: 3,
				Risk:         10,
			},
		},
		"hold": {
			request: Request{Coin: model.BTC, Signal: model.HoldSignal, ATR: 50, Price: 10000, Params: params},
			reason:  Hold,
		},
		"zero-atr": {
			request: Request{Coin: model.BTC, Signal: model.BuySignal, ATR: 0, Price: 10000, Params: params},
			reason:  NonPositiveATR,
		},
		"negative-atr": {
			request: Request{Coin: model.BTC, Signal: model.BuySignal, ATR: -1, Price: 10000, Params: params},
			reason:  NonPositiveATR,
		},
		"zero-price": {
			request: Request{Coin: model.BTC, Signal: model.BuySignal, ATR: 1, Price: 0, Params: params},
			reason:  NonPositivePrice,
		},
		"low-reward": {
			request: Request{Coin: model.BTC, Signal: model.BuySignal, ATR: 50, Price: 10000, Params: model.RiskParameters{
				RiskPercentage:       0.01,
				RiskMultipleStop:     2,
				RewardMultipleTarget: 4,
				MinRewardToRisk:      3,
			}},
			reason: LowRewardToRisk,
		},
		"negative-target": {
			request: Request{Coin: model.BTC, Signal: model.SellSignal, ATR: 5000, Price: 10000, Params: params},
			reason:  InvalidLevels,
		},
		"no-stop": {
			request: Request{Coin: model.BTC, Signal: model.BuySignal, ATR: 50, Price: 10000, Params: model.RiskParameters{
				RiskPercentage:       0.01,
				RewardMultipleTarget: 6,
			}},
			reason: InvalidParams,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			account := NewAccount(1000)
			gate := NewGate(account)
			accept, err := gate.Evaluate(tt.request)
			if tt.reason != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, api.ErrRiskRejected))
				var rejection Rejection
				require.True(t, errors.As(err, &rejection))
				assert.Equal(t, tt.reason, rejection.Reason)
				reserved, total := account.Exposure(tt.request.Coin)
				assert.Equal(t, 0.0, reserved)
				assert.Equal(t, 0.0, total)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.accept.Quantity, accept.Quantity, 1e-9)
			assert.InDelta(t, tt.accept.Risk, accept.Risk, 1e-9)
			accept.Quantity = tt.accept.Quantity
			accept.Risk = tt.accept.Risk
			assert.Equal(t, tt.accept, accept)
			reserved, _ := account.Exposure(tt.request.Coin)
			assert.InDelta(t, 10.0, reserved, 1e-9)
		})
	}
}

func TestGate_ConstantPrice(t *testing.T) {
	gate := NewGate(NewAccount(1000))
	_, err := gate.Evaluate(Request{Coin: model.ETH, Signal: model.BuySignal, ATR: 0, Price: 100, Params: params})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ATR non-positive")
}

func TestGate_Exposure(t *testing.T) {
	account := NewAccount(1000)
	gate := NewGate(account)

	request := Request{Coin: model.BTC, Signal: model.BuySignal, ATR: 10, Price: 1000, Params: params}
	first, err := gate.Evaluate(request)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, first.Quantity, 1e-9)

	// the same instrument is blocked while reserved
	_, err = gate.Evaluate(request)
	var rejection Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, PositionOpen, rejection.Reason)

	// another instrument is sized on the free equity
	request.Coin = model.ETH
	second, err := gate.Evaluate(request)
	require.NoError(t, err)
	assert.InDelta(t, 0.99, second.Quantity, 1e-9)

	// half filled
	require.NoError(t, account.Commit(model.ETH, second.Quantity, second.Quantity/2))
	reserved, total := account.Exposure(model.ETH)
	assert.InDelta(t, 9.9/2, reserved, 1e-9)
	assert.InDelta(t, 10+9.9/2, total, 1e-9)

	balance := account.Settle(model.BTC, -5)
	assert.Equal(t, 995.0, balance)
	reserved, _ = account.Exposure(model.BTC)
	assert.Equal(t, 0.0, reserved)

	account.Release(model.ETH)
	_, total = account.Exposure(model.ETH)
	assert.Equal(t, 0.0, total)

	assert.Error(t, account.Commit(model.ETH, 1, 1))
}

func TestGate_NoFreeEquity(t *testing.T) {
	account := NewAccount(10)
	gate := NewGate(account)
	full := params
	full.RiskPercentage = 1
	_, err := gate.Evaluate(Request{Coin: model.BTC, Signal: model.BuySignal, ATR: 1, Price: 100, Params: full})
	require.NoError(t, err)
	_, err = gate.Evaluate(Request{Coin: model.ETH, Signal: model.BuySignal, ATR: 1, Price: 100, Params: full})
	var rejection Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, NoFreeEquity, rejection.Reason)
}

func TestGate_Concurrent(t *testing.T) {
	account := NewAccount(1000)
	gate := NewGate(account)

	coins := model.Coins("A", "B", "C", "D", "E", "F", "G", "H")
	wg := new(sync.WaitGroup)
	results := make(chan Accept, len(coins)*10)
	for _, coin := range coins {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(coin model.Coin) {
				defer wg.Done()
				accept, err := gate.Evaluate(Request{Coin: coin, Signal: model.BuySignal, ATR: 10, Price: 1000, Params: params})
				if err == nil {
					results <- accept
				}
			}(coin)
		}
	}
	wg.Wait()
	close(results)

	risk := 0.0
	accepted := 0
	for accept := range results {
		risk += accept.Risk
		accepted++
	}
	// only one reservation per instrument
	assert.Equal(t, len(coins), accepted)
	_, total := account.Exposure(model.NoCoin)
	assert.InDelta(t, risk, total, 1e-9)
}
