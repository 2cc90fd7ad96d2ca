package engine

import (
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/retry"
	"github.com/drakos74/futures-bot/internal/signal"
)

// Pair is the trading setup of an instrument.
type Pair struct {
	Mode      signal.Mode
	Algorithm model.Algorithm
	Params    model.RiskParameters
}

// Config defines the control loop.
type Config struct {
	Coins       []model.Coin
	Interval    api.Interval
	HTFInterval api.Interval
	History     int
	HTFHistory  int
	Polling     time.Duration
	Stream      bool
	Fetch       retry.Policy
	Default     Pair
	Pairs       map[model.Coin]Pair
}

// DefaultConfig returns the standard loop setup for the given instruments.
func DefaultConfig(coins ...model.Coin) Config {
	return Config{
		Coins:       coins,
		Interval:    "1m",
		HTFInterval: "4h",
		History:     500,
		HTFHistory:  500,
		Polling:     time.Minute,
		Fetch:       retry.DefaultPolicy(),
		Default: Pair{
			Mode:      signal.Hybrid,
			Algorithm: model.Smart,
			Params: model.RiskParameters{
				RiskPercentage:       0.01,
				RiskMultipleStop:     2,
				RewardMultipleTarget: 6,
				MinRewardToRisk:      3,
				Leverage:             20,
			},
		},
		Pairs: make(map[model.Coin]Pair),
	}
}

// Pair returns the setup of the instrument.
func (c Config) Pair(coin model.Coin) Pair {
	if p, ok := c.Pairs[coin]; ok {
		return p
	}
	return c.Default
}
