package model

import (
	"fmt"
	"time"
)

// RiskParameters are the per-instrument risk settings.
type RiskParameters struct {
	RiskPercentage       float64 `json:"risk_percentage" yaml:"risk_percentage"`
	RiskMultipleStop     float64 `json:"risk_multiple_stop" yaml:"risk_multiple_stop"`
	RewardMultipleTarget float64 `json:"reward_multiple_target" yaml:"reward_multiple_target"`
	MinRewardToRisk      float64 `json:"min_reward_to_risk" yaml:"min_reward_to_risk"`
	Leverage             int     `json:"leverage" yaml:"leverage"`
}

// Position is an open exposure on an instrument.
type Position struct {
	Coin       Coin      `json:"coin"`
	Type       Type      `json:"type"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	OpenedAt   time.Time `json:"opened_at"`
	// exchange ids of the protective orders
	StopOrderID       string `json:"stop_order_id,omitempty"`
	TakeProfitOrderID string `json:"take_profit_order_id,omitempty"`
}

// Orders returns the ids of the protective orders placed for the position.
func (p Position) Orders() []string {
	ids := make([]string, 0, 2)
	for _, id := range []string{p.StopOrderID, p.TakeProfitOrderID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// PnL returns the profit or loss of the position at the given price.
func (p Position) PnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity * p.Type.Sign()
}

// Value returns the notional value of the position at entry.
func (p Position) Value() float64 {
	return p.EntryPrice * p.Quantity
}

func (p Position) String() string {
	return fmt.Sprintf("%s %s %f@%f [%f,%f]", p.Coin, p.Type.String(), p.Quantity, p.EntryPrice, p.StopLoss, p.TakeProfit)
}

// ClosedPosition is a position that has been exited.
type ClosedPosition struct {
	Position
	ExitPrice float64   `json:"exit_price"`
	ClosedAt  time.Time `json:"closed_at"`
	PnL       float64   `json:"pnl"`
	Reason    string    `json:"reason"`
}
