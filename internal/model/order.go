package model

import (
	"time"
)

// OrderType defines the execution type of an order.
type OrderType byte

const (
	// Market is an order executed at the current price.
	Market OrderType = iota
	// StopMarket is a protective stop-loss order.
	StopMarket
	// TakeProfitMarket is a protective take-profit order.
	TakeProfitMarket
)

func (o OrderType) String() string {
	switch o {
	case StopMarket:
		return "stop_market"
	case TakeProfitMarket:
		return "take_profit_market"
	}
	return "market"
}

// Order is a request to the exchange gateway.
type Order struct {
	ClientID  string    `json:"client_id"`
	Coin      Coin      `json:"coin"`
	Type      Type      `json:"type"`
	OType     OrderType `json:"order_type"`
	Quantity  float64   `json:"quantity"`
	StopPrice float64   `json:"stop_price,omitempty"`
}

// Fill is the confirmed execution of an order.
type Fill struct {
	OrderID  string    `json:"order_id"`
	ClientID string    `json:"client_id"`
	Coin     Coin      `json:"coin"`
	Type     Type      `json:"type"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Fee      float64   `json:"fee"`
	Time     time.Time `json:"time"`
}

// Algorithm is the execution strategy for an order.
type Algorithm string

const (
	Immediate Algorithm = "immediate"
	Smart     Algorithm = "smart"
	TWAP      Algorithm = "twap"
	VWAP      Algorithm = "vwap"
)

// ChildOrder is one slice of an execution plan.
type ChildOrder struct {
	Index     int       `json:"index"`
	ClientID  string    `json:"client_id"`
	Coin      Coin      `json:"coin"`
	Type      Type      `json:"type"`
	Quantity  float64   `json:"quantity"`
	NotBefore time.Time `json:"not_before"`
}

// ExecutionPlan is the immutable ordered list of slices for an accepted decision.
type ExecutionPlan struct {
	ID         string       `json:"id"`
	Coin       Coin         `json:"coin"`
	Type       Type         `json:"type"`
	Algorithm  Algorithm    `json:"algorithm"`
	Quantity   float64      `json:"quantity"`
	StopLoss   float64      `json:"stop_loss"`
	TakeProfit float64      `json:"take_profit"`
	Orders     []ChildOrder `json:"orders"`
}
