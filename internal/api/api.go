package api

import (
	"context"
	"time"

	"github.com/drakos74/futures-bot/internal/model"
)

// ExchangeName defines the name of the exchange.
type ExchangeName string

const (
	// Binance is the binance futures exchange.
	Binance ExchangeName = "BINANCE"
	// Local is the local paper exchange.
	Local ExchangeName = "LOCAL"
)

// Interval is the bar interval as understood by the exchange e.g. 1m, 4h.
type Interval string

// Duration returns the time span of the interval.
func (i Interval) Duration() (time.Duration, error) {
	s := string(i)
	if len(s) > 1 {
		switch s[len(s)-1] {
		case 'd':
			d, err := time.ParseDuration(s[:len(s)-1] + "h")
			return 24 * d, err
		case 'w':
			d, err := time.ParseDuration(s[:len(s)-1] + "h")
			return 7 * 24 * d, err
		}
	}
	return time.ParseDuration(s)
}

// Feed provides market data bars for instruments.
type Feed interface {
	// Historical returns the last limit closed bars for the instrument in ascending time order.
	Historical(ctx context.Context, coin model.Coin, interval Interval, limit int) ([]model.Bar, error)
	// Stream emits closed bars for the given instruments until the context is cancelled.
	Stream(ctx context.Context, coins []model.Coin, interval Interval) (<-chan model.Bar, error)
}

// Gateway submits orders to the exchange.
type Gateway interface {
	// SubmitMarketOrder executes the order at market.
	// The client id identifies the order so that a repeated submission cannot create a second one.
	SubmitMarketOrder(ctx context.Context, order model.Order) (model.Fill, error)
	// SubmitStopOrder places a protective stop-market order.
	SubmitStopOrder(ctx context.Context, order model.Order) (string, error)
	// SubmitTakeProfitOrder places a protective take-profit-market order.
	SubmitTakeProfitOrder(ctx context.Context, order model.Order) (string, error)
	// CancelOrder cancels an open order of the instrument.
	// Orders that are already gone, because they triggered or got cancelled, are not an error.
	CancelOrder(ctx context.Context, coin model.Coin, orderID string) error
	// SetLeverage sets the leverage for the instrument.
	SetLeverage(ctx context.Context, coin model.Coin, leverage int) error
}
