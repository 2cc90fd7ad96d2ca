package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSlippage is the price slippage in percent applied to every market fill.
	DefaultSlippage = 0.05
	// DefaultFee is the exchange fee in percent of the fill notional.
	DefaultFee = 0.1
)

// Failure is a scripted gateway failure.
// A failure without an error lets the submission through.
type Failure struct {
	Err error
	// Accepted books the order before returning the error, like a timeout on a request that went through.
	Accepted bool
}

// Exchange is a local paper exchange that fills market orders at the last observed price.
// It is used for back-testing and dry runs.
type Exchange struct {
	slippage   float64
	fee        float64
	mutex      *sync.Mutex
	prices     map[model.Coin]model.Bar
	fills      map[string]model.Fill
	order      []string
	protective map[string]model.Order
	leverage   map[model.Coin]int
	failures   []Failure
	calls      int
}

// NewExchange creates a new local exchange with the given slippage and fee percentages.
func NewExchange(slippage, fee float64) *Exchange {
	return &Exchange{
		slippage:   slippage,
		fee:        fee,
		mutex:      new(sync.Mutex),
		prices:     make(map[model.Coin]model.Bar),
		fills:      make(map[string]model.Fill),
		order:      make([]string, 0),
		protective: make(map[string]model.Order),
		leverage:   make(map[model.Coin]int),
	}
}

// Fail queues failures for the next order submissions.
func (e *Exchange) Fail(failures ...Failure) *Exchange {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.failures = append(e.failures, failures...)
	return e
}

// Observe updates the market price of the bar instrument.
func (e *Exchange) Observe(bar model.Bar) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.prices[bar.Coin] = bar
}

// Price returns the last observed price for the coin.
func (e *Exchange) Price(coin model.Coin) (float64, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	bar, ok := e.prices[coin]
	return bar.Close, ok
}

func (e *Exchange) next() (Failure, bool) {
	e.calls++
	if len(e.failures) == 0 {
		return Failure{}, false
	}
	f := e.failures[0]
	e.failures = e.failures[1:]
	return f, f.Err != nil
}

// SubmitMarketOrder fills the order at the last price adjusted for slippage.
// Repeated submissions of the same client id return the original fill.
func (e *Exchange) SubmitMarketOrder(ctx context.Context, order model.Order) (model.Fill, error) {
	if err := ctx.Err(); err != nil {
		return model.Fill{}, err
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()

	failure, failing := e.next()
	if fill, ok := e.fills[order.ClientID]; ok && !failing {
		log.Debug().Str("client-id", order.ClientID).Msg("duplicate order submission")
		return fill, nil
	}
	if failing && !failure.Accepted {
		return model.Fill{}, failure.Err
	}

	if !(order.Quantity > 0) {
		return model.Fill{}, api.Terminal(fmt.Errorf("invalid quantity %f", order.Quantity))
	}
	bar, ok := e.prices[order.Coin]
	if !ok {
		return model.Fill{}, api.Terminal(fmt.Errorf("no price for %s", order.Coin))
	}
	fill, ok := e.fills[order.ClientID]
	if !ok {
		price := bar.Close * (1 + order.Type.Sign()*e.slippage/100)
		fill = model.Fill{
			OrderID:  uuid.New().String(),
			ClientID: order.ClientID,
			Coin:     order.Coin,
			Type:     order.Type,
			Quantity: order.Quantity,
			Price:    price,
			Fee:      price * order.Quantity * e.fee / 100,
			Time:     bar.Time,
		}
		e.fills[order.ClientID] = fill
		e.order = append(e.order, order.ClientID)
	}
	if failing {
		return model.Fill{}, failure.Err
	}
	return fill, nil
}

func (e *Exchange) place(ctx context.Context, order model.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if failure, ok := e.next(); ok {
		return "", failure.Err
	}
	if !(order.StopPrice > 0) || !(order.Quantity > 0) {
		return "", api.Terminal(fmt.Errorf("invalid protective order %+v", order))
	}
	id := fmt.Sprintf("%s-%s", order.OType.String(), order.ClientID)
	e.protective[id] = order
	return id, nil
}

// SubmitStopOrder records the stop-loss order.
func (e *Exchange) SubmitStopOrder(ctx context.Context, order model.Order) (string, error) {
	order.OType = model.StopMarket
	return e.place(ctx, order)
}

// SubmitTakeProfitOrder records the take-profit order.
func (e *Exchange) SubmitTakeProfitOrder(ctx context.Context, order model.Order) (string, error) {
	order.OType = model.TakeProfitMarket
	return e.place(ctx, order)
}

// CancelOrder removes the protective order.
func (e *Exchange) CancelOrder(ctx context.Context, coin model.Coin, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if o, ok := e.protective[orderID]; ok && o.Coin == coin {
		delete(e.protective, orderID)
	}
	return nil
}

// SetLeverage records the leverage for the coin.
func (e *Exchange) SetLeverage(ctx context.Context, coin model.Coin, leverage int) error {
	if leverage < 1 {
		return api.Terminal(fmt.Errorf("invalid leverage %d", leverage))
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.leverage[coin] = leverage
	return nil
}

// Leverage returns the leverage set for the coin.
func (e *Exchange) Leverage(coin model.Coin) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.leverage[coin]
}

// Fills returns all booked market fills in submission order.
func (e *Exchange) Fills() []model.Fill {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	fills := make([]model.Fill, len(e.order))
	for i, id := range e.order {
		fills[i] = e.fills[id]
	}
	return fills
}

// Protective returns the placed protective orders.
func (e *Exchange) Protective() []model.Order {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	orders := make([]model.Order, 0, len(e.protective))
	for _, o := range e.protective {
		orders = append(orders, o)
	}
	return orders
}

// Calls returns the number of order submissions the exchange received.
func (e *Exchange) Calls() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.calls
}

// Clock returns the time of the latest observed bar, which is the exchange time for back-testing.
func (e *Exchange) Clock() time.Time {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	t := time.Time{}
	for _, bar := range e.prices {
		if bar.Time.After(t) {
			t = bar.Time
		}
	}
	return t
}
