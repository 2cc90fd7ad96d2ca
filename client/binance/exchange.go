package binance

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/drakos74/futures-bot/client/binance/model"
	"github.com/drakos74/futures-bot/internal/api"
	coinmodel "github.com/drakos74/futures-bot/internal/model"
	cointime "github.com/drakos74/futures-bot/internal/time"
	"github.com/rs/zerolog/log"
)

// Exchange is the order gateway of the binance futures exchange.
type Exchange struct {
	api       exchange
	converter model.Converter
	fee       float64
	lock      *sync.Mutex
	info      map[coinmodel.Coin]futures.Symbol
}

// NewExchange creates a new binance futures gateway.
// fee is the taker fee percentage charged on the filled notional.
func NewExchange(client *futures.Client, fee float64) *Exchange {
	return newExchange(newFuturesAPI(client), fee)
}

func newExchange(client exchange, fee float64) *Exchange {
	return &Exchange{
		api:       client,
		converter: model.NewConverter(),
		fee:       fee,
		lock:      new(sync.Mutex),
	}
}

// symbol returns the exchange info of the instrument, loading it once.
func (e *Exchange) symbol(ctx context.Context, coin coinmodel.Coin) (futures.Symbol, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.info == nil {
		info, err := e.api.ExchangeInfo(ctx)
		if err != nil {
			return futures.Symbol{}, fmt.Errorf("could not get exchange info: %w", classify(err))
		}
		symbols := make(map[coinmodel.Coin]futures.Symbol)
		for _, s := range info.Symbols {
			symbols[e.converter.Coin.Coin(s.Symbol)] = s
		}
		log.Info().
			Int("pairs", len(symbols)).
			Str("exchange", string(api.Binance)).
			Msg("exchange info")
		e.info = symbols
	}
	s, ok := e.info[coin]
	if !ok {
		return s, api.Terminal(fmt.Errorf("could not find exchange info for %s [%d]", coin, len(e.info)))
	}
	return s, nil
}

// prepare converts the order to the exchange request, adjusting the quantity to the lot size.
func (e *Exchange) prepare(ctx context.Context, order coinmodel.Order) (request, error) {
	s, err := e.symbol(ctx, order.Coin)
	if err != nil {
		return request{}, err
	}
	lotSize, err := model.ParseLOTSize(s)
	if err != nil {
		return request{}, api.Terminal(err)
	}
	quantity, err := lotSize.Adjust(order.Quantity)
	if err != nil {
		return request{}, api.Terminal(fmt.Errorf("invalid quantity for %s: %w", order.Coin, err))
	}
	side := e.converter.Type.From(order.Type)
	if side == "" {
		return request{}, api.Terminal(fmt.Errorf("invalid side for %s", order.Coin))
	}
	orderType, err := e.converter.OrderType.From(order.OType)
	if err != nil {
		return request{}, api.Terminal(err)
	}
	r := request{
		Symbol:   s.Symbol,
		ClientID: order.ClientID,
		Side:     side,
		Type:     orderType,
		Quantity: lotSize.Format(quantity),
	}
	if order.OType != coinmodel.Market {
		if !(order.StopPrice > 0) {
			return request{}, api.Terminal(fmt.Errorf("invalid stop price for %s: %f", order.Coin, order.StopPrice))
		}
		r.StopPrice = model.FormatPrice(s, order.StopPrice)
	}
	return r, nil
}

// SubmitMarketOrder executes the order at market.
// A resubmission of an order the exchange already accepted returns the fill of the accepted one.
func (e *Exchange) SubmitMarketOrder(ctx context.Context, order coinmodel.Order) (coinmodel.Fill, error) {
	order.OType = coinmodel.Market
	r, err := e.prepare(ctx, order)
	if err != nil {
		return coinmodel.Fill{}, err
	}
	log.Debug().
		Str("symbol", r.Symbol).
		Str("side", string(r.Side)).
		Str("quantity", r.Quantity).
		Str("client-id", r.ClientID).
		Msg("submit order")
	response, err := e.api.CreateOrder(ctx, r)
	if err != nil {
		if !isDuplicate(err) {
			return coinmodel.Fill{}, fmt.Errorf("could not submit order: %w", classify(err))
		}
		existing, err := e.api.GetOrder(ctx, r.Symbol, r.ClientID)
		if err != nil {
			return coinmodel.Fill{}, fmt.Errorf("could not query order '%s': %w", r.ClientID, classify(err))
		}
		return e.fill(order, result{
			id:       existing.OrderID,
			status:   existing.Status,
			executed: existing.ExecutedQuantity,
			price:    existing.AvgPrice,
			time:     existing.UpdateTime,
		})
	}
	return e.fill(order, result{
		id:       response.OrderID,
		status:   response.Status,
		executed: response.ExecutedQuantity,
		price:    response.AvgPrice,
		time:     response.UpdateTime,
	})
}

// result is the execution report common to the order create and query responses.
type result struct {
	id       int64
	status   futures.OrderStatusType
	executed string
	price    string
	time     int64
}

func (e *Exchange) fill(order coinmodel.Order, r result) (coinmodel.Fill, error) {
	executed, err := strconv.ParseFloat(r.executed, 64)
	if err != nil {
		return coinmodel.Fill{}, api.Terminal(fmt.Errorf("could not parse executed quantity '%s': %w", r.executed, err))
	}
	if executed <= 0 {
		switch r.status {
		case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
			return coinmodel.Fill{}, api.Retryable(fmt.Errorf("order '%s' not filled yet", order.ClientID))
		}
		return coinmodel.Fill{}, api.Terminal(fmt.Errorf("order '%s' %s without fill", order.ClientID, r.status))
	}
	price, err := strconv.ParseFloat(r.price, 64)
	if err != nil {
		return coinmodel.Fill{}, api.Terminal(fmt.Errorf("could not parse average price '%s': %w", r.price, err))
	}
	return coinmodel.Fill{
		OrderID:  strconv.FormatInt(r.id, 10),
		ClientID: order.ClientID,
		Coin:     order.Coin,
		Type:     order.Type,
		Quantity: executed,
		Price:    price,
		Fee:      price * executed * e.fee / 100,
		Time:     cointime.FromMilli(r.time),
	}, nil
}

func (e *Exchange) place(ctx context.Context, order coinmodel.Order) (string, error) {
	r, err := e.prepare(ctx, order)
	if err != nil {
		return "", err
	}
	response, err := e.api.CreateOrder(ctx, r)
	if err != nil {
		if isDuplicate(err) {
			existing, err := e.api.GetOrder(ctx, r.Symbol, r.ClientID)
			if err != nil {
				return "", fmt.Errorf("could not query order '%s': %w", r.ClientID, classify(err))
			}
			return strconv.FormatInt(existing.OrderID, 10), nil
		}
		return "", fmt.Errorf("could not place %s order: %w", order.OType, classify(err))
	}
	log.Info().
		Str("symbol", r.Symbol).
		Str("type", string(r.Type)).
		Str("stop", r.StopPrice).
		Int64("order-id", response.OrderID).
		Msg("protective order")
	return strconv.FormatInt(response.OrderID, 10), nil
}

// SubmitStopOrder places a reduce-only stop-market order.
func (e *Exchange) SubmitStopOrder(ctx context.Context, order coinmodel.Order) (string, error) {
	order.OType = coinmodel.StopMarket
	return e.place(ctx, order)
}

// SubmitTakeProfitOrder places a reduce-only take-profit-market order.
func (e *Exchange) SubmitTakeProfitOrder(ctx context.Context, order coinmodel.Order) (string, error) {
	order.OType = coinmodel.TakeProfitMarket
	return e.place(ctx, order)
}

// CancelOrder cancels the protective order with the given exchange id.
func (e *Exchange) CancelOrder(ctx context.Context, coin coinmodel.Coin, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return api.Terminal(fmt.Errorf("invalid order id '%s': %w", orderID, err))
	}
	symbol := e.converter.Coin.Pair(coin)
	if err := e.api.CancelOrder(ctx, symbol, id); err != nil {
		if isGone(err) {
			log.Debug().Str("symbol", symbol).Int64("order-id", id).Msg("order already gone")
			return nil
		}
		return fmt.Errorf("could not cancel order %d: %w", id, classify(err))
	}
	log.Info().Str("symbol", symbol).Int64("order-id", id).Msg("cancelled order")
	return nil
}

// SetLeverage sets the leverage for the instrument.
func (e *Exchange) SetLeverage(ctx context.Context, coin coinmodel.Coin, leverage int) error {
	if leverage < 1 {
		return api.Terminal(fmt.Errorf("invalid leverage %d", leverage))
	}
	if err := e.api.ChangeLeverage(ctx, e.converter.Coin.Pair(coin), leverage); err != nil {
		return fmt.Errorf("could not set leverage for %s: %w", coin, classify(err))
	}
	return nil
}

var _ api.Gateway = (*Exchange)(nil)
