package binance

import (
	"context"

	"github.com/adshao/go-binance/v2/futures"
)

// exchange is the part of the futures api the client relies on.
type exchange interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]*futures.Kline, error)
	ExchangeInfo(ctx context.Context) (*futures.ExchangeInfo, error)
	CreateOrder(ctx context.Context, r request) (*futures.CreateOrderResponse, error)
	GetOrder(ctx context.Context, symbol, clientID string) (*futures.Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	ChangeLeverage(ctx context.Context, symbol string, leverage int) error
}

// request is the order as submitted to the exchange.
type request struct {
	Symbol    string
	ClientID  string
	Side      futures.SideType
	Type      futures.OrderType
	Quantity  string
	StopPrice string
}

// serve opens the combined kline socket for the given symbol to interval pairs.
type serve func(pairs map[string]string, handler futures.WsKlineHandler, errHandler futures.ErrHandler) (doneC, stopC chan struct{}, err error)

type futuresAPI struct {
	client *futures.Client
}

func newFuturesAPI(client *futures.Client) *futuresAPI {
	return &futuresAPI{client: client}
}

func (f *futuresAPI) Klines(ctx context.Context, symbol, interval string, limit int) ([]*futures.Kline, error) {
	return f.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
}

func (f *futuresAPI) ExchangeInfo(ctx context.Context) (*futures.ExchangeInfo, error) {
	return f.client.NewExchangeInfoService().Do(ctx)
}

func (f *futuresAPI) CreateOrder(ctx context.Context, r request) (*futures.CreateOrderResponse, error) {
	service := f.client.NewCreateOrderService().
		Symbol(r.Symbol).
		Side(r.Side).
		Type(r.Type).
		Quantity(r.Quantity).
		NewClientOrderID(r.ClientID).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if r.StopPrice != "" {
		service = service.
			StopPrice(r.StopPrice).
			WorkingType(futures.WorkingTypeMarkPrice).
			ReduceOnly(true)
	}
	return service.Do(ctx)
}

func (f *futuresAPI) GetOrder(ctx context.Context, symbol, clientID string) (*futures.Order, error) {
	return f.client.NewGetOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientID).
		Do(ctx)
}

func (f *futuresAPI) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := f.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	return err
}

func (f *futuresAPI) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := f.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	return err
}
