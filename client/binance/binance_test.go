package binance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/drakos74/futures-bot/client/binance/model"
	"github.com/drakos74/futures-bot/internal/api"
	coinmodel "github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	klines   []*futures.Kline
	errs     []error
	orders   map[string]*futures.Order
	requests []request
	leverage map[string]int
	canceled []int64
}

func newTestAPI(errs ...error) *testAPI {
	return &testAPI{
		errs:     errs,
		orders:   make(map[string]*futures.Order),
		leverage: make(map[string]int),
	}
}

func (t *testAPI) next() error {
	if len(t.errs) == 0 {
		return nil
	}
	err := t.errs[0]
	t.errs = t.errs[1:]
	return err
}

func (t *testAPI) Klines(ctx context.Context, symbol, interval string, limit int) ([]*futures.Kline, error) {
	if err := t.next(); err != nil {
		return nil, err
	}
	if limit < len(t.klines) {
		return t.klines[len(t.klines)-limit:], nil
	}
	return t.klines, nil
}

func (t *testAPI) ExchangeInfo(ctx context.Context) (*futures.ExchangeInfo, error) {
	return &futures.ExchangeInfo{
		Symbols: []futures.Symbol{
			{
				Symbol:            "BTCUSDT",
				QuantityPrecision: 3,
				PricePrecision:    1,
				Filters: []map[string]interface{}{
					{"filterType": "LOT_SIZE", "maxQty": "1000", "minQty": "0.001", "stepSize": "0.001"},
				},
			},
		},
	}, nil
}

// CreateOrder fills market orders at 100 and books them by client id, even when it then fails.
func (t *testAPI) CreateOrder(ctx context.Context, r request) (*futures.CreateOrderResponse, error) {
	t.requests = append(t.requests, r)
	if _, ok := t.orders[r.ClientID]; ok {
		return nil, &common.APIError{Code: codeDuplicateOrder, Message: "ClientOrderId is duplicated."}
	}
	status := futures.OrderStatusTypeFilled
	executed := r.Quantity
	if r.Type != futures.OrderTypeMarket {
		status = futures.OrderStatusTypeNew
		executed = "0"
	}
	order := &futures.Order{
		OrderID:          int64(len(t.orders) + 1),
		ClientOrderID:    r.ClientID,
		Status:           status,
		ExecutedQuantity: executed,
		AvgPrice:         "100",
		UpdateTime:       1609459200000,
	}
	t.orders[r.ClientID] = order
	if err := t.next(); err != nil {
		return nil, err
	}
	return &futures.CreateOrderResponse{
		OrderID:          order.OrderID,
		ClientOrderID:    order.ClientOrderID,
		Status:           order.Status,
		ExecutedQuantity: order.ExecutedQuantity,
		AvgPrice:         order.AvgPrice,
		UpdateTime:       order.UpdateTime,
	}, nil
}

func (t *testAPI) GetOrder(ctx context.Context, symbol, clientID string) (*futures.Order, error) {
	if o, ok := t.orders[clientID]; ok {
		return o, nil
	}
	return nil, &common.APIError{Code: -2013, Message: "Order does not exist."}
}

// CancelOrder cancels open orders, anything else is unknown to the exchange.
func (t *testAPI) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	if err := t.next(); err != nil {
		return err
	}
	for _, o := range t.orders {
		if o.OrderID == orderID && o.Status == futures.OrderStatusTypeNew {
			o.Status = futures.OrderStatusTypeCanceled
			t.canceled = append(t.canceled, orderID)
			return nil
		}
	}
	return &common.APIError{Code: codeUnknownOrder, Message: "Unknown order sent."}
}

func (t *testAPI) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := t.next(); err != nil {
		return err
	}
	t.leverage[symbol] = leverage
	return nil
}

func TestClassify(t *testing.T) {

	type test struct {
		err       error
		retryable bool
		terminal  bool
	}

	tests := map[string]test{
		"nil": {},
		"network": {
			err:       errors.New("connection reset by peer"),
			retryable: true,
		},
		"rate-limit": {
			err:       &common.APIError{Code: codeTooManyRequests, Message: "Too many requests."},
			retryable: true,
		},
		"timeout": {
			err:       fmt.Errorf("wrapped: %w", &common.APIError{Code: codeTimeout}),
			retryable: true,
		},
		"margin": {
			err:      &common.APIError{Code: -2019, Message: "Margin is insufficient."},
			terminal: true,
		},
		"invalid-symbol": {
			err:      &common.APIError{Code: -1121, Message: "Invalid symbol."},
			terminal: true,
		},
		"cancelled": {
			err: context.Canceled,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := classify(tt.err)
			assert.Equal(t, tt.retryable, api.IsRetryable(err))
			assert.Equal(t, tt.terminal, errors.Is(err, api.ErrGatewayTerminal))
		})
	}
}

func TestExchange_SubmitMarketOrder(t *testing.T) {

	type test struct {
		errs     []error
		order    coinmodel.Order
		quantity float64
		requests int
		err      bool
		terminal bool
	}

	order := coinmodel.Order{
		ClientID: "id-1",
		Coin:     coinmodel.BTC,
		Type:     coinmodel.Buy,
		Quantity: 0.12345,
	}

	tests := map[string]test{
		"filled": {
			order:    order,
			quantity: 0.123,
			requests: 1,
		},
		"transient": {
			errs:     []error{&common.APIError{Code: codeServerBusy}},
			order:    order,
			requests: 1,
			err:      true,
		},
		"below-lot-size": {
			order: coinmodel.Order{
				ClientID: "id-2",
				Coin:     coinmodel.BTC,
				Type:     coinmodel.Sell,
				Quantity: 0.0001,
			},
			err:      true,
			terminal: true,
		},
		"unknown-symbol": {
			order: coinmodel.Order{
				ClientID: "id-3",
				Coin:     "XYZUSDT",
				Type:     coinmodel.Buy,
				Quantity: 1,
			},
			err:      true,
			terminal: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestAPI(tt.errs...)
			exchange := newExchange(client, 0.1)
			fill, err := exchange.SubmitMarketOrder(context.Background(), tt.order)
			assert.Len(t, client.requests, tt.requests)
			if tt.err {
				require.Error(t, err)
				assert.Equal(t, tt.terminal, errors.Is(err, api.ErrGatewayTerminal))
				assert.Equal(t, !tt.terminal, api.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.quantity, fill.Quantity)
			assert.Equal(t, 100.0, fill.Price)
			assert.InDelta(t, 100*tt.quantity*0.001, fill.Fee, 1e-12)
			assert.Equal(t, "1", fill.OrderID)
			assert.Equal(t, tt.order.ClientID, fill.ClientID)
			assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), fill.Time)
			assert.Equal(t, futures.SideTypeBuy, client.requests[0].Side)
			assert.Equal(t, "0.123", client.requests[0].Quantity)
		})
	}
}

func TestExchange_SubmitMarketOrder_Resubmit(t *testing.T) {
	client := newTestAPI(&common.APIError{Code: codeTimeout})
	exchange := newExchange(client, 0)
	order := coinmodel.Order{
		ClientID: "id-1",
		Coin:     coinmodel.BTC,
		Type:     coinmodel.Buy,
		Quantity: 1,
	}

	var fill coinmodel.Fill
	err := retry.Do(context.Background(), retry.Policy{Attempts: 3, Min: time.Millisecond, Max: time.Millisecond, Factor: 1}, "test", func(ctx context.Context, attempt int) error {
		var err error
		fill, err = exchange.SubmitMarketOrder(ctx, order)
		return err
	})
	require.NoError(t, err)
	// the second submission hits the duplicate client id and reads back the first order
	assert.Len(t, client.requests, 2)
	assert.Len(t, client.orders, 1)
	assert.Equal(t, 1.0, fill.Quantity)
	assert.Equal(t, "1", fill.OrderID)
}

func TestExchange_Protective(t *testing.T) {
	client := newTestAPI()
	exchange := newExchange(client, 0)
	order := coinmodel.Order{
		ClientID:  "stop-1",
		Coin:      coinmodel.BTC,
		Type:      coinmodel.Sell,
		Quantity:  0.5,
		StopPrice: 95.123,
	}
	id, err := exchange.SubmitStopOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	order.ClientID = "target-1"
	order.StopPrice = 130
	id, err = exchange.SubmitTakeProfitOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	require.Len(t, client.requests, 2)
	assert.Equal(t, futures.OrderTypeStopMarket, client.requests[0].Type)
	assert.Equal(t, "95.1", client.requests[0].StopPrice)
	assert.Equal(t, futures.SideTypeSell, client.requests[0].Side)
	assert.Equal(t, futures.OrderTypeTakeProfitMarket, client.requests[1].Type)
	assert.Equal(t, "130.0", client.requests[1].StopPrice)

	// resubmitting returns the existing order
	id, err = exchange.SubmitTakeProfitOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	order.StopPrice = 0
	order.ClientID = "stop-2"
	_, err = exchange.SubmitStopOrder(context.Background(), order)
	assert.True(t, errors.Is(err, api.ErrGatewayTerminal))
}

func TestExchange_CancelOrder(t *testing.T) {

	type test struct {
		errs     []error
		id       string
		canceled []int64
		err      bool
		terminal bool
	}

	tests := map[string]test{
		"open": {
			id:       "1",
			canceled: []int64{1},
		},
		"filled": {
			id: "2",
		},
		"unknown": {
			id: "42",
		},
		"invalid-id": {
			id:       "stop-1",
			err:      true,
			terminal: true,
		},
		"transient": {
			errs: []error{&common.APIError{Code: codeServerBusy}},
			id:   "1",
			err:  true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestAPI()
			exchange := newExchange(client, 0)
			_, err := exchange.SubmitStopOrder(context.Background(), coinmodel.Order{
				ClientID:  "stop-1",
				Coin:      coinmodel.BTC,
				Type:      coinmodel.Sell,
				Quantity:  1,
				StopPrice: 90,
			})
			require.NoError(t, err)
			_, err = exchange.SubmitMarketOrder(context.Background(), coinmodel.Order{
				ClientID: "entry-1",
				Coin:     coinmodel.BTC,
				Type:     coinmodel.Buy,
				Quantity: 1,
			})
			require.NoError(t, err)

			client.errs = tt.errs
			err = exchange.CancelOrder(context.Background(), coinmodel.BTC, tt.id)
			if tt.err {
				require.Error(t, err)
				assert.Equal(t, tt.terminal, errors.Is(err, api.ErrGatewayTerminal))
				assert.Equal(t, !tt.terminal, api.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.canceled, client.canceled)
		})
	}
}

func TestExchange_SetLeverage(t *testing.T) {
	client := newTestAPI(&common.APIError{Code: codeDisconnected})
	exchange := newExchange(client, 0)
	err := exchange.SetLeverage(context.Background(), coinmodel.BTC, 20)
	assert.True(t, api.IsRetryable(err))
	require.NoError(t, exchange.SetLeverage(context.Background(), coinmodel.BTC, 20))
	assert.Equal(t, 20, client.leverage["BTCUSDT"])
	assert.True(t, errors.Is(exchange.SetLeverage(context.Background(), coinmodel.BTC, 0), api.ErrGatewayTerminal))
}

func TestClient_Historical(t *testing.T) {
	client := newTestAPI()
	for i := 0; i < 5; i++ {
		client.klines = append(client.klines, &futures.Kline{
			OpenTime: 1609459200000 + int64(i)*60000,
			Open:     "1",
			High:     "2",
			Low:      "0.5",
			Close:    fmt.Sprintf("%d", i+1),
			Volume:   "10",
		})
	}
	feed := &Client{api: client, converter: model.NewConverter()}
	bars, err := feed.Historical(context.Background(), coinmodel.BTC, "1m", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 3.0, bars[0].Close)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 4, 0, 0, time.UTC), bars[2].Time)

	client.errs = []error{&common.APIError{Code: codeTooManyRequests}}
	_, err = feed.Historical(context.Background(), coinmodel.BTC, "1m", 3)
	assert.True(t, api.IsRetryable(err))
}

// testSocket emulates the kline socket, dropping the connection once.
type testSocket struct {
	lock   sync.Mutex
	opened int
}

func (s *testSocket) serve(pairs map[string]string, handler futures.WsKlineHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error) {
	s.lock.Lock()
	s.opened++
	opened := s.opened
	s.lock.Unlock()
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(done)
		kline := func(start int64, final bool) *futures.WsKlineEvent {
			return &futures.WsKlineEvent{
				Symbol: "BTCUSDT",
				Kline: futures.WsKline{
					StartTime: start,
					Open:      "1",
					High:      "1",
					Low:       "1",
					Close:     "1",
					Volume:    "1",
					IsFinal:   final,
				},
			}
		}
		base := 1609459200000 + int64(opened-1)*60000
		handler(kline(base, false))
		handler(kline(base, true))
		if opened == 1 {
			errHandler(errors.New("connection reset"))
			return
		}
		<-stop
	}()
	return done, stop, nil
}

func TestClient_Stream(t *testing.T) {
	socket := &testSocket{}
	feed := &Client{
		api:       newTestAPI(),
		serve:     socket.serve,
		converter: model.NewConverter(),
		reconnect: retry.Policy{Attempts: 1, Min: time.Millisecond, Max: time.Millisecond, Factor: 1},
	}
	ctx, cancel := context.WithCancel(context.Background())
	bars, err := feed.Stream(ctx, []coinmodel.Coin{coinmodel.BTC}, "1m")
	require.NoError(t, err)

	first := <-bars
	second := <-bars
	assert.Equal(t, coinmodel.BTC, first.Coin)
	assert.Equal(t, time.Minute, second.Time.Sub(first.Time))
	cancel()
	for range bars {
	}
	socket.lock.Lock()
	defer socket.lock.Unlock()
	assert.Equal(t, 2, socket.opened)
}
