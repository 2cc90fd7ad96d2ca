package binance

import (
	"context"
	"fmt"
	"sync"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/drakos74/futures-bot/client/binance/model"
	"github.com/drakos74/futures-bot/internal/api"
	coinmodel "github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/retry"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// Client is the market data feed of the binance futures exchange.
type Client struct {
	api       exchange
	serve     serve
	converter model.Converter
	reconnect retry.Policy
}

// NewClient creates a new feed client.
func NewClient(client *futures.Client) *Client {
	return &Client{
		api:       newFuturesAPI(client),
		serve:     futures.WsCombinedKlineServe,
		converter: model.NewConverter(),
		reconnect: retry.DefaultPolicy(),
	}
}

// Reconnect sets the backoff between socket reconnections.
func (c *Client) Reconnect(policy retry.Policy) *Client {
	c.reconnect = policy
	return c
}

// Historical returns the last klines of the instrument.
// The last one might still be open.
func (c *Client) Historical(ctx context.Context, coin coinmodel.Coin, interval api.Interval, limit int) ([]coinmodel.Bar, error) {
	klines, err := c.api.Klines(ctx, c.converter.Coin.Pair(coin), string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("could not get klines for %s: %w", coin, classify(err))
	}
	bars := make([]coinmodel.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := model.FromKline(coin, k)
		if err != nil {
			return nil, fmt.Errorf("could not parse kline: %w", err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// Stream serves the final klines of the instruments from the combined socket.
// The socket is re-opened with backoff when it drops, until the context is done.
func (c *Client) Stream(ctx context.Context, coins []coinmodel.Coin, interval api.Interval) (<-chan coinmodel.Bar, error) {
	pairs := make(map[string]string)
	for _, coin := range coins {
		pairs[c.converter.Coin.Pair(coin)] = string(interval)
	}
	out := make(chan coinmodel.Bar)
	b := &backoff.Backoff{
		Min:    c.reconnect.Min,
		Max:    c.reconnect.Max,
		Factor: c.reconnect.Factor,
		Jitter: true,
	}
	lock := new(sync.Mutex)
	handler := func(event *futures.WsKlineEvent) {
		bar, final, err := model.FromWsKline(c.converter.Coin, event)
		if err != nil {
			log.Error().Err(err).Str("symbol", event.Symbol).Msg("could not parse kline")
			return
		}
		if !final {
			return
		}
		lock.Lock()
		b.Reset()
		lock.Unlock()
		select {
		case out <- bar:
		case <-ctx.Done():
		}
	}
	errHandler := func(err error) {
		log.Warn().Err(err).Str("exchange", string(api.Binance)).Msg("kline socket")
	}

	done, stop, err := c.serve(pairs, handler, errHandler)
	if err != nil {
		return nil, fmt.Errorf("could not open kline socket: %w", classify(err))
	}
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				close(stop)
				<-done
				log.Info().Int("pairs", len(pairs)).Msg("kline socket closed")
				return
			case <-done:
			}
			for {
				lock.Lock()
				attempt := b.Attempt()
				wait := b.Duration()
				lock.Unlock()
				log.Warn().
					Dur("wait", wait).
					Float64("attempt", attempt).
					Msg("kline socket dropped")
				if err := retry.Sleep(ctx, wait); err != nil {
					return
				}
				done, stop, err = c.serve(pairs, handler, errHandler)
				if err == nil {
					break
				}
				log.Error().Err(err).Msg("could not re-open kline socket")
			}
		}
	}()
	return out, nil
}

var _ api.Feed = (*Client)(nil)

