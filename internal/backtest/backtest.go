package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/drakos74/futures-bot/client/local"
	"github.com/drakos74/futures-bot/internal/engine"
	"github.com/drakos74/futures-bot/internal/execution"
	"github.com/drakos74/futures-bot/internal/indicator"
	"github.com/drakos74/futures-bot/internal/ledger"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/risk"
	"github.com/drakos74/futures-bot/internal/signal"
	"github.com/drakos74/futures-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// Config defines the replay.
type Config struct {
	Balance  float64 `yaml:"balance" default:"1000" validate:"gt=0"`
	Slippage float64 `yaml:"slippage" default:"0.05" validate:"gte=0"`
	Fee      float64 `yaml:"fee" default:"0.1" validate:"gte=0"`
	RiskFree float64 `yaml:"risk_free" default:"0.01"`
	Bars     int     `yaml:"bars" default:"1500" validate:"min=1"`
}

// DefaultConfig returns the standard replay setup.
func DefaultConfig() Config {
	return Config{
		Balance:  1000,
		Slippage: local.DefaultSlippage,
		Fee:      local.DefaultFee,
		RiskFree: 0.01,
		Bars:     1500,
	}
}

// Backtest replays historical bars through the control loop against the paper exchange.
type Backtest struct {
	config   Config
	loop     engine.Config
	feed     *local.Feed
	exchange *local.Exchange
	account  *risk.Account
	ledger   *ledger.Ledger
	engine   *engine.Loop
	now      time.Time
}

// New creates a backtest for the loop setup.
// Orders always execute immediately, as slices cannot be paced against replayed time.
func New(config Config, loop engine.Config, feed *local.Feed, fuser *signal.Fuser, indicators indicator.Config) (*Backtest, error) {
	loop.Default.Algorithm = model.Immediate
	pairs := make(map[model.Coin]engine.Pair, len(loop.Pairs))
	for coin, pair := range loop.Pairs {
		pair.Algorithm = model.Immediate
		pairs[coin] = pair
	}
	loop.Pairs = pairs

	positions, err := ledger.New("backtest", storage.MemoryShard())
	if err != nil {
		return nil, fmt.Errorf("could not create ledger: %w", err)
	}
	b := &Backtest{
		config:   config,
		loop:     loop,
		feed:     feed,
		exchange: local.NewExchange(config.Slippage, config.Fee),
		account:  risk.NewAccount(config.Balance),
		ledger:   positions,
	}
	exec := execution.DefaultConfig()
	exec.Algorithm = model.Immediate
	b.engine = engine.NewLoop(loop, feed, b.exchange, fuser, b.account, execution.NewEngine(exec, b.exchange, feed), positions).
		WithIndicators(indicators).
		WithClock(func() time.Time {
			return b.now
		})
	return b, nil
}

// timeline collects the base bars of all instruments in time order.
func (b *Backtest) timeline(ctx context.Context) ([]model.Bar, error) {
	all := make([]model.Bar, 0)
	for _, coin := range b.loop.Coins {
		bars, err := b.feed.Historical(ctx, coin, b.loop.Interval, b.config.Bars)
		if err != nil {
			return nil, fmt.Errorf("could not load bars for %s: %w", coin, err)
		}
		all = append(all, bars...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Time.Equal(all[j].Time) {
			return all[i].Coin < all[j].Coin
		}
		return all[i].Time.Before(all[j].Time)
	})
	return all, nil
}

// Run replays every bar once and reports the performance.
func (b *Backtest) Run(ctx context.Context) (Report, error) {
	span, err := b.loop.Interval.Duration()
	if err != nil {
		return Report{}, fmt.Errorf("invalid interval '%s': %w", b.loop.Interval, err)
	}
	bars, err := b.timeline(ctx)
	if err != nil {
		return Report{}, err
	}
	if err := b.engine.Setup(ctx); err != nil {
		return Report{}, fmt.Errorf("could not set up: %w", err)
	}

	report := newReport(b.config.Balance)
	prices := make(map[model.Coin]float64)
	for _, bar := range bars {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		b.feed.Until(bar.Time)
		b.exchange.Observe(bar)
		b.now = bar.Time.Add(span)
		outcome := b.engine.Step(ctx, bar.Coin)
		report.Outcomes[outcome]++

		prices[bar.Coin] = bar.Close
		report.add(b.now, b.equity(prices))
	}

	report.Closed = b.ledger.Closed()
	report.Open = b.ledger.Positions()
	report.finish(b.config.RiskFree)

	log.Info().
		Int("bars", len(bars)).
		Int("trades", report.Trades).
		Float64("pnl", report.PnL).
		Float64("sharpe", report.Sharpe).
		Float64("max-drawdown", report.MaxDrawdown).
		Msg("backtest completed")
	return report, nil
}

// equity marks the open positions to the last prices.
func (b *Backtest) equity(prices map[model.Coin]float64) float64 {
	equity := b.account.Balance()
	for _, p := range b.ledger.Positions() {
		if price, ok := prices[p.Coin]; ok {
			equity += p.PnL(price)
		}
	}
	return equity
}
