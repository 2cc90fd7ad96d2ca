package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/classifier"
	"github.com/drakos74/futures-bot/internal/execution"
	"github.com/drakos74/futures-bot/internal/indicator"
	"github.com/drakos74/futures-bot/internal/ledger"
	"github.com/drakos74/futures-bot/internal/metrics"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/retry"
	"github.com/drakos74/futures-bot/internal/risk"
	"github.com/drakos74/futures-bot/internal/signal"
	cointime "github.com/drakos74/futures-bot/internal/time"
	"github.com/rs/zerolog/log"
)

// Outcome is the result of a single cycle for an instrument.
type Outcome string

const (
	Skipped  Outcome = "skipped"
	Held     Outcome = "hold"
	Rejected Outcome = "rejected"
	Exited   Outcome = "exited"
	Filled   Outcome = "filled"
	Partial  Outcome = "partial"
	Failed   Outcome = "failed"
)

// Loop drives the per-instrument pipeline from market data to execution.
type Loop struct {
	config     Config
	feed       api.Feed
	gateway    api.Gateway
	indicators *indicator.Engine
	htf        *indicator.Engine
	classifier *classifier.Classifier
	fuser      *signal.Fuser
	account    *risk.Account
	gate       *risk.Gate
	executor   *execution.Engine
	ledger     *ledger.Ledger
	metrics    *metrics.Metrics
	machines   map[model.Coin]*machine
	triggers   map[model.Coin]chan struct{}
	streaming  *atomic.Bool
	now        func() time.Time
}

// NewLoop creates the control loop for the configured instruments.
func NewLoop(config Config,
	feed api.Feed,
	gateway api.Gateway,
	fuser *signal.Fuser,
	account *risk.Account,
	executor *execution.Engine,
	positions *ledger.Ledger) *Loop {
	l := &Loop{
		config:     config,
		feed:       feed,
		gateway:    gateway,
		indicators: indicator.NewEngine(string(config.Interval), indicator.DefaultConfig()),
		htf:        indicator.NewEngine(string(config.HTFInterval), indicator.DefaultConfig()),
		classifier: classifier.New(classifier.DefaultConfig()),
		fuser:      fuser,
		account:    account,
		gate:       risk.NewGate(account),
		executor:   executor,
		ledger:     positions,
		metrics:    metrics.Void(),
		streaming:  new(atomic.Bool),
		now:        time.Now,
	}
	l.init()
	l.restore()
	return l
}

func (l *Loop) init() {
	l.machines = make(map[model.Coin]*machine, len(l.config.Coins))
	l.triggers = make(map[model.Coin]chan struct{}, len(l.config.Coins))
	for _, coin := range l.config.Coins {
		l.machines[coin] = newMachine(coin, l.metrics)
		l.triggers[coin] = make(chan struct{}, 1)
	}
}

// restore reserves the risk of the positions loaded from the ledger.
// The risk is the stop distance in atr units, as sized by the gate.
func (l *Loop) restore() {
	for _, p := range l.ledger.Positions() {
		params := l.config.Pair(p.Coin).Params
		risk := p.Value()
		if p.StopLoss > 0 && params.RiskMultipleStop > 0 {
			risk = p.Quantity * math.Abs(p.EntryPrice-p.StopLoss) / params.RiskMultipleStop
		}
		l.account.Restore(p.Coin, risk)
		log.Info().
			Str("coin", string(p.Coin)).
			Str("position", p.String()).
			Float64("risk", risk).
			Msg("restored position")
	}
}

// WithMetrics defines the metrics to record the loop activity.
func (l *Loop) WithMetrics(m *metrics.Metrics) *Loop {
	l.metrics = m
	l.init()
	return l
}

// WithIndicators defines the indicator windows for both timeframes.
func (l *Loop) WithIndicators(config indicator.Config) *Loop {
	l.indicators = indicator.NewEngine(string(l.config.Interval), config)
	l.htf = indicator.NewEngine(string(l.config.HTFInterval), config)
	return l
}

// WithClassifier defines the regime classifier.
func (l *Loop) WithClassifier(c *classifier.Classifier) *Loop {
	l.classifier = c
	return l
}

// WithClock defines the time source, which decides which bars are closed.
func (l *Loop) WithClock(now func() time.Time) *Loop {
	l.now = now
	return l
}

// State returns the current state of the instrument.
func (l *Loop) State(coin model.Coin) (State, bool) {
	m, ok := l.machines[coin]
	if !ok {
		return "", false
	}
	return m.current(), true
}

// Decision returns the latest decision for the instrument.
func (l *Loop) Decision(coin model.Coin) (model.Decision, bool) {
	m, ok := l.machines[coin]
	if !ok {
		return model.Decision{}, false
	}
	return m.last()
}

// Features returns the latest features of the instrument on the base timeframe.
func (l *Loop) Features(coin model.Coin) (model.Features, bool) {
	return l.indicators.Snapshot(coin)
}

// Notify triggers a cycle for the instrument, unless one is already pending.
func (l *Loop) Notify(coin model.Coin) {
	ch, ok := l.triggers[coin]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Setup sets the leverage of every instrument.
func (l *Loop) Setup(ctx context.Context) error {
	var errs []error
	for _, coin := range l.config.Coins {
		leverage := l.config.Pair(coin).Params.Leverage
		if leverage <= 0 {
			continue
		}
		err := retry.Do(ctx, l.config.Fetch, "set-leverage", func(ctx context.Context, attempt int) error {
			return l.gateway.SetLeverage(ctx, coin, leverage)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("could not set leverage for %s: %w", coin, err))
			continue
		}
		log.Info().Str("coin", string(coin)).Int("leverage", leverage).Msg("leverage set")
	}
	return errors.Join(errs...)
}

// Run starts one worker per instrument and blocks until the context is done.
// Cycles are triggered by the polling ticker and, if streaming, by every new closed bar.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Setup(ctx); err != nil {
		log.Error().Err(err).Msg("could not set up instruments")
	}

	wg := new(sync.WaitGroup)
	if l.config.Stream {
		bars, err := l.feed.Stream(ctx, l.config.Coins, l.config.Interval)
		if err != nil {
			log.Error().Err(err).Msg("could not start stream, falling back to polling")
		} else {
			l.streaming.Store(true)
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.ingest(ctx, bars)
			}()
		}
	}

	for _, coin := range l.config.Coins {
		wg.Add(1)
		go func(coin model.Coin) {
			defer wg.Done()
			l.work(ctx, coin)
		}(coin)
	}
	wg.Wait()
	log.Info().Msg("control loop stopped")
	return nil
}

// ingest is the only writer of the base timeframe while streaming.
// It warms up the instruments from the history, then forwards the streamed bars,
// back-filling from the history whenever the stream skipped bars.
func (l *Loop) ingest(ctx context.Context, stream <-chan model.Bar) {
	span, err := l.config.Interval.Duration()
	if err != nil {
		log.Error().Err(err).Str("interval", string(l.config.Interval)).Msg("could not start ingestion")
		return
	}
	bars := make(chan model.Bar)
	go func() {
		defer close(bars)
		sent := make(map[model.Coin]time.Time, len(l.config.Coins))
		send := func(bar model.Bar) bool {
			if t, ok := sent[bar.Coin]; ok && !bar.Time.After(t) {
				return true
			}
			select {
			case <-ctx.Done():
				return false
			case bars <- bar:
				sent[bar.Coin] = bar.Time
				return true
			}
		}
		backfill := func(coin model.Coin, before time.Time) bool {
			var history []model.Bar
			err := retry.Do(ctx, l.config.Fetch, "backfill", func(ctx context.Context, attempt int) error {
				var err error
				history, err = l.closed(ctx, coin, l.config.Interval, l.config.History, l.now())
				return err
			})
			if err != nil {
				log.Warn().Err(err).Str("coin", string(coin)).Msg("could not back-fill")
				return ctx.Err() == nil
			}
			for _, bar := range history {
				if !before.IsZero() && !bar.Time.Before(before) {
					break
				}
				if !send(bar) {
					return false
				}
			}
			return true
		}

		for _, coin := range l.config.Coins {
			if !backfill(coin, time.Time{}) {
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case bar, ok := <-stream:
				if !ok {
					return
				}
				if t, ok := sent[bar.Coin]; ok && bar.Time.Sub(t) > span {
					log.Warn().
						Str("coin", string(bar.Coin)).
						Time("last", t).
						Time("bar", bar.Time).
						Msg("gap in stream")
					if !backfill(bar.Coin, bar.Time) {
						return
					}
				}
				if !send(bar) {
					return
				}
			}
		}
	}()
	l.indicators.Ingest(ctx, bars, func(bar model.Bar, features model.Features) {
		l.Notify(bar.Coin)
	})
}

func (l *Loop) work(ctx context.Context, coin model.Coin) {
	ticker := time.NewTicker(l.config.Polling)
	defer ticker.Stop()
	// first cycle right away
	l.Notify(coin)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-l.triggers[coin]:
		}
		l.Step(ctx, coin)
	}
}

// Step runs a single cycle for the instrument.
func (l *Loop) Step(ctx context.Context, coin model.Coin) Outcome {
	m, ok := l.machines[coin]
	if !ok {
		log.Error().Str("coin", string(coin)).Msg("unknown instrument")
		return Skipped
	}
	outcome := l.cycle(retry.WithObserver(ctx, m), m)
	l.metrics.Cycle(string(coin), string(outcome))
	return outcome
}

func (l *Loop) cycle(ctx context.Context, m *machine) Outcome {
	coin := m.coin
	pair := l.config.Pair(coin)
	defer func() {
		if m.current() != Idle {
			m.must(Idle)
		}
	}()

	m.must(Fetching)
	bar, err := l.fetch(ctx, m)
	if err != nil {
		log.Warn().Err(err).Str("coin", string(coin)).Msg("skipping cycle")
		return Skipped
	}
	if closed, ok, err := l.ledger.Check(bar); err != nil {
		log.Error().Err(err).Str("coin", string(coin)).Msg("could not check position")
	} else if ok {
		l.settle(ctx, closed)
	}

	m.must(Deciding)
	features, _ := l.indicators.Snapshot(coin)
	trend := model.Neutral
	if htf, ok := l.htf.Snapshot(coin); ok {
		trend = l.classifier.Trend(htf)
	}
	regime := l.classifier.Regime(features)
	decision, err := l.fuser.Fuse(features, regime, trend, pair.Mode)
	m.decided(decision)
	if err != nil {
		event := log.Warn()
		if errors.Is(err, api.ErrFeatureNotReady) {
			event = log.Debug()
		}
		event.Err(err).Str("coin", string(coin)).Msg("holding")
	}
	l.metrics.Decision(string(coin), decision.Signal.String(), decision.Source)

	m.must(RiskCheck)
	if decision.Signal == model.HoldSignal {
		return Held
	}
	if position, ok := l.ledger.Get(coin); ok {
		if position.Type == decision.Signal.Type() {
			l.metrics.Rejection(string(coin), string(risk.PositionOpen))
			log.Debug().Str("coin", string(coin)).Str("position", position.String()).Msg("position already open")
			return Rejected
		}
		m.must(Executing)
		return l.exit(ctx, position, bar)
	}

	atr, _ := features.Get(model.ATR)
	accept, err := l.gate.Evaluate(risk.Request{
		Coin:   coin,
		Signal: decision.Signal,
		ATR:    atr,
		Price:  bar.Close,
		Params: pair.Params,
	})
	if err != nil {
		var rejection risk.Rejection
		if errors.As(err, &rejection) {
			l.metrics.Rejection(string(coin), string(rejection.Reason))
		}
		log.Info().Err(err).
			Str("coin", string(coin)).
			Str("signal", decision.Signal.String()).
			Str("source", decision.Source).
			Msg("decision rejected")
		return Rejected
	}

	m.must(Executing)
	return l.enter(ctx, accept, pair)
}

// fetch updates both timeframes and returns the latest closed bar.
// While streaming, the base timeframe is written by the ingestion only and just read here.
func (l *Loop) fetch(ctx context.Context, m *machine) (model.Bar, error) {
	coin := m.coin
	now := l.now()
	if !l.streaming.Load() {
		err := retry.Do(ctx, l.config.Fetch, "fetch", func(ctx context.Context, attempt int) error {
			return l.load(ctx, l.indicators, coin, l.config.Interval, l.config.History, now)
		})
		if err != nil {
			return model.Bar{}, err
		}
	}
	bar, ok := l.indicators.Last(coin)
	if !ok {
		return model.Bar{}, fmt.Errorf("no closed bars for %s: %w", coin, api.ErrDataUnavailable)
	}

	if span, err := l.config.HTFInterval.Duration(); err == nil && !now.Before(m.htf) {
		err := retry.Do(ctx, l.config.Fetch, "fetch-htf", func(ctx context.Context, attempt int) error {
			return l.load(ctx, l.htf, coin, l.config.HTFInterval, l.config.HTFHistory, now)
		})
		if err != nil {
			log.Warn().Err(err).Str("coin", string(coin)).Msg("could not refresh higher timeframe")
		} else if last, ok := l.htf.Last(coin); ok {
			// next refresh once the following bar has closed
			m.htf = last.Time.Add(2 * span)
		}
	}
	return bar, nil
}

// load fetches the recent bars and pushes the closed ones that are new to the engine.
func (l *Loop) load(ctx context.Context, engine *indicator.Engine, coin model.Coin, interval api.Interval, limit int, now time.Time) error {
	bars, err := l.closed(ctx, coin, interval, limit, now)
	if err != nil {
		return err
	}
	last, ok := engine.Last(coin)
	for _, bar := range bars {
		if ok && !bar.Time.After(last.Time) {
			continue
		}
		engine.Update(bar)
	}
	return nil
}

// closed fetches the recent bars and keeps the ones that have closed by now.
func (l *Loop) closed(ctx context.Context, coin model.Coin, interval api.Interval, limit int, now time.Time) ([]model.Bar, error) {
	span, err := interval.Duration()
	if err != nil {
		return nil, fmt.Errorf("invalid interval '%s': %w", interval, err)
	}
	bars, err := l.feed.Historical(ctx, coin, interval, limit)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, api.Retryable(fmt.Errorf("empty response for %s %s: %w", coin, interval, api.ErrDataUnavailable))
	}
	closed := make([]model.Bar, 0, len(bars))
	for _, bar := range bars {
		if cointime.Closed(bar.Time, span, now) {
			closed = append(closed, bar)
		}
	}
	return closed, nil
}

func (l *Loop) enter(ctx context.Context, accept risk.Accept, pair Pair) Outcome {
	coin := accept.Coin
	plan, err := l.executor.Prepare(ctx, execution.Request{
		Coin:       coin,
		Type:       accept.Type,
		Quantity:   accept.Quantity,
		StopLoss:   accept.StopLoss,
		TakeProfit: accept.TakeProfit,
		Algorithm:  pair.Algorithm,
	})
	if err != nil {
		l.account.Release(coin)
		log.Error().Err(err).Str("coin", string(coin)).Msg("could not plan execution")
		return Failed
	}

	result := l.executor.Execute(ctx, plan)
	l.metrics.Execution(string(coin), string(plan.Algorithm), string(result.Status))
	if err := l.account.Commit(coin, accept.Quantity, result.Filled); err != nil {
		log.Error().Err(err).Str("coin", string(coin)).Msg("could not commit reservation")
	}
	if err := result.Err(); err != nil {
		log.Error().Err(err).Str("coin", string(coin)).Msg("execution incomplete")
	}
	if result.Filled <= 0 {
		return Failed
	}

	fill := result.Fill()
	l.account.Charge(fill.Fee)
	if _, err := l.ledger.Open(fill, accept.StopLoss, accept.TakeProfit); err != nil {
		log.Error().Err(err).Str("coin", string(coin)).Msg("could not record position")
	} else if result.StopOrderID != "" || result.TakeProfitOrderID != "" {
		if err := l.ledger.Protect(coin, result.StopOrderID, result.TakeProfitOrderID); err != nil {
			log.Error().Err(err).Str("coin", string(coin)).Msg("could not record protective orders")
		}
	}
	if result.Status == execution.Partial {
		return Partial
	}
	return Filled
}

// exit closes the open position at market.
func (l *Loop) exit(ctx context.Context, position model.Position, bar model.Bar) Outcome {
	coin := position.Coin
	plan, err := l.executor.Plan(execution.Request{
		Coin:      coin,
		Type:      position.Type.Inv(),
		Quantity:  position.Quantity,
		Algorithm: model.Immediate,
	}, nil, l.now())
	if err != nil {
		log.Error().Err(err).Str("coin", string(coin)).Msg("could not plan exit")
		return Failed
	}
	result := l.executor.Execute(ctx, plan)
	l.metrics.Execution(string(coin), string(plan.Algorithm), string(result.Status))
	if result.Status != execution.Filled {
		log.Error().Err(result.Err()).Str("coin", string(coin)).Msg("could not exit position")
		return Failed
	}
	fill := result.Fill()
	l.account.Charge(fill.Fee)
	closed, err := l.ledger.Close(coin, fill.Price, bar.Time, ledger.Signal)
	if err != nil {
		log.Error().Err(err).Str("coin", string(coin)).Msg("could not close position")
		return Failed
	}
	l.settle(ctx, closed)
	return Exited
}

// settle books the closed position and cancels the protective orders left behind for it.
func (l *Loop) settle(ctx context.Context, closed model.ClosedPosition) {
	// the orders must go even if the loop is stopping
	ctx = context.WithoutCancel(ctx)
	for _, id := range closed.Orders() {
		err := retry.Do(ctx, l.config.Fetch, "cancel", func(ctx context.Context, attempt int) error {
			return l.gateway.CancelOrder(ctx, closed.Coin, id)
		})
		if err != nil {
			log.Error().Err(err).
				Str("coin", string(closed.Coin)).
				Str("order-id", id).
				Msg("could not cancel protective order")
		}
	}
	balance := l.account.Settle(closed.Coin, closed.PnL)
	l.metrics.Realized(string(closed.Coin), closed.PnL)
	log.Info().
		Str("coin", string(closed.Coin)).
		Str("reason", closed.Reason).
		Float64("pnl", closed.PnL).
		Float64("balance", balance).
		Msg("position settled")
}
