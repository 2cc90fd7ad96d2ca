package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drakos74/futures-bot/client/binance"
	"github.com/drakos74/futures-bot/client/local"
	"github.com/drakos74/futures-bot/infra/config"
	coinbacktest "github.com/drakos74/futures-bot/internal/backtest"
	"github.com/drakos74/futures-bot/internal/classifier"
	"github.com/drakos74/futures-bot/internal/engine"
	"github.com/drakos74/futures-bot/internal/execution"
	"github.com/drakos74/futures-bot/internal/ledger"
	"github.com/drakos74/futures-bot/internal/metrics"
	"github.com/drakos74/futures-bot/internal/predictor"
	"github.com/drakos74/futures-bot/internal/risk"
	"github.com/drakos74/futures-bot/internal/signal"
	"github.com/drakos74/futures-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

const reportDir = "backtest"

// newFuser loads the configured predictors.
// The rule predictor stands in for the primary model when none is configured.
func newFuser(cfg *config.Config) (*signal.Fuser, error) {
	primary := signal.Source{
		ID:        "rule",
		Predictor: predictor.NewRule(cfg.Signal.Oversold, cfg.Signal.Overbought),
	}
	if cfg.Model != "" {
		forest, err := predictor.LoadForest(cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("could not load primary model: %w", err)
		}
		primary = signal.Source{ID: "forest", Predictor: forest}
	}
	var secondary signal.Source
	if cfg.Secondary != "" {
		forest, err := predictor.LoadForest(cfg.Secondary)
		if err != nil {
			return nil, fmt.Errorf("could not load secondary model: %w", err)
		}
		secondary = signal.Source{ID: "vector", Predictor: forest}
	}
	fuser := signal.NewFuser(cfg.Signal, primary, secondary)
	ec := cfg.Engine()
	for _, coin := range ec.Coins {
		if err := fuser.Supports(ec.Pair(coin).Mode); err != nil {
			return nil, fmt.Errorf("invalid strategy for '%s': %w", coin, err)
		}
	}
	return fuser, nil
}

func live(ctx context.Context, cfg *config.Config, fuser *signal.Fuser, m *metrics.Metrics) error {
	client, exchange, err := binance.New(cfg.Binance)
	if err != nil {
		return err
	}
	shard, err := cfg.Storage.Shard(storage.LedgerDir)
	if err != nil {
		return err
	}
	positions, err := ledger.New(string(cfg.Binance.Account), shard)
	if err != nil {
		return err
	}
	account := risk.NewAccount(cfg.Risk.Balance)
	executor := execution.NewEngine(cfg.Execution, exchange, client)
	loop := engine.NewLoop(cfg.Engine(), client, exchange, fuser, account, executor, positions).
		WithMetrics(m).
		WithIndicators(cfg.Indicators).
		WithClassifier(classifier.New(cfg.Classifier))
	log.Info().
		Strs("coins", cfg.Coins).
		Str("interval", string(cfg.Interval)).
		Bool("testnet", cfg.Binance.Testnet).
		Float64("balance", cfg.Risk.Balance).
		Msg("starting live trading")
	return loop.Run(ctx)
}

func backtest(ctx context.Context, cfg *config.Config, fuser *signal.Fuser) error {
	history, err := cfg.Storage.Shard(storage.HistoryDir)
	if err != nil {
		return err
	}
	persistence, err := history(string(binance.Name))
	if err != nil {
		return err
	}
	feed := local.NewFeed().
		WithUpstream(binance.Public(cfg.Binance)).
		WithPersistence(persistence)

	bt, err := coinbacktest.New(cfg.Backtest, cfg.Engine(), feed, fuser, cfg.Indicators)
	if err != nil {
		return err
	}
	report, err := bt.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Float64("initial", report.Initial).
		Float64("final", report.Final).
		Float64("pnl", report.PnL).
		Int("trades", report.Trades).
		Float64("win-rate", report.WinRate).
		Float64("sharpe", report.Sharpe).
		Float64("max-drawdown", report.MaxDrawdown).
		Msg("backtest")

	reports, err := cfg.Storage.Shard(reportDir)
	if err != nil {
		return err
	}
	store, err := reports(string(cfg.Interval))
	if err != nil {
		return err
	}
	return store.Store(storage.Key{
		Hash:  time.Now().Unix(),
		Pair:  strings.Join(cfg.Coins, "-"),
		Label: "report",
	}, report)
}
