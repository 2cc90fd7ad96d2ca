package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/signal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {

	type test struct {
		yaml string
		err  bool
	}

	tests := map[string]test{
		"minimal": {
			yaml: "coins: [BTCUSDT]",
		},
		"no-coins": {
			yaml: "mode: live",
			err:  true,
		},
		"invalid-mode": {
			yaml: "coins: [BTCUSDT]\nmode: paper",
			err:  true,
		},
		"invalid-risk": {
			yaml: "coins: [BTCUSDT]\nrisk:\n  risk_percentage: 2",
			err:  true,
		},
		"invalid-interval": {
			yaml: "coins: [BTCUSDT]\ninterval: often",
			err:  true,
		},
		"unknown-pair": {
			yaml: "coins: [BTCUSDT]\npairs:\n  ETHUSDT:\n    leverage: 5",
			err:  true,
		},
		"invalid-pair": {
			yaml: "coins: [BTCUSDT]\npairs:\n  BTCUSDT:\n    strategy: magic",
			err:  true,
		},
		"short-htf-history": {
			yaml: "coins: [BTCUSDT]\nhtf_history: 150",
			err:  true,
		},
		"htf-history-for-custom-ma": {
			yaml: "coins: [BTCUSDT]\nhtf_history: 150\nindicators:\n  long_ma: 120",
		},
		"malformed": {
			yaml: "coins: [BTCUSDT",
			err:  true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Live, c.Mode)
			assert.Equal(t, time.Minute, c.Polling)
			assert.True(t, c.Stream)
			assert.Equal(t, 20, c.Risk.Leverage)
			assert.Equal(t, 0.01, c.Risk.RiskPercentage)
			assert.Equal(t, model.Smart, c.Execution.Algorithm)
			assert.Equal(t, 200*time.Millisecond, c.Execution.SmartPause)
			assert.Equal(t, signal.Hybrid, c.Signal.Mode)
			assert.GreaterOrEqual(t, c.HTFHistory, c.Indicators.LongMA)
			assert.Equal(t, 3, c.Fetch.Attempts)
			assert.Equal(t, "json", c.Storage.Type)
			assert.Equal(t, 2112, c.Metrics.Port)
			assert.Equal(t, 0.01, c.Backtest.RiskFree)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(filepath.Join(".", "futures-bot.yaml"))
	require.NoError(t, err)

	ec := c.Engine()
	assert.Equal(t, []model.Coin{model.BTC, model.ETH}, ec.Coins)

	btc := ec.Pair(model.BTC)
	assert.Equal(t, signal.Single, btc.Mode)
	assert.Equal(t, model.Smart, btc.Algorithm)
	assert.Equal(t, 20, btc.Params.Leverage)
	assert.Equal(t, 0.01, btc.Params.RiskPercentage)
	assert.Equal(t, 6.0, btc.Params.RewardMultipleTarget)

	eth := ec.Pair(model.ETH)
	assert.Equal(t, signal.Confluence, eth.Mode)
	assert.Equal(t, model.Smart, eth.Algorithm)
	assert.Equal(t, 10, eth.Params.Leverage)
	assert.Equal(t, 0.005, eth.Params.RiskPercentage)
	assert.Equal(t, 2.0, eth.Params.RiskMultipleStop)

	assert.True(t, c.Binance.Testnet)
	assert.Equal(t, 0.04, c.Binance.Fee)
	assert.Equal(t, 500, ec.HTFHistory)

	_, err = Load("missing.yaml")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer func(level zerolog.Level, logger zerolog.Logger) {
		zerolog.SetGlobalLevel(level)
		log.Logger = logger
	}(zerolog.GlobalLevel(), log.Logger)

	var buf bytes.Buffer
	require.NoError(t, SetupLogging(Log{Level: "warn", Format: "json"}, &buf))
	log.Info().Msg("hidden")
	log.Warn().Str("coin", "BTCUSDT").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"coin":"BTCUSDT"`)

	assert.Error(t, SetupLogging(Log{Level: "loud"}, &buf))
}

func TestStorage_Shard(t *testing.T) {
	dir := t.TempDir()
	shard, err := Storage{Type: "json", Dir: dir}.Shard("ledger")
	require.NoError(t, err)
	st, err := shard("main")
	require.NoError(t, err)
	assert.NotNil(t, st)

	shard, err = Storage{Type: "memory"}.Shard("ledger")
	require.NoError(t, err)
	_, err = shard("main")
	require.NoError(t, err)
}
