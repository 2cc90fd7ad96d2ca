package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/drakos74/futures-bot/client/binance"
	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/backtest"
	"github.com/drakos74/futures-bot/internal/classifier"
	"github.com/drakos74/futures-bot/internal/engine"
	"github.com/drakos74/futures-bot/internal/execution"
	"github.com/drakos74/futures-bot/internal/indicator"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/retry"
	"github.com/drakos74/futures-bot/internal/signal"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	Live     = "live"
	Backtest = "backtest"
)

// Config is the configuration of the bot.
type Config struct {
	Mode        string            `yaml:"mode" default:"live" validate:"oneof=live backtest"`
	Coins       []string          `yaml:"coins" validate:"required,min=1,dive,required"`
	Interval    api.Interval      `yaml:"interval" default:"1m" validate:"required"`
	HTFInterval api.Interval      `yaml:"htf_interval" default:"4h" validate:"required"`
	History     int               `yaml:"history" default:"500" validate:"min=1"`
	HTFHistory  int               `yaml:"htf_history" default:"500" validate:"min=1"`
	Polling     time.Duration     `yaml:"polling" default:"60s" validate:"gt=0"`
	Stream      bool              `yaml:"stream" default:"true"`
	Model       string            `yaml:"model"`
	Secondary   string            `yaml:"secondary"`
	Risk        Risk              `yaml:"risk"`
	Pairs       map[string]Pair   `yaml:"pairs" validate:"dive"`
	Fetch       retry.Policy      `yaml:"fetch"`
	Signal      signal.Config     `yaml:"signal"`
	Indicators  indicator.Config  `yaml:"indicators"`
	Classifier  classifier.Config `yaml:"classifier"`
	Execution   execution.Config  `yaml:"execution"`
	Binance     binance.Config    `yaml:"binance"`
	Backtest    backtest.Config   `yaml:"backtest"`
	Storage     Storage           `yaml:"storage"`
	Metrics     Metrics           `yaml:"metrics"`
	Log         Log               `yaml:"log"`
}

// Risk holds the account balance and the default risk parameters.
type Risk struct {
	Balance              float64 `yaml:"balance" default:"1000" validate:"gt=0"`
	RiskPercentage       float64 `yaml:"risk_percentage" default:"0.01" validate:"gt=0,lte=1"`
	RiskMultipleStop     float64 `yaml:"risk_multiple_stop" default:"2" validate:"gt=0"`
	RewardMultipleTarget float64 `yaml:"reward_multiple_target" default:"6" validate:"gt=0"`
	MinRewardToRisk      float64 `yaml:"min_reward_to_risk" default:"3" validate:"gte=0"`
	Leverage             int     `yaml:"leverage" default:"20" validate:"min=1,max=125"`
}

// Pair overrides the defaults for a single instrument.
type Pair struct {
	Leverage       *int             `yaml:"leverage" validate:"omitempty,min=1,max=125"`
	RiskPercentage *float64         `yaml:"risk_percentage" validate:"omitempty,gt=0,lte=1"`
	Strategy       *signal.Mode     `yaml:"strategy" validate:"omitempty,oneof=single confluence hybrid vector"`
	Algorithm      *model.Algorithm `yaml:"algorithm" validate:"omitempty,oneof=immediate smart twap vwap"`
}

// Metrics defines the prometheus endpoint.
type Metrics struct {
	Enabled bool `yaml:"enabled" default:"true"`
	Port    int  `yaml:"port" default:"2112" validate:"min=1,max=65535"`
}

var validate = validator.New()

// Load reads the yaml config file, fills in the defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes the yaml config, fills in the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("could not set defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("mode", c.Mode).
		Strs("coins", c.Coins).
		Int("pairs", len(c.Pairs)).
		Msg("loaded config")
	return &c, nil
}

// Validate checks the field constraints and the intervals.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, interval := range []api.Interval{c.Interval, c.HTFInterval, c.Execution.VWAPInterval} {
		if _, err := interval.Duration(); err != nil {
			return fmt.Errorf("invalid interval '%s': %w", interval, err)
		}
	}
	if c.HTFHistory < c.Indicators.LongMA {
		return fmt.Errorf("htf history %d is shorter than the long moving average %d", c.HTFHistory, c.Indicators.LongMA)
	}
	for coin := range c.Pairs {
		if _, ok := c.coin(coin); !ok {
			return fmt.Errorf("pair '%s' is not in the traded coins %v", coin, c.Coins)
		}
	}
	return nil
}

// coin finds the traded instrument, ignoring the case.
func (c *Config) coin(name string) (model.Coin, bool) {
	for _, cc := range c.Coins {
		if strings.EqualFold(cc, name) {
			return model.Coin(cc), true
		}
	}
	return model.NoCoin, false
}

// Engine returns the control loop setup, with the pair overrides applied on top of the defaults.
func (c *Config) Engine() engine.Config {
	coins := model.Coins(c.Coins...)
	ec := engine.DefaultConfig(coins...)
	ec.Interval = c.Interval
	ec.HTFInterval = c.HTFInterval
	ec.History = c.History
	ec.HTFHistory = c.HTFHistory
	ec.Polling = c.Polling
	ec.Stream = c.Stream
	ec.Fetch = c.Fetch
	ec.Default = engine.Pair{
		Mode:      c.Signal.Mode,
		Algorithm: c.Execution.Algorithm,
		Params: model.RiskParameters{
			RiskPercentage:       c.Risk.RiskPercentage,
			RiskMultipleStop:     c.Risk.RiskMultipleStop,
			RewardMultipleTarget: c.Risk.RewardMultipleTarget,
			MinRewardToRisk:      c.Risk.MinRewardToRisk,
			Leverage:             c.Risk.Leverage,
		},
	}
	for name, override := range c.Pairs {
		coin, ok := c.coin(name)
		if !ok {
			continue
		}
		pair := ec.Default
		if override.Leverage != nil {
			pair.Params.Leverage = *override.Leverage
		}
		if override.RiskPercentage != nil {
			pair.Params.RiskPercentage = *override.RiskPercentage
		}
		if override.Strategy != nil {
			pair.Mode = *override.Strategy
		}
		if override.Algorithm != nil {
			pair.Algorithm = *override.Algorithm
		}
		ec.Pairs[coin] = pair
	}
	return ec
}
