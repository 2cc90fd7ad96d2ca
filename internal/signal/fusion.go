package signal

import (
	"fmt"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/rs/zerolog/log"
)

// Mode defines how the signal sources get combined.
type Mode string

const (
	// Single passes through the primary predictor.
	Single Mode = "single"
	// Confluence decides on the indicator votes only.
	Confluence Mode = "confluence"
	// Hybrid feeds the primary vote and the confluence votes to the secondary predictor.
	Hybrid Mode = "hybrid"
	// Vector feeds the raw feature columns to the secondary predictor.
	Vector Mode = "vector"
)

const confluenceSource = "confluence"

// Config defines the fusion parameters.
type Config struct {
	Mode       Mode    `yaml:"mode" default:"hybrid" validate:"oneof=single confluence hybrid vector"`
	VectorSize int     `yaml:"vector_size" default:"28" validate:"min=1"`
	Oversold   float64 `yaml:"oversold" default:"30"`
	Overbought float64 `yaml:"overbought" default:"70" validate:"gtfield=Oversold"`
}

// DefaultConfig returns the standard fusion parameters.
func DefaultConfig() Config {
	return Config{
		Mode:       Hybrid,
		VectorSize: DefaultVectorSize,
		Oversold:   30,
		Overbought: 70,
	}
}

// Fuser combines the predictors and the confluence votes into a single decision.
type Fuser struct {
	config    Config
	primary   Source
	secondary Source
}

// NewFuser creates a new signal fuser.
// Predictors may be left empty, in which case the modes needing them always hold.
func NewFuser(config Config, primary, secondary Source) *Fuser {
	if config.VectorSize <= 0 {
		config.VectorSize = DefaultVectorSize
	}
	return &Fuser{
		config:    config,
		primary:   primary,
		secondary: secondary,
	}
}

// Supports checks if the fuser has the predictors the mode needs.
func (f *Fuser) Supports(mode Mode) error {
	switch mode {
	case Confluence:
		return nil
	case Single:
		if !f.primary.ok() {
			return fmt.Errorf("mode '%s' needs a primary predictor", mode)
		}
	case Vector:
		if !f.secondary.ok() {
			return fmt.Errorf("mode '%s' needs a secondary predictor", mode)
		}
	case Hybrid:
		if !f.primary.ok() || !f.secondary.ok() {
			return fmt.Errorf("mode '%s' needs a primary and a secondary predictor", mode)
		}
	default:
		return fmt.Errorf("unknown mode '%s'", mode)
	}
	return nil
}

// Votes counts the buy and sell confluence votes of the features and the trend.
func (f *Fuser) Votes(features model.Features, trend model.Trend) (buy int, sell int) {
	return Votes(features, trend, f.config.Oversold, f.config.Overbought)
}

// Votes counts the buy and sell votes of the moving average cross, the macd histogram,
// the rsi extremes and the trend bias. Features that are not ready cast no vote.
func Votes(features model.Features, trend model.Trend, oversold, overbought float64) (buy int, sell int) {
	short, sOK := features.Get(model.ShortMA)
	long, lOK := features.Get(model.LongMA)
	if sOK && lOK {
		if short > long {
			buy++
		} else if short < long {
			sell++
		}
	}
	if diff, ok := features.Get(model.MACDDiff); ok {
		if diff > 0 {
			buy++
		} else if diff < 0 {
			sell++
		}
	}
	if rsi, ok := features.Get(model.RSI); ok {
		if rsi < oversold {
			buy++
		} else if rsi > overbought {
			sell++
		}
	}
	switch trend.Bias() {
	case 1:
		buy++
	case -1:
		sell++
	}
	return buy, sell
}

// Fuse combines the signal sources for the features according to the mode.
// Any failure results in a hold decision together with the cause.
func (f *Fuser) Fuse(features model.Features, regime model.Regime, trend model.Trend, mode Mode) (model.Decision, error) {
	decision, err := f.fuse(features, trend, mode)
	decision.Coin = features.Coin
	decision.Regime = regime
	decision.Trend = trend
	if err != nil {
		decision.Signal = model.HoldSignal
		decision.Reason = err.Error()
	}
	return decision, err
}

func (f *Fuser) fuse(features model.Features, trend model.Trend, mode Mode) (model.Decision, error) {
	if err := f.Supports(mode); err != nil {
		return model.Decision{Source: string(mode)}, err
	}

	required := FeatureColumns
	if mode == Confluence {
		required = ConfluenceColumns
	}
	if missing := features.Missing(required...); len(missing) > 0 {
		return model.Decision{Source: string(mode)},
			fmt.Errorf("%w: %v", api.ErrFeatureNotReady, missing)
	}

	buy, sell := f.Votes(features, trend)

	switch mode {
	case Confluence:
		signal := model.HoldSignal
		if buy > sell {
			signal = model.BuySignal
		} else if sell > buy {
			signal = model.SellSignal
		}
		return model.Decision{
			Signal: signal,
			Source: confluenceSource,
			Buy:    buy,
			Sell:   sell,
		}, nil
	case Single:
		x, _ := features.Vector(FeatureColumns...)
		signal, err := predict(f.primary, x)
		return model.Decision{
			Signal: signal,
			Source: f.primary.ID,
			Buy:    buy,
			Sell:   sell,
		}, err
	case Vector:
		x, _ := features.Vector(FeatureColumns...)
		signal, err := predict(f.secondary, f.fit(features.Coin, x))
		return model.Decision{
			Signal: signal,
			Source: f.secondary.ID,
			Buy:    buy,
			Sell:   sell,
		}, err
	}

	// hybrid
	x, _ := features.Vector(FeatureColumns...)
	vote, err := predict(f.primary, x)
	if err != nil {
		return model.Decision{Source: f.primary.ID, Buy: buy, Sell: sell}, err
	}
	v := append([]float64{
		float64(vote),
		float64(buy),
		float64(sell),
		float64(trend.Bias()),
	}, x...)
	signal, err := predict(f.secondary, f.fit(features.Coin, v))
	return model.Decision{
		Signal: signal,
		Source: fmt.Sprintf("%s+%s", f.primary.ID, f.secondary.ID),
		Buy:    buy,
		Sell:   sell,
	}, err
}

func (f *Fuser) fit(coin model.Coin, x []float64) []float64 {
	v, truncated, cleaned := Fit(x, f.config.VectorSize)
	if truncated {
		log.Warn().
			Str("coin", string(coin)).
			Int("size", len(x)).
			Int("expected", f.config.VectorSize).
			Msg("truncating predictor input")
	}
	if cleaned {
		log.Warn().
			Str("coin", string(coin)).
			Floats64("input", x).
			Msg("replaced non-finite predictor input")
	}
	return v
}

func predict(source Source, x []float64) (model.Signal, error) {
	v, err := source.Predictor.Predict(x)
	if err != nil {
		return model.HoldSignal, fmt.Errorf("predictor '%s' failed: %w", source.ID, err)
	}
	signal, err := model.SignalOf(v)
	if err != nil {
		return model.HoldSignal, fmt.Errorf("predictor '%s' returned invalid output: %w", source.ID, err)
	}
	return signal, nil
}
