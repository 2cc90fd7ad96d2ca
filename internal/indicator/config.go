package indicator

import (
	"github.com/drakos74/futures-bot/internal/model"
)

// Config defines the window lengths of the indicators.
type Config struct {
	ATR          int     `yaml:"atr" default:"14" validate:"min=1"`
	ADX          int     `yaml:"adx" default:"14" validate:"min=1"`
	RSI          int     `yaml:"rsi" default:"14" validate:"min=1"`
	MACDFast     int     `yaml:"macd_fast" default:"12" validate:"min=1"`
	MACDSlow     int     `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal   int     `yaml:"macd_signal" default:"9" validate:"min=1"`
	Bollinger    int     `yaml:"bollinger" default:"20" validate:"min=2"`
	BollingerK   float64 `yaml:"bollinger_k" default:"2" validate:"gt=0"`
	StochasticK  int     `yaml:"stochastic_k" default:"14" validate:"min=1"`
	StochasticD  int     `yaml:"stochastic_d" default:"3" validate:"min=1"`
	ShortMA      int     `yaml:"short_ma" default:"50" validate:"min=1"`
	LongMA       int     `yaml:"long_ma" default:"200" validate:"gtfield=ShortMA"`
	Volatility   int     `yaml:"volatility" default:"21" validate:"min=2"`
	Momentum     int     `yaml:"momentum" default:"21" validate:"min=1"`
	Tenkan       int     `yaml:"tenkan" default:"9" validate:"min=1"`
	Kijun        int     `yaml:"kijun" default:"26" validate:"min=1"`
	Senkou       int     `yaml:"senkou" default:"52" validate:"min=1"`
	Displacement int     `yaml:"displacement" default:"26" validate:"min=1"`
}

// DefaultConfig returns the standard indicator windows.
func DefaultConfig() Config {
	return Config{
		ATR:          14,
		ADX:          14,
		RSI:          14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		Bollinger:    20,
		BollingerK:   2,
		StochasticK:  14,
		StochasticD:  3,
		ShortMA:      50,
		LongMA:       200,
		Volatility:   21,
		Momentum:     21,
		Tenkan:       9,
		Kijun:        26,
		Senkou:       52,
		Displacement: 26,
	}
}

// Warmup returns the number of bars after which the feature is defined.
// Zero ranges or zero denominators may still leave a feature undefined after its warm-up.
func (c Config) Warmup(feature model.Feature) int {
	switch feature {
	case model.Close, model.OBV, model.VWAP:
		return 1
	case model.Returns:
		return 2
	case model.Volatility:
		return c.Volatility + 1
	case model.Momentum:
		return c.Momentum + 1
	case model.ATR:
		return c.ATR
	case model.ADX:
		// directional movement needs a previous bar
		return 2 * c.ADX
	case model.RSI:
		return c.RSI + 1
	case model.MACD:
		return c.MACDSlow
	case model.MACDSignal, model.MACDDiff:
		return c.MACDSlow + c.MACDSignal - 1
	case model.BBUpper, model.BBMiddle, model.BBLower:
		return c.Bollinger
	case model.StochasticK:
		return c.StochasticK
	case model.StochasticD:
		return c.StochasticK + c.StochasticD - 1
	case model.ShortMA:
		return c.ShortMA
	case model.LongMA:
		return c.LongMA
	case model.TenkanSen:
		return c.Tenkan
	case model.KijunSen:
		return c.Kijun
	case model.SenkouSpanA:
		return maxInt(c.Tenkan, c.Kijun) + c.Displacement
	case model.SenkouSpanB:
		return c.Senkou + c.Displacement
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
