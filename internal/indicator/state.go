package indicator

import (
	"math"
	"sync"

	"github.com/drakos74/futures-bot/internal/buffer"
	"github.com/drakos74/futures-bot/internal/model"
)

var nan = math.NaN()

// state is the rolling indicator state of a single instrument.
type state struct {
	lock     *sync.Mutex
	config   Config
	coin     model.Coin
	bars     int
	last     model.Bar
	features model.Features

	closes  *buffer.Window
	returns *buffer.Window

	tr *buffer.Window

	dmTR    *buffer.Window
	plusDM  *buffer.Window
	minusDM *buffer.Window
	dx      *buffer.Window

	gain *buffer.Wilder
	loss *buffer.Wilder

	fast   *buffer.EMA
	slow   *buffer.EMA
	signal *buffer.EMA

	bollinger *buffer.Window

	stochastic *buffer.Extrema
	stochK     *buffer.Window

	shortMA *buffer.Window
	longMA  *buffer.Window

	obv    float64
	pv     float64
	volume float64

	tenkan *buffer.Extrema
	kijun  *buffer.Extrema
	senkou *buffer.Extrema
	spanA  *buffer.Window
	spanB  *buffer.Window
}

func newState(coin model.Coin, config Config) *state {
	return &state{
		lock:       new(sync.Mutex),
		config:     config,
		coin:       coin,
		closes:     buffer.NewWindow(config.Momentum + 1),
		returns:    buffer.NewWindow(config.Volatility),
		tr:         buffer.NewWindow(config.ATR),
		dmTR:       buffer.NewWindow(config.ADX),
		plusDM:     buffer.NewWindow(config.ADX),
		minusDM:    buffer.NewWindow(config.ADX),
		dx:         buffer.NewWindow(config.ADX),
		gain:       buffer.NewWilder(config.RSI),
		loss:       buffer.NewWilder(config.RSI),
		fast:       buffer.NewEMA(config.MACDFast),
		slow:       buffer.NewEMA(config.MACDSlow),
		signal:     buffer.NewEMA(config.MACDSignal),
		bollinger:  buffer.NewWindow(config.Bollinger),
		stochastic: buffer.NewExtrema(config.StochasticK),
		stochK:     buffer.NewWindow(config.StochasticD),
		shortMA:    buffer.NewWindow(config.ShortMA),
		longMA:     buffer.NewWindow(config.LongMA),
		tenkan:     buffer.NewExtrema(config.Tenkan),
		kijun:      buffer.NewExtrema(config.Kijun),
		senkou:     buffer.NewExtrema(config.Senkou),
		spanA:      buffer.NewWindow(config.Displacement + 1),
		spanB:      buffer.NewWindow(config.Displacement + 1),
	}
}

// push updates the rolling state with the next bar and returns the new features.
// It must be called with the lock held and only for bars newer than the last one.
func (s *state) push(bar model.Bar) model.Features {
	first := s.bars == 0
	prev := s.last
	s.bars++
	s.last = bar

	f := model.NewFeatures(s.coin, bar.Time, s.bars)
	f.Set(model.Close, bar.Close)

	// returns and volatility
	if !first {
		r := ratio(bar.Close-prev.Close, prev.Close)
		f.Set(model.Returns, r)
		s.returns.Push(r)
		if std, ok := s.returns.SampleStDev(); ok {
			f.Set(model.Volatility, std)
		}
	}

	// momentum
	s.closes.Push(bar.Close)
	if c, ok := s.closes.Ago(s.config.Momentum); ok {
		f.Set(model.Momentum, bar.Close-c)
	}

	// true range and average true range
	tr := bar.High - bar.Low
	if !first {
		tr = math.Max(tr, math.Max(math.Abs(bar.High-prev.Close), math.Abs(bar.Low-prev.Close)))
	}
	s.tr.Push(tr)
	if atr, ok := s.tr.Mean(); ok {
		f.Set(model.ATR, atr)
	}

	// directional movement
	if !first {
		up := bar.High - prev.High
		down := prev.Low - bar.Low
		plus, minus := 0.0, 0.0
		if up > down && up > 0 {
			plus = up
		}
		if down > up && down > 0 {
			minus = down
		}
		s.dmTR.Push(tr)
		s.plusDM.Push(plus)
		s.minusDM.Push(minus)
		s.dx.Push(s.directionalIndex())
		if adx, ok := s.dx.Mean(); ok {
			f.Set(model.ADX, adx)
		}
	}

	// relative strength
	if !first {
		change := bar.Close - prev.Close
		s.gain.Push(math.Max(change, 0))
		s.loss.Push(math.Max(-change, 0))
		g, ok := s.gain.Value()
		l, _ := s.loss.Value()
		if ok {
			// 100 - 100/(1+g/l) without dividing by a zero loss
			f.Set(model.RSI, ratio(100*g, g+l))
		}
	}

	// moving average convergence divergence
	s.fast.Push(bar.Close)
	s.slow.Push(bar.Close)
	fast, _ := s.fast.Value()
	if slow, ok := s.slow.Value(); ok {
		macd := fast - slow
		f.Set(model.MACD, macd)
		s.signal.Push(macd)
		if signal, ok := s.signal.Value(); ok {
			f.Set(model.MACDSignal, signal)
			f.Set(model.MACDDiff, macd-signal)
		}
	}

	// bollinger bands
	s.bollinger.Push(bar.Close)
	if mean, ok := s.bollinger.Mean(); ok {
		std, _ := s.bollinger.SampleStDev()
		f.Set(model.BBMiddle, mean)
		f.Set(model.BBUpper, mean+s.config.BollingerK*std)
		f.Set(model.BBLower, mean-s.config.BollingerK*std)
	}

	// stochastic oscillator
	s.stochastic.Push(bar.High, bar.Low)
	if low, ok := s.stochastic.Min(); ok {
		rng, _ := s.stochastic.Range()
		k := ratio(100*(bar.Close-low), rng)
		f.Set(model.StochasticK, k)
		s.stochK.Push(k)
		if d, ok := s.stochK.Mean(); ok {
			f.Set(model.StochasticD, d)
		}
	}

	// moving averages
	s.shortMA.Push(bar.Close)
	if ma, ok := s.shortMA.Mean(); ok {
		f.Set(model.ShortMA, ma)
	}
	s.longMA.Push(bar.Close)
	if ma, ok := s.longMA.Mean(); ok {
		f.Set(model.LongMA, ma)
	}

	// on balance volume
	if !first {
		switch {
		case bar.Close > prev.Close:
			s.obv += bar.Volume
		case bar.Close < prev.Close:
			s.obv -= bar.Volume
		}
	}
	f.Set(model.OBV, s.obv)

	// volume weighted average price
	s.pv += bar.Typical() * bar.Volume
	s.volume += bar.Volume
	f.Set(model.VWAP, ratio(s.pv, s.volume))

	// ichimoku
	s.tenkan.Push(bar.High, bar.Low)
	s.kijun.Push(bar.High, bar.Low)
	s.senkou.Push(bar.High, bar.Low)
	tenkan, tOK := s.tenkan.Mid()
	if tOK {
		f.Set(model.TenkanSen, tenkan)
	}
	kijun, kOK := s.kijun.Mid()
	if kOK {
		f.Set(model.KijunSen, kijun)
	}
	spanA := nan
	if tOK && kOK {
		spanA = (tenkan + kijun) / 2
	}
	s.spanA.Push(spanA)
	if a, ok := s.spanA.Ago(s.config.Displacement); ok {
		f.Set(model.SenkouSpanA, a)
	}
	spanB, ok := s.senkou.Mid()
	if !ok {
		spanB = nan
	}
	s.spanB.Push(spanB)
	if b, ok := s.spanB.Ago(s.config.Displacement); ok {
		f.Set(model.SenkouSpanB, b)
	}

	s.features = f
	return f.Copy()
}

// directionalIndex computes the dx value from the current directional movement sums.
func (s *state) directionalIndex() float64 {
	tr, ok := s.dmTR.Sum()
	if !ok {
		return nan
	}
	plus, _ := s.plusDM.Sum()
	minus, _ := s.minusDM.Sum()
	plusDI := ratio(100*plus, tr)
	minusDI := ratio(100*minus, tr)
	return ratio(100*math.Abs(plusDI-minusDI), plusDI+minusDI)
}

// ratio divides the two numbers, returning NaN for a zero denominator.
func ratio(a, b float64) float64 {
	if b == 0 {
		return nan
	}
	return a / b
}
