package backtest

import (
	"math"
	"time"

	"github.com/drakos74/futures-bot/internal/engine"
	"github.com/drakos74/futures-bot/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is the account equity at a point in time.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Report summarises the replay.
type Report struct {
	Initial     float64                `json:"initial"`
	Final       float64                `json:"final"`
	PnL         float64                `json:"pnl"`
	Trades      int                    `json:"trades"`
	Wins        int                    `json:"wins"`
	WinRate     float64                `json:"win_rate"`
	Sharpe      float64                `json:"sharpe"`
	MaxDrawdown float64                `json:"max_drawdown"`
	Outcomes    map[engine.Outcome]int `json:"outcomes"`
	Equity      []Point                `json:"equity"`
	Closed      []model.ClosedPosition `json:"closed"`
	Open        []model.Position       `json:"open"`
}

func newReport(initial float64) Report {
	return Report{
		Initial:  initial,
		Final:    initial,
		Outcomes: make(map[engine.Outcome]int),
		Equity:   make([]Point, 0),
	}
}

func (r *Report) add(t time.Time, equity float64) {
	r.Equity = append(r.Equity, Point{Time: t, Value: equity})
}

func (r *Report) finish(riskFree float64) {
	values := make([]float64, len(r.Equity))
	for i, p := range r.Equity {
		values[i] = p.Value
	}
	if len(values) > 0 {
		r.Final = values[len(values)-1]
	}
	r.PnL = r.Final - r.Initial
	r.Trades = len(r.Closed)
	for _, c := range r.Closed {
		if c.PnL > 0 {
			r.Wins++
		}
	}
	if r.Trades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Trades)
	}
	r.Sharpe = Sharpe(Returns(values), riskFree)
	r.MaxDrawdown = MaxDrawdown(values)
}

// Returns computes the percentage change between consecutive values.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// Sharpe is the mean excess return over the population deviation of the returns.
// Returns without deviation have a zero ratio.
func Sharpe(returns []float64, riskFree float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, variance := stat.MeanVariance(returns, nil)
	n := float64(len(returns))
	// population deviation
	std := math.Sqrt(variance * (n - 1) / n)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (mean - riskFree) / std
}

// MaxDrawdown is the deepest fall of the values from their running peak, as a negative fraction.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peaks := make([]float64, len(values))
	drawdowns := make([]float64, len(values))
	for i, v := range values {
		peaks[i] = v
		if i > 0 && peaks[i-1] > v {
			peaks[i] = peaks[i-1]
		}
		if peaks[i] != 0 {
			drawdowns[i] = v/peaks[i] - 1
		}
	}
	return floats.Min(drawdowns)
}
