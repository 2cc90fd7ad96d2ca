package execution

import (
	"fmt"
	"time"

	"github.com/drakos74/futures-bot/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is an accepted and sized order to be executed.
type Request struct {
	Coin       model.Coin
	Type       model.Type
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	Algorithm  model.Algorithm
}

// Split divides the total quantity proportionally to the weights.
// Slices are truncated to the given precision and the last one takes the remainder,
// so that they always add up to the total.
func Split(total float64, weights []float64, precision int32) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("no weights to split on")
	}
	sum := decimal.Zero
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %f", w)
		}
		sum = sum.Add(decimal.NewFromFloat(w))
	}
	if !sum.IsPositive() {
		return nil, fmt.Errorf("weights add up to zero")
	}
	t := decimal.NewFromFloat(total)
	parts := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i := 0; i < len(weights)-1; i++ {
		parts[i] = t.Mul(decimal.NewFromFloat(weights[i])).Div(sum).Truncate(precision)
		allocated = allocated.Add(parts[i])
	}
	parts[len(parts)-1] = t.Sub(allocated)
	return parts, nil
}

func equal(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// Plan builds the execution plan for the request.
// The volumes are the historical bucket volumes used by the vwap algorithm.
func (e *Engine) Plan(request Request, volumes []float64, now time.Time) (model.ExecutionPlan, error) {
	if !(request.Quantity > 0) {
		return model.ExecutionPlan{}, fmt.Errorf("invalid quantity %f", request.Quantity)
	}
	if request.Type == model.NoType {
		return model.ExecutionPlan{}, fmt.Errorf("missing order side")
	}
	algorithm := request.Algorithm
	if algorithm == "" {
		algorithm = e.config.Algorithm
	}

	var weights []float64
	var pace time.Duration
	switch algorithm {
	case model.Immediate:
		weights = equal(1)
	case model.Smart:
		weights = equal(e.config.SmartSlices)
		pace = e.config.SmartPause
	case model.TWAP:
		weights = equal(e.config.TWAPSlices)
		pace = e.config.TWAPDuration / time.Duration(e.config.TWAPSlices)
	case model.VWAP:
		span, err := e.config.VWAPInterval.Duration()
		if err != nil {
			return model.ExecutionPlan{}, fmt.Errorf("invalid vwap interval: %w", err)
		}
		pace = span
		weights = volumes
		if len(weights) > e.config.VWAPBuckets {
			weights = weights[len(weights)-e.config.VWAPBuckets:]
		}
		total := 0.0
		for _, v := range weights {
			total += v
		}
		if len(weights) == 0 || !(total > 0) {
			// no volume profile, fall back to even buckets
			weights = equal(e.config.VWAPBuckets)
		}
	default:
		return model.ExecutionPlan{}, fmt.Errorf("unknown algorithm '%s'", algorithm)
	}

	parts, err := Split(request.Quantity, weights, e.config.Precision)
	if err != nil {
		return model.ExecutionPlan{}, fmt.Errorf("could not split quantity: %w", err)
	}

	plan := model.ExecutionPlan{
		ID:         uuid.New().String(),
		Coin:       request.Coin,
		Type:       request.Type,
		Algorithm:  algorithm,
		Quantity:   request.Quantity,
		StopLoss:   request.StopLoss,
		TakeProfit: request.TakeProfit,
		Orders:     make([]model.ChildOrder, 0, len(parts)),
	}
	for i, part := range parts {
		if !part.IsPositive() {
			continue
		}
		plan.Orders = append(plan.Orders, model.ChildOrder{
			Index:     len(plan.Orders),
			ClientID:  uuid.New().String(),
			Coin:      request.Coin,
			Type:      request.Type,
			Quantity:  part.InexactFloat64(),
			NotBefore: now.Add(time.Duration(i) * pace),
		})
	}
	if len(plan.Orders) == 0 {
		return model.ExecutionPlan{}, fmt.Errorf("quantity %f too small for precision %d", request.Quantity, e.config.Precision)
	}
	return plan, nil
}
