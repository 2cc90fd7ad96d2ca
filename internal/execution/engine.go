package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Status is the outcome of an execution.
type Status string

const (
	Filled  Status = "filled"
	Partial Status = "partial"
	Failed  Status = "failed"
)

// SliceResult is the outcome of a single child order.
type SliceResult struct {
	Order    model.ChildOrder `json:"order"`
	Fill     model.Fill       `json:"fill"`
	Attempts int              `json:"attempts"`
	Err      error            `json:"-"`
}

// Result is the outcome of an execution plan.
type Result struct {
	Plan              model.ExecutionPlan `json:"plan"`
	Slices            []SliceResult       `json:"slices"`
	Status            Status              `json:"status"`
	Filled            float64             `json:"filled"`
	AvgPrice          float64             `json:"avg_price"`
	Fee               float64             `json:"fee"`
	Cancelled         bool                `json:"cancelled"`
	StopOrderID       string              `json:"stop_order_id"`
	TakeProfitOrderID string              `json:"take_profit_order_id"`
	ProtectErr        error               `json:"-"`
}

// Err returns the execution error matching the status, if any.
func (r Result) Err() error {
	var cause error
	for _, s := range r.Slices {
		if s.Err != nil {
			cause = s.Err
		}
	}
	if cause == nil {
		cause = context.Canceled
	}
	switch r.Status {
	case Partial:
		return fmt.Errorf("%w: filled %f of %f: %w", api.ErrExecutionPartial, r.Filled, r.Plan.Quantity, cause)
	case Failed:
		return fmt.Errorf("%w: %w", api.ErrExecutionFailed, cause)
	}
	return nil
}

// Fill returns the aggregated fill of the execution.
func (r Result) Fill() model.Fill {
	t := time.Time{}
	for _, s := range r.Slices {
		if s.Fill.Time.After(t) {
			t = s.Fill.Time
		}
	}
	return model.Fill{
		OrderID:  r.Plan.ID,
		ClientID: r.Plan.ID,
		Coin:     r.Plan.Coin,
		Type:     r.Plan.Type,
		Quantity: r.Filled,
		Price:    r.AvgPrice,
		Fee:      r.Fee,
		Time:     t,
	}
}

// Engine plans and executes orders against the gateway.
type Engine struct {
	config  Config
	gateway api.Gateway
	feed    api.Feed
	now     func() time.Time
}

// NewEngine creates a new execution engine.
// The feed provides the volume profile for the vwap algorithm and may be nil otherwise.
func NewEngine(config Config, gateway api.Gateway, feed api.Feed) *Engine {
	return &Engine{
		config:  config,
		gateway: gateway,
		feed:    feed,
		now:     time.Now,
	}
}

// Prepare builds the plan for the request, fetching the volume profile if needed.
func (e *Engine) Prepare(ctx context.Context, request Request) (model.ExecutionPlan, error) {
	algorithm := request.Algorithm
	if algorithm == "" {
		algorithm = e.config.Algorithm
	}
	var volumes []float64
	if algorithm == model.VWAP && e.feed != nil {
		bars, err := e.feed.Historical(ctx, request.Coin, e.config.VWAPInterval, e.config.VWAPBuckets)
		if err != nil {
			log.Warn().Err(err).
				Str("coin", string(request.Coin)).
				Msg("could not fetch volume profile")
		}
		for _, bar := range bars {
			volumes = append(volumes, bar.Volume)
		}
	}
	return e.Plan(request, volumes, e.now())
}

// Execute submits the child orders of the plan in order, waiting for each one's start time.
// Failed slices are retried with the same client id, filled slices are never submitted again.
// Cancelling the context stops the remaining slices.
// Protective orders are placed for whatever got filled.
func (e *Engine) Execute(ctx context.Context, plan model.ExecutionPlan) Result {
	result := Result{
		Plan:   plan,
		Slices: make([]SliceResult, 0, len(plan.Orders)),
	}
	filled := decimal.Zero
	notional := decimal.Zero
	fee := decimal.Zero

	for _, order := range plan.Orders {
		if err := retry.Sleep(ctx, order.NotBefore.Sub(e.now())); err != nil {
			result.Cancelled = true
			break
		}
		slice := e.submit(ctx, order)
		result.Slices = append(result.Slices, slice)
		if slice.Err != nil {
			if errors.Is(slice.Err, context.Canceled) || errors.Is(slice.Err, context.DeadlineExceeded) {
				result.Cancelled = true
			}
			log.Error().Err(slice.Err).
				Str("coin", string(plan.Coin)).
				Str("plan", plan.ID).
				Int("slice", order.Index).
				Int("attempts", slice.Attempts).
				Msg("slice failed")
			// the remaining slices are dropped, the next cycle decides again
			break
		}
		q := decimal.NewFromFloat(slice.Fill.Quantity)
		filled = filled.Add(q)
		notional = notional.Add(q.Mul(decimal.NewFromFloat(slice.Fill.Price)))
		fee = fee.Add(decimal.NewFromFloat(slice.Fill.Fee))
	}

	result.Filled = filled.InexactFloat64()
	result.Fee = fee.InexactFloat64()
	if filled.IsPositive() {
		result.AvgPrice = notional.Div(filled).InexactFloat64()
	}
	switch {
	case !filled.IsPositive():
		result.Status = Failed
	case len(result.Slices) == len(plan.Orders) && result.Slices[len(result.Slices)-1].Err == nil:
		result.Status = Filled
	default:
		result.Status = Partial
	}

	if filled.IsPositive() && e.config.Protect {
		e.protect(ctx, &result)
	}

	log.Info().
		Str("coin", string(plan.Coin)).
		Str("plan", plan.ID).
		Str("algorithm", string(plan.Algorithm)).
		Str("status", string(result.Status)).
		Float64("quantity", plan.Quantity).
		Float64("filled", result.Filled).
		Float64("price", result.AvgPrice).
		Bool("cancelled", result.Cancelled).
		Msg("execution completed")
	return result
}

func (e *Engine) submit(ctx context.Context, order model.ChildOrder) SliceResult {
	slice := SliceResult{Order: order}
	request := model.Order{
		ClientID: order.ClientID,
		Coin:     order.Coin,
		Type:     order.Type,
		OType:    model.Market,
		Quantity: order.Quantity,
	}
	slice.Err = retry.Do(ctx, e.config.Retry, fmt.Sprintf("slice-%d", order.Index), func(ctx context.Context, attempt int) error {
		slice.Attempts = attempt + 1
		fill, err := e.gateway.SubmitMarketOrder(ctx, request)
		if err != nil {
			return err
		}
		slice.Fill = fill
		return nil
	})
	return slice
}

// protect places the stop-loss and take-profit orders on the opposite side of the filled quantity.
// Failures are recorded on the result and never undo the fill.
func (e *Engine) protect(ctx context.Context, result *Result) {
	plan := result.Plan
	// protective orders go through even if the slices got cancelled
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if plan.StopLoss > 0 {
		order := model.Order{
			ClientID:  uuid.New().String(),
			Coin:      plan.Coin,
			Type:      plan.Type.Inv(),
			OType:     model.StopMarket,
			Quantity:  result.Filled,
			StopPrice: plan.StopLoss,
		}
		err := retry.Do(ctx, e.config.Retry, "stop-loss", func(ctx context.Context, attempt int) error {
			id, err := e.gateway.SubmitStopOrder(ctx, order)
			result.StopOrderID = id
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("could not place stop loss: %w", err))
		}
	}
	if plan.TakeProfit > 0 {
		order := model.Order{
			ClientID:  uuid.New().String(),
			Coin:      plan.Coin,
			Type:      plan.Type.Inv(),
			OType:     model.TakeProfitMarket,
			Quantity:  result.Filled,
			StopPrice: plan.TakeProfit,
		}
		err := retry.Do(ctx, e.config.Retry, "take-profit", func(ctx context.Context, attempt int) error {
			id, err := e.gateway.SubmitTakeProfitOrder(ctx, order)
			result.TakeProfitOrderID = id
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("could not place take profit: %w", err))
		}
	}
	result.ProtectErr = errors.Join(errs...)
	if result.ProtectErr != nil {
		log.Error().Err(result.ProtectErr).
			Str("coin", string(plan.Coin)).
			Str("plan", plan.ID).
			Msg("could not protect position")
	}
}
