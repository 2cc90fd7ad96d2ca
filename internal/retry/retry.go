package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// Policy defines a capped exponential backoff with a bounded number of attempts.
type Policy struct {
	Attempts int           `yaml:"attempts" default:"3" validate:"min=1"`
	Min      time.Duration `yaml:"min" default:"1s"`
	Max      time.Duration `yaml:"max" default:"30s"`
	Factor   float64       `yaml:"factor" default:"2" validate:"gte=1"`
	Jitter   bool          `yaml:"jitter"`
}

// DefaultPolicy retries three times, starting at one second and doubling.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Min:      time.Second,
		Max:      30 * time.Second,
		Factor:   2,
	}
}

// Observer is notified around the waits between attempts.
type Observer interface {
	Backoff(op string, attempt int, wait time.Duration, err error)
	Resume(op string)
}

type observerKey struct{}

// WithObserver attaches the observer to the context, for every retry running under it.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, o)
}

func observer(ctx context.Context) Observer {
	if o, ok := ctx.Value(observerKey{}).(Observer); ok {
		return o
	}
	return nil
}

func (p Policy) backoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    p.Min,
		Max:    p.Max,
		Factor: p.Factor,
		Jitter: p.Jitter,
	}
}

// Do runs the operation until it succeeds, fails with a non-retryable error,
// the attempts run out or the context is done.
// Only errors marked with api.Retryable are retried.
func Do(ctx context.Context, policy Policy, name string, op func(ctx context.Context, attempt int) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := policy.backoff()
	o := observer(ctx)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s cancelled: %w", name, ctxErr)
		}
		err = op(ctx, attempt)
		if err == nil {
			return nil
		}
		if !api.IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		wait := b.Duration()
		log.Debug().
			Err(err).
			Str("op", name).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("retrying")
		if o != nil {
			o.Backoff(name, attempt+1, wait, err)
		}
		if sleepErr := Sleep(ctx, wait); sleepErr != nil {
			return fmt.Errorf("%s cancelled: %w", name, sleepErr)
		}
		if o != nil {
			o.Resume(name)
		}
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", name, api.ErrRetriesExhausted, attempts, err)
}

// Sleep waits for the given duration or until the context is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
