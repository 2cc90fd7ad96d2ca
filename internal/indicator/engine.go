package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/drakos74/futures-bot/internal/model"
	"github.com/rs/zerolog/log"
)

// Engine maintains the rolling indicator state for a set of instruments.
// Each instrument is guarded by its own lock, so that readers only ever see completed updates.
type Engine struct {
	name   string
	config Config
	lock   *sync.RWMutex
	states map[model.Coin]*state
}

// NewEngine creates a new indicator engine.
// The name identifies the timeframe in the logs.
func NewEngine(name string, config Config) *Engine {
	return &Engine{
		name:   name,
		config: config,
		lock:   new(sync.RWMutex),
		states: make(map[model.Coin]*state),
	}
}

// Config returns the indicator windows of the engine.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) state(coin model.Coin, create bool) (*state, bool) {
	e.lock.RLock()
	s, ok := e.states[coin]
	e.lock.RUnlock()
	if ok || !create {
		return s, ok
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if s, ok := e.states[coin]; ok {
		return s, true
	}
	s = newState(coin, e.config)
	e.states[coin] = s
	return s, true
}

// Update appends the bar to the instrument state and returns the resulting features.
// Bars that are not newer than the last accepted one, or that are malformed, are ignored
// and the current features are returned with false.
func (e *Engine) Update(bar model.Bar) (model.Features, bool) {
	s, _ := e.state(bar.Coin, true)
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.bars > 0 && !bar.Time.After(s.last.Time) {
		log.Warn().
			Str("engine", e.name).
			Str("coin", string(bar.Coin)).
			Time("time", bar.Time).
			Time("last", s.last.Time).
			Msg("ignoring out of order bar")
		return s.features.Copy(), false
	}

	if !valid(bar) {
		log.Warn().
			Str("engine", e.name).
			Str("coin", string(bar.Coin)).
			Str("bar", fmt.Sprintf("%+v", bar)).
			Msg("ignoring invalid bar")
		return s.features.Copy(), false
	}

	return s.push(bar), true
}

// Snapshot returns a copy of the latest features of the instrument.
func (e *Engine) Snapshot(coin model.Coin) (model.Features, bool) {
	s, ok := e.state(coin, false)
	if !ok {
		return model.Features{}, false
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.bars == 0 {
		return model.Features{}, false
	}
	return s.features.Copy(), true
}

// Last returns the latest accepted bar of the instrument.
func (e *Engine) Last(coin model.Coin) (model.Bar, bool) {
	s, ok := e.state(coin, false)
	if !ok {
		return model.Bar{}, false
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.last, s.bars > 0
}

// Ingest consumes bars from the channel until it closes or the context is done.
// The callback is invoked for every accepted bar.
func (e *Engine) Ingest(ctx context.Context, bars <-chan model.Bar, accepted func(bar model.Bar, features model.Features)) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("engine", e.name).Msg("ingestion stopped")
			return
		case bar, ok := <-bars:
			if !ok {
				log.Info().Str("engine", e.name).Msg("ingestion channel closed")
				return
			}
			features, ok := e.Update(bar)
			if ok && accepted != nil {
				accepted(bar, features)
			}
		}
	}
}

func valid(bar model.Bar) bool {
	for _, v := range []float64{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return bar.High >= bar.Low && bar.Close > 0
}
