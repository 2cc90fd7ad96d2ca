package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/drakos74/futures-bot/internal/metrics"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/rs/zerolog/log"
)

// State is the control loop state of an instrument.
type State string

const (
	Idle         State = "IDLE"
	Fetching     State = "FETCHING"
	Deciding     State = "DECIDING"
	RiskCheck    State = "RISK_CHECK"
	Executing    State = "EXECUTING"
	RetryBackoff State = "RETRY_BACKOFF"
)

var transitions = map[State]map[State]bool{
	Idle:         {Fetching: true},
	Fetching:     {Deciding: true, RetryBackoff: true, Idle: true},
	RetryBackoff: {Fetching: true, Executing: true, Idle: true},
	Deciding:     {RiskCheck: true, Idle: true},
	RiskCheck:    {Executing: true, Idle: true},
	Executing:    {RetryBackoff: true, Idle: true},
}

// machine tracks the state of a single instrument.
// It also observes the retries running under its cycle, to reflect the backoff waits.
type machine struct {
	coin     model.Coin
	lock     *sync.Mutex
	state    State
	previous State
	since    time.Time
	htf      time.Time
	decision *model.Decision
	metrics  *metrics.Metrics
}

func newMachine(coin model.Coin, m *metrics.Metrics) *machine {
	m.State(string(coin), string(Idle))
	return &machine{
		coin:    coin,
		lock:    new(sync.Mutex),
		state:   Idle,
		since:   time.Now(),
		metrics: m,
	}
}

func (m *machine) current() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

func (m *machine) to(next State) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.move(next)
}

func (m *machine) move(next State) error {
	if !transitions[m.state][next] {
		return fmt.Errorf("invalid transition for %s: %s -> %s", m.coin, m.state, next)
	}
	log.Debug().
		Str("coin", string(m.coin)).
		Str("from", string(m.state)).
		Str("to", string(next)).
		Dur("after", time.Since(m.since)).
		Msg("transition")
	m.previous = m.state
	m.state = next
	m.since = time.Now()
	m.metrics.State(string(m.coin), string(next))
	return nil
}

func (m *machine) decided(d model.Decision) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.decision = &d
}

func (m *machine) last() (model.Decision, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.decision == nil {
		return model.Decision{}, false
	}
	return *m.decision, true
}

// must moves to the next state and logs invalid transitions.
func (m *machine) must(next State) {
	if err := m.to(next); err != nil {
		log.Error().Err(err).Msg("state machine")
	}
}

func (m *machine) Backoff(op string, attempt int, wait time.Duration, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == RetryBackoff {
		return
	}
	if err := m.move(RetryBackoff); err != nil {
		log.Error().Err(err).Str("op", op).Msg("state machine")
		return
	}
	log.Warn().
		Err(err).
		Str("coin", string(m.coin)).
		Str("op", op).
		Int("attempt", attempt).
		Dur("wait", wait).
		Msg("backing off")
}

func (m *machine) Resume(op string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state != RetryBackoff {
		return
	}
	if err := m.move(m.previous); err != nil {
		log.Error().Err(err).Str("op", op).Msg("state machine")
	}
}
