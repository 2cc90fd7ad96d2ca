package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// Exit reasons for closed positions.
const (
	StopLoss   = "stop_loss"
	TakeProfit = "take_profit"
	Signal     = "signal"
)

// State is the persisted ledger state.
type State struct {
	Positions map[model.Coin]model.Position `json:"positions"`
	Closed    []model.ClosedPosition        `json:"closed"`
	Realized  float64                       `json:"realized"`
}

// Ledger owns the open positions, one per instrument, and the realized profit and loss.
type Ledger struct {
	account   string
	positions map[model.Coin]model.Position
	closed    []model.ClosedPosition
	realized  float64
	storage   storage.Persistence
	lock      *sync.RWMutex
}

// New creates a ledger for the account and loads any previously stored state.
func New(account string, shard storage.Shard) (*Ledger, error) {
	st, err := shard(account)
	if err != nil {
		return nil, fmt.Errorf("could not init storage: %w", err)
	}
	l := &Ledger{
		account:   account,
		positions: make(map[model.Coin]model.Position),
		closed:    make([]model.ClosedPosition, 0),
		storage:   st,
		lock:      new(sync.RWMutex),
	}
	l.load()
	return l, nil
}

func stKey(account string) storage.Key {
	return storage.Key{
		Pair:  account,
		Label: storage.LedgerDir,
	}
}

func (l *Ledger) load() {
	state := State{
		Positions: make(map[model.Coin]model.Position),
	}
	err := l.storage.Load(stKey(l.account), &state)
	if err == nil {
		if state.Positions != nil {
			l.positions = state.Positions
		}
		if state.Closed != nil {
			l.closed = state.Closed
		}
		l.realized = state.Realized
	}
	log.Info().Err(err).
		Str("account", l.account).
		Int("open", len(l.positions)).
		Int("closed", len(l.closed)).
		Float64("realized", l.realized).
		Msg("loaded ledger")
}

// save persists the state. The in-memory state stays authoritative if storing fails.
func (l *Ledger) save() {
	err := l.storage.Store(stKey(l.account), State{
		Positions: l.positions,
		Closed:    l.closed,
		Realized:  l.realized,
	})
	if err != nil {
		log.Error().Err(err).
			Str("account", l.account).
			Msg("could not store ledger")
	}
}

// Open creates the position for the fill with the given protective levels.
// It fails with api.ErrPositionExists if the instrument has an open position, which is left unchanged.
func (l *Ledger) Open(fill model.Fill, stopLoss, takeProfit float64) (model.Position, error) {
	if !(fill.Quantity > 0) || fill.Type == model.NoType {
		return model.Position{}, fmt.Errorf("invalid fill %+v", fill)
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if p, ok := l.positions[fill.Coin]; ok {
		return p, fmt.Errorf("%w: %s", api.ErrPositionExists, p.String())
	}
	position := model.Position{
		Coin:       fill.Coin,
		Type:       fill.Type,
		Quantity:   fill.Quantity,
		EntryPrice: fill.Price,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		OpenedAt:   fill.Time,
	}
	l.positions[fill.Coin] = position
	l.save()
	log.Info().
		Str("account", l.account).
		Str("position", position.String()).
		Msg("opened position")
	return position, nil
}

// Protect records the protective orders of the open position, so that they can be cancelled once it closes.
func (l *Ledger) Protect(coin model.Coin, stopOrderID, takeProfitOrderID string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	p, ok := l.positions[coin]
	if !ok {
		return fmt.Errorf("%w: %s", api.ErrPositionNotFound, coin)
	}
	p.StopOrderID = stopOrderID
	p.TakeProfitOrderID = takeProfitOrderID
	l.positions[coin] = p
	l.save()
	return nil
}

// Close exits the position of the instrument at the given price and realizes its profit or loss.
func (l *Ledger) Close(coin model.Coin, price float64, t time.Time, reason string) (model.ClosedPosition, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.close(coin, price, t, reason)
}

func (l *Ledger) close(coin model.Coin, price float64, t time.Time, reason string) (model.ClosedPosition, error) {
	p, ok := l.positions[coin]
	if !ok {
		return model.ClosedPosition{}, fmt.Errorf("%w: %s", api.ErrPositionNotFound, coin)
	}
	closed := model.ClosedPosition{
		Position:  p,
		ExitPrice: price,
		ClosedAt:  t,
		PnL:       p.PnL(price),
		Reason:    reason,
	}
	delete(l.positions, coin)
	l.closed = append(l.closed, closed)
	l.realized += closed.PnL
	l.save()
	log.Info().
		Str("account", l.account).
		Str("position", p.String()).
		Float64("exit", price).
		Float64("pnl", closed.PnL).
		Str("reason", reason).
		Msg("closed position")
	return closed, nil
}

// Check closes the position of the bar instrument if the bar crossed its stop-loss or take-profit.
// The stop-loss is evaluated first, as the order of the touches within the bar is unknown.
func (l *Ledger) Check(bar model.Bar) (model.ClosedPosition, bool, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	p, ok := l.positions[bar.Coin]
	if !ok {
		return model.ClosedPosition{}, false, nil
	}
	var price float64
	var reason string
	switch p.Type {
	case model.Buy:
		if p.StopLoss > 0 && bar.Low <= p.StopLoss {
			price, reason = p.StopLoss, StopLoss
		} else if p.TakeProfit > 0 && bar.High >= p.TakeProfit {
			price, reason = p.TakeProfit, TakeProfit
		}
	case model.Sell:
		if p.StopLoss > 0 && bar.High >= p.StopLoss {
			price, reason = p.StopLoss, StopLoss
		} else if p.TakeProfit > 0 && bar.Low <= p.TakeProfit {
			price, reason = p.TakeProfit, TakeProfit
		}
	}
	if reason == "" {
		return model.ClosedPosition{}, false, nil
	}
	closed, err := l.close(bar.Coin, price, bar.Time, reason)
	return closed, err == nil, err
}

// Get returns the open position of the instrument.
func (l *Ledger) Get(coin model.Coin) (model.Position, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	p, ok := l.positions[coin]
	return p, ok
}

// Positions returns the open positions ordered by instrument.
func (l *Ledger) Positions() []model.Position {
	l.lock.RLock()
	defer l.lock.RUnlock()
	positions := make([]model.Position, 0, len(l.positions))
	for _, p := range l.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Coin < positions[j].Coin
	})
	return positions
}

// Closed returns the closed positions in closing order.
func (l *Ledger) Closed() []model.ClosedPosition {
	l.lock.RLock()
	defer l.lock.RUnlock()
	closed := make([]model.ClosedPosition, len(l.closed))
	copy(closed, l.closed)
	return closed
}

// Realized returns the total realized profit and loss.
func (l *Ledger) Realized() float64 {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.realized
}
