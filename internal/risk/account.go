package risk

import (
	"fmt"
	"sync"

	"github.com/drakos74/futures-bot/internal/model"
)

// Account holds the balance and the risk reserved by open or pending positions.
// All reads and writes go through a single account level lock.
type Account struct {
	lock     *sync.Mutex
	balance  float64
	reserved map[model.Coin]float64
}

// NewAccount creates a new account with the given balance.
func NewAccount(balance float64) *Account {
	return &Account{
		lock:     new(sync.Mutex),
		balance:  balance,
		reserved: make(map[model.Coin]float64),
	}
}

// Balance returns the current balance.
func (a *Account) Balance() float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.balance
}

// Exposure returns the risk reserved for the instrument and in total.
func (a *Account) Exposure(coin model.Coin) (float64, float64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.reserved[coin], a.total()
}

func (a *Account) total() float64 {
	total := 0.0
	for _, r := range a.reserved {
		total += r
	}
	return total
}

// reserve runs the sizing function against a consistent view of the balance and the exposure
// and stores the risk it returns for the instrument.
func (a *Account) reserve(coin model.Coin, size func(balance, exposure float64, open bool) (float64, error)) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	_, open := a.reserved[coin]
	risk, err := size(a.balance, a.total(), open)
	if err != nil {
		return err
	}
	a.reserved[coin] = risk
	return nil
}

// Commit scales the reservation of the instrument to the filled part of the requested quantity.
func (a *Account) Commit(coin model.Coin, requested, filled float64) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	r, ok := a.reserved[coin]
	if !ok {
		return fmt.Errorf("no reservation for '%s'", coin)
	}
	if requested <= 0 || filled <= 0 {
		delete(a.reserved, coin)
		return nil
	}
	if filled < requested {
		a.reserved[coin] = r * filled / requested
	}
	return nil
}

// Restore reserves the risk of a position opened before the account was created.
func (a *Account) Restore(coin model.Coin, risk float64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.reserved[coin] = risk
}

// Release drops the reservation of the instrument.
func (a *Account) Release(coin model.Coin) {
	a.lock.Lock()
	defer a.lock.Unlock()
	delete(a.reserved, coin)
}

// Settle books the realised profit or loss and releases the reservation of the instrument.
func (a *Account) Settle(coin model.Coin, pnl float64) float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	delete(a.reserved, coin)
	a.balance += pnl
	return a.balance
}

// Charge deducts trading costs from the balance.
func (a *Account) Charge(amount float64) float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.balance -= amount
	return a.balance
}
