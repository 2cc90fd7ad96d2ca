package binance

import (
	"fmt"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/drakos74/futures-bot/internal/account"
	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/retry"
)

const (
	Name = api.Binance
	// DefaultFee is the futures taker fee percentage.
	DefaultFee = 0.04
)

// Config defines the connection to the exchange.
type Config struct {
	Account   account.Name `yaml:"account" default:"main" validate:"required"`
	Testnet   bool         `yaml:"testnet"`
	Fee       float64      `yaml:"fee" default:"0.04" validate:"gte=0"`
	Env       []string     `yaml:"env"`
	Reconnect retry.Policy `yaml:"reconnect"`
}

// New creates the feed and the gateway for the account.
// The credentials are read from <ACCOUNT>_BINANCE_KEY and <ACCOUNT>_BINANCE_SECRET.
func New(cfg Config) (*Client, *Exchange, error) {
	secret, err := account.Credentials(cfg.Account, Name, cfg.Env...)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load credentials: %w", err)
	}
	futures.UseTestnet = cfg.Testnet
	client := futures.NewClient(secret.Key, secret.Secret)
	return NewClient(client).Reconnect(cfg.Reconnect), NewExchange(client, cfg.Fee), nil
}

// Public creates a feed on the public market data endpoints, without credentials.
func Public(cfg Config) *Client {
	futures.UseTestnet = cfg.Testnet
	return NewClient(futures.NewClient("", "")).Reconnect(cfg.Reconnect)
}
