package model

import (
	"encoding/json"
	"fmt"
)

// Coin identifies a traded futures instrument e.g. BTCUSDT.
type Coin string

const (
	// NoCoin is an undefined instrument.
	NoCoin Coin = ""
	// BTC is the bitcoin perpetual.
	BTC Coin = "BTCUSDT"
	// ETH is the ethereum perpetual.
	ETH Coin = "ETHUSDT"
)

// Coins converts the given symbols into instruments.
func Coins(symbols ...string) []Coin {
	cc := make([]Coin, len(symbols))
	for i, s := range symbols {
		cc[i] = Coin(s)
	}
	return cc
}

// Type defines the side of an order or position, buy or sell.
type Type byte

const (
	// NoType defines a missing side.
	NoType Type = iota
	// Buy defines a buy (long) side.
	Buy
	// Sell defines a sell (short) side.
	Sell
)

// SignedType returns the type based on the given sign.
func SignedType(v float64) Type {
	if v > 0 {
		return Buy
	} else if v < 0 {
		return Sell
	}
	return NoType
}

// Sign returns the appropriate sign for the given type for mathematical operations.
func (t Type) Sign() float64 {
	switch t {
	case Buy:
		return 1.0
	case Sell:
		return -1.0
	}
	return 0.0
}

// Inv inverts the type action.
func (t Type) Inv() Type {
	switch t {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return NoType
}

func (t Type) String() string {
	switch t {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return ""
}

// MarshalJSON writes the side as its name.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the side name.
func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "buy":
		*t = Buy
	case "sell":
		*t = Sell
	case "":
		*t = NoType
	default:
		return fmt.Errorf("unknown type '%s'", s)
	}
	return nil
}
