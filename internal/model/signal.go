package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Signal is the trade decision for an instrument.
type Signal int

const (
	// SellSignal opens a short.
	SellSignal Signal = -1
	// HoldSignal does nothing.
	HoldSignal Signal = 0
	// BuySignal opens a long.
	BuySignal Signal = 1
)

// SignalOf maps a predictor output to a signal.
func SignalOf(v int) (Signal, error) {
	switch v {
	case -1:
		return SellSignal, nil
	case 0:
		return HoldSignal, nil
	case 1:
		return BuySignal, nil
	}
	return HoldSignal, fmt.Errorf("invalid signal value %d", v)
}

// Type returns the order side for the signal.
func (s Signal) Type() Type {
	switch s {
	case BuySignal:
		return Buy
	case SellSignal:
		return Sell
	}
	return NoType
}

func (s Signal) String() string {
	switch s {
	case BuySignal:
		return "BUY"
	case SellSignal:
		return "SELL"
	}
	return "HOLD"
}

// MarshalJSON writes the signal name.
func (s Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads the signal name.
func (s *Signal) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch strings.ToUpper(v) {
	case "BUY":
		*s = BuySignal
	case "SELL":
		*s = SellSignal
	case "HOLD", "":
		*s = HoldSignal
	default:
		return fmt.Errorf("unknown signal '%s'", v)
	}
	return nil
}

// Decision is a fused signal together with the source that produced it.
type Decision struct {
	Coin   Coin   `json:"coin"`
	Signal Signal `json:"signal"`
	Source string `json:"source"`
	Regime Regime `json:"regime"`
	Trend  Trend  `json:"trend"`
	Buy    int    `json:"buy"`
	Sell   int    `json:"sell"`
	Reason string `json:"reason,omitempty"`
}

// Hold creates a hold decision for the given reason.
func Hold(coin Coin, source, reason string) Decision {
	return Decision{
		Coin:   coin,
		Signal: HoldSignal,
		Source: source,
		Reason: reason,
	}
}
