package model

import "time"

// Bar is an immutable OHLCV observation of an instrument for a time bucket.
type Bar struct {
	Coin   Coin      `json:"coin"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Typical returns the typical price of the bar.
func (b Bar) Typical() float64 {
	return (b.High + b.Low + b.Close) / 3
}
