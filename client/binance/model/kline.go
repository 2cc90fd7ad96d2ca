package model

import (
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/drakos74/futures-bot/internal/model"
	cointime "github.com/drakos74/futures-bot/internal/time"
)

// FromKline converts a rest kline to a bar.
func FromKline(coin model.Coin, kline *futures.Kline) (model.Bar, error) {
	return newBar(coin, kline.OpenTime, kline.Open, kline.High, kline.Low, kline.Close, kline.Volume)
}

// FromWsKline converts a streamed kline to a bar.
// It also returns whether the kline is final, as the stream keeps updating the open one.
func FromWsKline(c CoinConverter, event *futures.WsKlineEvent) (model.Bar, bool, error) {
	k := event.Kline
	bar, err := newBar(c.Coin(event.Symbol), k.StartTime, k.Open, k.High, k.Low, k.Close, k.Volume)
	return bar, k.IsFinal, err
}

func newBar(coin model.Coin, open int64, o, h, l, c, v string) (model.Bar, error) {
	bar := model.Bar{
		Coin: coin,
		Time: cointime.FromMilli(open),
	}
	var err error
	for _, p := range []struct {
		name  string
		value string
		field *float64
	}{
		{"open", o, &bar.Open},
		{"high", h, &bar.High},
		{"low", l, &bar.Low},
		{"close", c, &bar.Close},
		{"volume", v, &bar.Volume},
	} {
		*p.field, err = strconv.ParseFloat(p.value, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("could not parse %s price for %s: %w", p.name, coin, err)
		}
	}
	return bar, nil
}
