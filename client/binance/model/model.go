package model

// Converter encapsulates all conversion logic for the binance futures exchange.
type Converter struct {
	Coin      CoinConverter
	Type      TypeConverter
	OrderType OrderTypeConverter
}

// NewConverter creates a new converter.
func NewConverter() Converter {
	return Converter{
		Coin:      Coin(),
		Type:      Type(),
		OrderType: OrderType(),
	}
}
