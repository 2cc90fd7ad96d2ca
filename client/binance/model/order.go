package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/rs/zerolog/log"
)

// OrderType creates an order type converter
func OrderType() OrderTypeConverter {
	return OrderTypeConverter{
		orderTypes: map[model.OrderType]futures.OrderType{
			model.Market:           futures.OrderTypeMarket,
			model.StopMarket:       futures.OrderTypeStopMarket,
			model.TakeProfitMarket: futures.OrderTypeTakeProfitMarket,
		},
	}
}

// OrderTypeConverter converts from a binance order type model to the internal one.
type OrderTypeConverter struct {
	orderTypes map[model.OrderType]futures.OrderType
}

// From translates the type of order to binance specific representation.
func (ot OrderTypeConverter) From(t model.OrderType) (futures.OrderType, error) {
	if orderType, ok := ot.orderTypes[t]; ok {
		return orderType, nil
	}
	return "", fmt.Errorf("unknown order type %v", t)
}

// To translates the type of the binance order to the internal representation.
func (ot OrderTypeConverter) To(orderType futures.OrderType) (model.OrderType, error) {
	for t, ordT := range ot.orderTypes {
		if orderType == ordT {
			return t, nil
		}
	}
	return model.Market, fmt.Errorf("unknown order type %v", orderType)
}

type LotSizeFilter struct {
	Type        string `json:"filterType"`
	MaxQuantity string `json:"maxQty"`
	MinQuantity string `json:"minQty"`
	StepSize    string `json:"stepSize"`
}

// LotSize holds the quantity constraints of an instrument.
type LotSize struct {
	MaxQuantity float64
	MinQuantity float64
	StepSize    float64
	Precision   int
}

func NewLotSize(filter LotSizeFilter, precision int) (LotSize, error) {
	lotSize := LotSize{Precision: precision}
	max, err := strconv.ParseFloat(filter.MaxQuantity, 64)
	if err != nil {
		return lotSize, fmt.Errorf("could not parse max-quantity: %w", err)
	}
	lotSize.MaxQuantity = max
	min, err := strconv.ParseFloat(filter.MinQuantity, 64)
	if err != nil {
		return lotSize, fmt.Errorf("could not parse min-quantity: %w", err)
	}
	lotSize.MinQuantity = min
	step, err := strconv.ParseFloat(filter.StepSize, 64)
	if err != nil {
		return lotSize, fmt.Errorf("could not parse step-size: %w", err)
	}
	lotSize.StepSize = step
	return lotSize, nil
}

// Adjust floors the quantity to the step size.
// A quantity below the minimum is an error, as rounding it up would add risk.
func (l LotSize) Adjust(quantity float64) (float64, error) {
	if quantity > l.MaxQuantity && l.MaxQuantity > 0 {
		quantity = l.MaxQuantity
	}
	if l.StepSize > 0 {
		// the small offset absorbs float noise like 2.9999999 steps
		steps := math.Floor(quantity/l.StepSize + 1e-9)
		quantity = steps * l.StepSize
	}
	if quantity <= 0 || quantity < l.MinQuantity {
		return 0, fmt.Errorf("quantity %f below minimum %f", quantity, l.MinQuantity)
	}
	return quantity, nil
}

// Format renders the quantity with the precision of the instrument.
func (l LotSize) Format(quantity float64) string {
	return strconv.FormatFloat(quantity, 'f', l.Precision, 64)
}

// ParseLOTSize finds the lot size filter of the futures symbol.
func ParseLOTSize(symbol futures.Symbol) (LotSize, error) {

	for _, f := range symbol.Filters {
		b, err := json.Marshal(f)
		if err != nil {
			log.Trace().Err(err).Msg("could not encode filter")
			continue
		}
		var lotSizeFilter LotSizeFilter
		err = json.Unmarshal(b, &lotSizeFilter)
		if err != nil {
			log.Trace().Err(err).Str("map", fmt.Sprintf("%+v", f)).Msg("could not parse as lot size")
			continue
		}

		if lotSizeFilter.Type == "LOT_SIZE" {
			return NewLotSize(lotSizeFilter, symbol.QuantityPrecision)
		}

	}

	return LotSize{}, fmt.Errorf("could not find lot size for %s in: %+v", symbol.Symbol, symbol.Filters)
}

// FormatPrice renders the trigger price with the price precision of the instrument.
func FormatPrice(symbol futures.Symbol, price float64) string {
	return strconv.FormatFloat(price, 'f', symbol.PricePrecision, 64)
}
