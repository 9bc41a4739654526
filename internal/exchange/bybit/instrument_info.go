package bybit

import (
	"context"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/sizing"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
)

// InstrumentInfo is the subset of /v5/market/instruments-info used for sizing.
// Spot and linear instruments report the lot size differently; both shapes
// decode into the same struct.
type InstrumentInfo struct {
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	BaseCoin      string `json:"baseCoin"`
	QuoteCoin     string `json:"quoteCoin"`
	LotSizeFilter struct {
		BasePrecision    string `json:"basePrecision"`
		QtyStep          string `json:"qtyStep"`
		MinOrderQty      string `json:"minOrderQty"`
		MaxOrderQty      string `json:"maxOrderQty"`
		MaxMktOrderQty   string `json:"maxMktOrderQty"`
		MinOrderAmt      string `json:"minOrderAmt"`
		MinNotionalValue string `json:"minNotionalValue"`
	} `json:"lotSizeFilter"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
}

// GetInstrumentInfo fetches the instrument on every call. Constraints change
// without notice, so nothing is cached.
func (c *Client) GetInstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	var result instrumentResult
	err := c.withRetry(ctx, func() error {
		return c.do(ctx, "GetInstrumentInfo", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
			return c.httpClient.NewUtaBybitServiceWithParams(c.params(symbol)).GetInstrumentInfo(ctx)
		}, &result)
	})
	if err != nil {
		return nil, err
	}

	for i := range result.List {
		if result.List[i].Symbol == symbol {
			return &result.List[i], nil
		}
	}
	return nil, boterrors.NewValidationError("bybit", "GetInstrumentInfo",
		fmt.Sprintf("instrument %s not found in category %s", symbol, c.category))
}

// Constraints converts the lot size filter into sizing constraints.
func (ii *InstrumentInfo) Constraints() types.MarketConstraints {
	lot := ii.LotSizeFilter
	step := lot.QtyStep
	if step == "" {
		step = lot.BasePrecision
	}
	maxQty := lot.MaxMktOrderQty
	if maxQty == "" {
		maxQty = lot.MaxOrderQty
	}
	minNotional := lot.MinOrderAmt
	if minNotional == "" {
		minNotional = lot.MinNotionalValue
	}

	return types.MarketConstraints{
		Symbol:          ii.Symbol,
		Step:            parseFloat64(step),
		TargetPrecision: sizing.StepPrecision(step),
		MinQuantity:     parseFloat64(lot.MinOrderQty),
		MaxQuantity:     parseFloat64(maxQty),
		MinNotional:     parseFloat64(minNotional),
	}
}

// Tradable reports whether the instrument currently accepts orders.
func (ii *InstrumentInfo) Tradable() bool {
	return ii.Status == "" || ii.Status == "Trading"
}
