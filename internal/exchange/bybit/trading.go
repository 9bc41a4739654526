package bybit

import (
	"context"
	"fmt"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/google/uuid"
)

// PlaceOrderParams holds parameters for placing a market order
type PlaceOrderParams struct {
	Symbol      string
	Side        types.OrderSide
	Qty         string // base coin units
	OrderLinkID string // generated when empty
	TakeProfit  string
	StopLoss    string
}

// PlaceOrder places a market order and returns the venue's view of it.
// The order is looked up once after acceptance so the fill price is known
// where the venue has already matched it.
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*types.Order, error) {
	if params.OrderLinkID == "" {
		params.OrderLinkID = uuid.NewString()
	}

	apiParams := c.params(params.Symbol)
	apiParams["side"] = string(params.Side)
	apiParams["orderType"] = "Market"
	apiParams["qty"] = params.Qty
	apiParams["orderLinkId"] = params.OrderLinkID
	if c.category == "spot" {
		apiParams["marketUnit"] = "baseCoin"
	}
	if params.TakeProfit != "" {
		apiParams["takeProfit"] = params.TakeProfit
	}
	if params.StopLoss != "" {
		apiParams["stopLoss"] = params.StopLoss
	}

	var placed placeOrderResult
	err := c.do(ctx, "PlaceOrder", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	}, &placed)
	if err != nil {
		return nil, err
	}
	if placed.OrderID == "" {
		return nil, boterrors.NewBotError(boterrors.ErrorCategoryExchange, "bybit", "PlaceOrder",
			"order accepted without an order id")
	}

	order, err := c.GetOrder(ctx, params.Symbol, placed.OrderID)
	if err != nil {
		// Accepted but not yet visible: report what was sent.
		return &types.Order{
			ID:           placed.OrderID,
			Symbol:       params.Symbol,
			Side:         params.Side,
			Type:         types.OrderTypeMarket,
			Quantity:     parseFloat64(params.Qty),
			RemainingQty: parseFloat64(params.Qty),
			CreatedAt:    time.Now(),
			Status:       types.OrderStatusOpen,
			StopLoss:     parseFloat64(params.StopLoss),
			TakeProfit:   parseFloat64(params.TakeProfit),
		}, nil
	}
	return order, nil
}

// CancelOrder cancels an open order. It reports false when the order no
// longer exists or already finished.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	params := c.params(symbol)
	params["orderId"] = orderID

	var result cancelOrderResult
	err := c.do(ctx, "CancelOrder", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	}, &result)
	if err != nil {
		if IsOrderNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return result.OrderID == orderID, nil
}

// GetOrder looks the order up among open orders first, then in history.
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (*types.Order, error) {
	params := c.params(symbol)
	params["orderId"] = orderID

	var open orderListResult
	err := c.do(ctx, "GetOpenOrders", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	}, &open)
	if err != nil {
		return nil, err
	}
	if rec, ok := findOrder(open.List, orderID); ok {
		return rec.toOrder(), nil
	}

	var history orderListResult
	err = c.do(ctx, "GetOrderHistory", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	}, &history)
	if err != nil {
		return nil, err
	}
	if rec, ok := findOrder(history.List, orderID); ok {
		return rec.toOrder(), nil
	}

	return nil, boterrors.NewBotError(boterrors.ErrorCategoryOrder, "bybit", "GetOrder",
		fmt.Sprintf("order %s not found", orderID))
}

func findOrder(list []orderRecord, orderID string) (orderRecord, bool) {
	for _, rec := range list {
		if rec.OrderID == orderID {
			return rec, true
		}
	}
	return orderRecord{}, false
}

func (r orderRecord) toOrder() *types.Order {
	qty := parseFloat64(r.Qty)
	filled := parseFloat64(r.CumExecQty)
	remaining := parseFloat64(r.LeavesQty)
	if r.LeavesQty == "" {
		remaining = qty - filled
	}
	avg := parseFloat64(r.AvgPrice)
	if avg == 0 && filled > 0 {
		avg = parseFloat64(r.CumExecValue) / filled
	}

	return &types.Order{
		ID:           r.OrderID,
		Symbol:       r.Symbol,
		Side:         types.OrderSide(r.Side),
		Type:         types.OrderTypeMarket,
		Price:        parseFloat64(r.Price),
		Quantity:     qty,
		CreatedAt:    parseTimestamp(r.CreatedTime),
		Status:       types.NormalizeOrderStatus(r.OrderStatus),
		Fee:          parseFloat64(r.CumExecFee),
		FilledQty:    filled,
		RemainingQty: remaining,
		AvgPrice:     avg,
		StopLoss:     parseFloat64(r.StopLoss),
		TakeProfit:   parseFloat64(r.TakeProfit),
	}
}
