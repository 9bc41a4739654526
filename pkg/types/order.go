package types

import (
	"strings"
	"time"
)

type OrderSide string

const (
	SideBuy  OrderSide = "Buy"
	SideSell OrderSide = "Sell"
)

// Opposite returns the side that closes a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// IsTerminal reports whether an order in this status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusCompleted:
		return true
	}
	return false
}

// NormalizeOrderStatus maps venue specific status strings onto OrderStatus.
func NormalizeOrderStatus(raw string) OrderStatus {
	switch strings.ToUpper(strings.ReplaceAll(raw, "_", "")) {
	case "FILLED":
		return OrderStatusFilled
	case "CANCELLED", "CANCELED", "REJECTED", "EXPIRED", "DEACTIVATED", "PARTIALLYFILLEDCANCELED":
		return OrderStatusCancelled
	case "COMPLETED":
		return OrderStatusCompleted
	default:
		return OrderStatusOpen
	}
}

// Order is the normalized view of an order accepted by an execution venue.
type Order struct {
	ID           string
	Symbol       string
	Side         OrderSide
	Type         OrderType
	Price        float64
	Quantity     float64
	CreatedAt    time.Time
	Status       OrderStatus
	Fee          float64
	FilledQty    float64
	RemainingQty float64
	AvgPrice     float64
	StopLoss     float64
	TakeProfit   float64
}

// ExecutionPrice is the best known price the order traded at.
func (o *Order) ExecutionPrice() float64 {
	if o.AvgPrice > 0 {
		return o.AvgPrice
	}
	return o.Price
}
