// Package oms tracks the orders a lifecycle places. An order id lives either
// in the active set or in history, never both.
package oms

import (
	"context"
	"fmt"
	"sort"
	"sync"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
)

// Book places orders through an Execution and remembers them.
type Book struct {
	exec exchange.Execution

	mu      sync.RWMutex
	active  map[string]*types.Order
	history []*types.Order
	seen    map[string]struct{}
}

func NewBook(exec exchange.Execution) *Book {
	return &Book{
		exec:   exec,
		active: make(map[string]*types.Order),
		seen:   make(map[string]struct{}),
	}
}

// Place sends a market order and tracks what the venue returned.
func (b *Book) Place(ctx context.Context, req exchange.OrderRequest) (*types.Order, error) {
	order, err := b.exec.PlaceMarketOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, boterrors.NewBotError(boterrors.ErrorCategoryExchange, "oms", "Place",
			"venue returned no order")
	}
	if err := b.Track(order); err != nil {
		return nil, err
	}
	return cloneOrder(order), nil
}

// Track records an order. Terminal orders go straight to history.
func (b *Book) Track(order *types.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.seen[order.ID]; dup {
		return boterrors.NewValidationError("oms", "Track", fmt.Sprintf("order %s already tracked", order.ID))
	}
	b.seen[order.ID] = struct{}{}

	o := cloneOrder(order)
	if o.Status.IsTerminal() {
		b.history = append(b.history, o)
	} else {
		b.active[o.ID] = o
	}
	return nil
}

// Refresh asks the venue for the order's status. A terminal status moves it
// to history.
func (b *Book) Refresh(ctx context.Context, symbol, orderID string) (*types.Order, error) {
	b.mu.RLock()
	_, ok := b.active[orderID]
	b.mu.RUnlock()
	if !ok {
		return nil, boterrors.NewValidationError("oms", "Refresh", fmt.Sprintf("order %s is not active", orderID))
	}

	latest, err := b.exec.GetOrderStatus(ctx, symbol, orderID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.active[orderID]
	if !ok {
		// moved by a concurrent Cancel
		return nil, boterrors.NewValidationError("oms", "Refresh", fmt.Sprintf("order %s is not active", orderID))
	}
	applyStatus(current, latest)
	if current.Status.IsTerminal() {
		delete(b.active, orderID)
		b.history = append(b.history, current)
	}
	return cloneOrder(current), nil
}

// Cancel cancels an active order. On success it moves to history as CANCELLED.
func (b *Book) Cancel(ctx context.Context, symbol, orderID string) (bool, error) {
	b.mu.RLock()
	_, ok := b.active[orderID]
	b.mu.RUnlock()
	if !ok {
		return false, nil
	}

	cancelled, err := b.exec.CancelOrder(ctx, symbol, orderID)
	if err != nil || !cancelled {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.active[orderID]; ok {
		o.Status = types.OrderStatusCancelled
		delete(b.active, orderID)
		b.history = append(b.history, o)
	}
	return true, nil
}

// Active returns copies of the open orders, oldest first.
func (b *Book) Active() []types.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Order, 0, len(b.active))
	for _, o := range b.active {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// History returns copies of finished orders in the order they finished.
func (b *Book) History() []types.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Order, len(b.history))
	for i, o := range b.history {
		out[i] = *o
	}
	return out
}

func applyStatus(dst, src *types.Order) {
	dst.Status = src.Status
	dst.FilledQty = src.FilledQty
	dst.RemainingQty = src.RemainingQty
	dst.Fee = src.Fee
	if src.AvgPrice > 0 {
		dst.AvgPrice = src.AvgPrice
	}
	if src.Price > 0 {
		dst.Price = src.Price
	}
}

func cloneOrder(o *types.Order) *types.Order {
	c := *o
	return &c
}
