// Package positionbook stores open positions for lifecycles. All books are
// safe for concurrent use by lifecycles of different pairs.
package positionbook

import (
	"context"
	"sort"
	"sync"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
)

var (
	_ lifecycle.PositionBook = (*Memory)(nil)
	_ lifecycle.PositionBook = (*File)(nil)
	_ lifecycle.PositionBook = (*Redis)(nil)
)

// Memory keeps positions for the life of the process.
type Memory struct {
	mu        sync.RWMutex
	positions map[string]lifecycle.Position
}

func NewMemory() *Memory {
	return &Memory{positions: make(map[string]lifecycle.Position)}
}

func (m *Memory) Get(_ context.Context, pair string) (lifecycle.Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[pair]
	return p, ok, nil
}

func (m *Memory) Put(_ context.Context, p lifecycle.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.Pair] = p
	return nil
}

func (m *Memory) Delete(_ context.Context, pair string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, pair)
	return nil
}

func (m *Memory) List(_ context.Context) ([]lifecycle.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sorted(m.positions), nil
}

func sorted(positions map[string]lifecycle.Position) []lifecycle.Position {
	out := make([]lifecycle.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}
