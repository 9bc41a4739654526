package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const maxRecentErrors = 10

// DefaultStaleAfter is how long without a price before the bot is degraded.
const DefaultStaleAfter = 5 * time.Minute

type HealthChecker struct {
	mu         sync.RWMutex
	startTime  time.Time
	staleAfter time.Duration
	lastTrade  time.Time
	lastUpdate time.Time
	lastError  time.Time
	lastPrices map[string]float64
	errors     []string
	now        func() time.Time
}

type HealthStatus struct {
	Status     string             `json:"status"`
	Timestamp  time.Time          `json:"timestamp"`
	LastTrade  time.Time          `json:"last_trade,omitempty"`
	LastUpdate time.Time          `json:"last_update,omitempty"`
	LastPrices map[string]float64 `json:"last_prices"`
	Uptime     string             `json:"uptime"`
	Errors     []string           `json:"errors,omitempty"`
}

func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &HealthChecker{
		startTime:  time.Now(),
		staleAfter: staleAfter,
		lastPrices: make(map[string]float64),
		errors:     make([]string, 0),
		now:        time.Now,
	}
}

func (h *HealthChecker) RecordPrice(pair string, price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPrices[pair] = price
	h.lastUpdate = h.now()
}

func (h *HealthChecker) RecordTrade(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTrade = h.now()
}

// RecordError keeps the most recent errors for the health report.
func (h *HealthChecker) RecordError(pair string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastError = h.now()
	h.errors = append(h.errors, fmt.Sprintf("%s %s: %v", h.lastError.Format(time.RFC3339), pair, err))
	if len(h.errors) > maxRecentErrors {
		h.errors = h.errors[len(h.errors)-maxRecentErrors:]
	}
}

// Status is unhealthy when the latest event was an error, degraded when
// prices have gone stale, healthy otherwise.
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"
	switch {
	case !h.lastError.IsZero() && h.lastError.After(h.lastUpdate):
		status = "unhealthy"
	case !h.lastUpdate.IsZero() && now.Sub(h.lastUpdate) > h.staleAfter:
		status = "degraded"
	}

	prices := make(map[string]float64, len(h.lastPrices))
	for k, v := range h.lastPrices {
		prices[k] = v
	}
	return HealthStatus{
		Status:     status,
		Timestamp:  now,
		LastTrade:  h.lastTrade,
		LastUpdate: h.lastUpdate,
		LastPrices: prices,
		Uptime:     now.Sub(h.startTime).Truncate(time.Second).String(),
		Errors:     append([]string(nil), h.errors...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()

	w.Header().Set("Content-Type", "application/json")
	switch health.Status {
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(health)
}
