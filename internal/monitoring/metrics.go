package monitoring

import (
	"net/http"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ lifecycle.Observer = (*Metrics)(nil)

// Metrics exports lifecycle events to Prometheus and feeds the health checker.
type Metrics struct {
	// Trading metrics
	tradesTotal   *prometheus.CounterVec
	tradeNotional *prometheus.HistogramVec

	// Signal metrics
	signalsTotal   *prometheus.CounterVec
	signalStrength *prometheus.GaugeVec

	// Position metrics
	state *prometheus.GaugeVec

	// Market data metrics
	currentPrice  *prometheus.GaugeVec
	priceFailures *prometheus.CounterVec

	// Error metrics
	errorsTotal *prometheus.CounterVec

	health *HealthChecker
}

// NewMetrics registers the collectors with reg. health may be nil.
func NewMetrics(reg prometheus.Registerer, health *HealthChecker) *Metrics {
	m := &Metrics{
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_bot_trades_total",
				Help: "Total number of orders filled",
			},
			[]string{"pair", "side"},
		),
		tradeNotional: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confluence_bot_trade_notional",
				Help:    "Distribution of order values in quote currency",
				Buckets: prometheus.ExponentialBuckets(10, 2, 12),
			},
			[]string{"pair"},
		),
		signalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_bot_signals_total",
				Help: "Signal decisions by action",
			},
			[]string{"pair", "action"},
		),
		signalStrength: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "confluence_bot_signal_strength",
				Help: "Strength of the latest signal, 0 to 100",
			},
			[]string{"pair"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "confluence_bot_lifecycle_state",
				Help: "1 for the state each pair's lifecycle is in",
			},
			[]string{"pair", "state"},
		),
		currentPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "confluence_bot_current_price",
				Help: "Latest price seen per pair",
			},
			[]string{"pair"},
		),
		priceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_bot_price_failures_total",
				Help: "Failed price fetches while a position was open",
			},
			[]string{"pair"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_bot_errors_total",
				Help: "Errors by kind",
			},
			[]string{"pair", "kind"},
		),
		health: health,
	}

	reg.MustRegister(
		m.tradesTotal,
		m.tradeNotional,
		m.signalsTotal,
		m.signalStrength,
		m.state,
		m.currentPrice,
		m.priceFailures,
		m.errorsTotal,
	)
	return m
}

func (m *Metrics) Signal(pair string, d strategy.TradeDecision) {
	m.signalsTotal.WithLabelValues(pair, d.Action.String()).Inc()
	m.signalStrength.WithLabelValues(pair).Set(d.Strength)
}

func (m *Metrics) StateChanged(pair string, from, to lifecycle.State) {
	m.state.WithLabelValues(pair, string(from)).Set(0)
	m.state.WithLabelValues(pair, string(to)).Set(1)
}

func (m *Metrics) Price(pair string, price float64) {
	m.currentPrice.WithLabelValues(pair).Set(price)
	if m.health != nil {
		m.health.RecordPrice(pair, price)
	}
}

func (m *Metrics) PriceFailure(pair string) {
	m.priceFailures.WithLabelValues(pair).Inc()
}

func (m *Metrics) Trade(pair string, side types.OrderSide, notional float64) {
	m.tradesTotal.WithLabelValues(pair, string(side)).Inc()
	m.tradeNotional.WithLabelValues(pair).Observe(notional)
	if m.health != nil {
		m.health.RecordTrade(pair)
	}
}

func (m *Metrics) Error(pair string, err error) {
	if err == nil {
		return
	}
	m.errorsTotal.WithLabelValues(pair, string(boterrors.KindOf(err))).Inc()
	if m.health != nil {
		m.health.RecordError(pair, err)
	}
}

// MetricsHandler serves the collectors gathered by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
