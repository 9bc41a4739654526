package tradelog

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const tradeMeasurement = "trades"

// InfluxRecorder writes one point per trade.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

type InfluxConfig struct {
	URL    string `yaml:"url" json:"url" env:"INFLUX_URL" validate:"omitempty,url"`
	Token  string `yaml:"token" json:"-" env:"INFLUX_TOKEN"`
	Org    string `yaml:"org" json:"org" env:"INFLUX_ORG" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" json:"bucket" env:"INFLUX_BUCKET" env-default:"trades"`
}

func NewInfluxRecorder(ctx context.Context, cfg InfluxConfig) (*InfluxRecorder, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb unreachable: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influxdb not healthy: %+v", health)
	}

	return &InfluxRecorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (r *InfluxRecorder) Record(ctx context.Context, t Trade) error {
	if err := r.writeAPI.WritePoint(ctx, tradePoint(t)); err != nil {
		return fmt.Errorf("influxdb write: %w", err)
	}
	return nil
}

func (r *InfluxRecorder) Close() error {
	r.client.Close()
	return nil
}

func tradePoint(t Trade) *write.Point {
	fields := map[string]interface{}{
		"price":          t.CurrentPrice,
		"quantity":       t.Quantity,
		"investment":     t.Investment,
		"wallet_balance": t.WalletBalance,
		"profit":         t.Profit,
	}
	if t.StopLoss > 0 {
		fields["stop_loss"] = t.StopLoss
	}
	if t.TakeProfit > 0 {
		fields["take_profit"] = t.TakeProfit
	}
	return influxdb2.NewPoint(
		tradeMeasurement,
		map[string]string{
			"pair": t.Pair,
			"side": string(t.Side),
		},
		fields,
		t.Time,
	)
}
