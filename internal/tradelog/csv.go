package tradelog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// DefaultCSVPath is where trades land when nothing else is configured.
const DefaultCSVPath = "logs/trades.csv"

const timeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{
	"Time",
	"Trading Pair",
	"Current Price",
	"Investment",
	"Quantity",
	"Wallet Balance",
	"Order Type",
	"Stop-Loss Price",
	"Take-Profit Price",
	"Initial Price",
	"Profit",
	"Buy Price",
	"Sell Price",
}

// CSVRecorder appends one row per trade, writing the header when the file is new.
type CSVRecorder struct {
	path string
	mu   sync.Mutex
}

func NewCSVRecorder(path string) *CSVRecorder {
	if path == "" {
		path = DefaultCSVPath
	}
	return &CSVRecorder{path: path}
}

func (r *CSVRecorder) Path() string { return r.path }

func (r *CSVRecorder) Record(_ context.Context, t Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create trade log directory: %w", err)
		}
	}

	writeHeader := false
	if info, err := os.Stat(r.path); err != nil || info.Size() == 0 {
		writeHeader = true
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.Write(csvRow(t)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func csvRow(t Trade) []string {
	return []string{
		t.Time.Format(timeLayout),
		t.Pair,
		formatNumber(t.CurrentPrice),
		formatNumber(t.Investment),
		formatNumber(t.Quantity),
		formatNumber(t.WalletBalance),
		string(t.Side),
		optional(t.StopLoss),
		optional(t.TakeProfit),
		optional(t.InitialPrice),
		strconv.FormatFloat(t.Profit, 'f', 2, 64),
		optional(t.BuyPrice),
		optional(t.SellPrice),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// optional leaves unset levels blank, as an exit row carries no stop or target.
func optional(v float64) string {
	if v == 0 {
		return ""
	}
	return formatNumber(v)
}
