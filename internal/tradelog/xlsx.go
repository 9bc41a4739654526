package tradelog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Trades"

// XLSXRecorder keeps a trade journal workbook with one row per trade.
type XLSXRecorder struct {
	path string
	mu   sync.Mutex
}

func NewXLSXRecorder(path string) *XLSXRecorder {
	return &XLSXRecorder{path: path}
}

func (r *XLSXRecorder) Record(_ context.Context, t Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fx, err := r.open()
	if err != nil {
		return err
	}
	defer fx.Close()

	rows, err := fx.GetRows(xlsxSheet)
	if err != nil {
		return fmt.Errorf("read journal rows: %w", err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	values := xlsxRow(t)
	if err := fx.SetSheetRow(xlsxSheet, cell, &values); err != nil {
		return fmt.Errorf("write journal row: %w", err)
	}
	return fx.SaveAs(r.path)
}

// open loads the workbook or creates it with a styled header row.
func (r *XLSXRecorder) open() (*excelize.File, error) {
	if _, err := os.Stat(r.path); err == nil {
		fx, err := excelize.OpenFile(r.path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return fx, nil
	}

	if dir := filepath.Dir(r.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	fx := excelize.NewFile()
	if err := fx.SetSheetName("Sheet1", xlsxSheet); err != nil {
		fx.Close()
		return nil, err
	}
	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := fx.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		fx.Close()
		return nil, err
	}

	style, err := fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(csvHeader), 1)
		_ = fx.SetCellStyle(xlsxSheet, "A1", last, style)
	}
	_ = fx.SetPanes(xlsxSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return fx, nil
}

func xlsxRow(t Trade) []interface{} {
	blank := func(v float64) interface{} {
		if v == 0 {
			return nil
		}
		return v
	}
	return []interface{}{
		t.Time.Format(timeLayout),
		t.Pair,
		t.CurrentPrice,
		t.Investment,
		t.Quantity,
		t.WalletBalance,
		string(t.Side),
		blank(t.StopLoss),
		blank(t.TakeProfit),
		blank(t.InitialPrice),
		t.Profit,
		blank(t.BuyPrice),
		blank(t.SellPrice),
	}
}
