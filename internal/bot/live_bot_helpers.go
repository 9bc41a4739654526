package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/supervisor"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintStartupInfo prints where the bot trades and with how much.
func (b *Bot) PrintStartupInfo(id exchange.Identity, balance float64) {
	t := b.newTable("BOT INITIALIZATION")
	t.AppendRows([]table.Row{
		{"📊 Pairs", strings.Join(b.cfg.Trading.Pairs, ", ")},
		{"⏰ Interval", b.cfg.Trading.Interval},
		{"🏪 Category", b.cfg.Exchange.Category},
		{"🏪 Exchange", b.venue.GetName()},
		{"🔧 Environment", b.environmentString()},
		{"👤 Account", strings.TrimSpace(id.AccountType + " " + id.Status)},
		{"💰 Balance", fmt.Sprintf("%.2f %s", balance, b.cfg.Trading.QuoteAsset)},
		{"🚨 Trading Mode", b.tradingModeString()},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(b.opts.Out)
}

// PrintConfiguration prints the risk, signal and exit settings.
func (b *Bot) PrintConfiguration() {
	tr := b.cfg.Trading
	ind := b.cfg.Indicators

	t := b.newTable("BOT CONFIGURATION")
	t.AppendRows([]table.Row{
		{"💵 Investment", fmt.Sprintf("$%.2f (min $%.2f)", tr.Investment, tr.MinInvestment)},
		{"🛑 Stop Loss", fmt.Sprintf("%.2f%%", tr.StopLossPct*100)},
		{"🎯 Take Profit", fmt.Sprintf("%.2f%% (%.1f:1)", tr.StopLossPct*tr.RewardRatio*100, tr.RewardRatio)},
		{"🚪 Exit Policy", b.exitPolicyString()},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"📈 RSI", fmt.Sprintf("%d", ind.RSIPeriod)},
		{"📉 MACD", fmt.Sprintf("%d/%d/%d", ind.MACDFast, ind.MACDSlow, ind.MACDSignal)},
		{"〰️ EMA", fmt.Sprintf("%d/%d", ind.EMAFast, ind.EMASlow)},
		{"📏 Bollinger", fmt.Sprintf("%d/%.1f", ind.BBPeriod, ind.BBStdDev)},
		{"🔁 Stochastic", fmt.Sprintf("%d/%d/%d", ind.StochKPeriod, ind.StochKSmooth, ind.StochDPeriod)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"⏱️ Poll Interval", tr.PollInterval.String()},
		{"🔄 Continuous", fmt.Sprintf("%t", tr.Continuous)},
		{"📒 Position Book", b.cfg.PositionBook.Kind},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(b.opts.Out)
}

// PrintStatus prints the quote balance and the market constraints of every pair.
func (b *Bot) PrintStatus(ctx context.Context) error {
	quote := b.cfg.Trading.QuoteAsset
	balance, err := b.exchange.GetBalance(ctx, quote)
	if err != nil {
		return err
	}

	bt := b.newTable("WALLET")
	bt.AppendHeader(table.Row{"Asset", "Balance", "Threshold"})
	bt.AppendRow(table.Row{quote, fmt.Sprintf("%.2f", balance), fmt.Sprintf("%.2f", b.cfg.Trading.WalletThreshold)})
	bt.Render()
	fmt.Fprintln(b.opts.Out)

	ct := b.newTable("MARKET CONSTRAINTS")
	ct.AppendHeader(table.Row{"Pair", "Price", "Step", "Min Qty", "Max Qty", "Min Value", "Min Notional", "Investment"})
	for _, pair := range b.cfg.Trading.Pairs {
		c, err := b.exchange.GetMarketConstraints(ctx, pair)
		if err != nil {
			ct.AppendRow(table.Row{pair, "⚠️ " + err.Error()})
			continue
		}
		price, err := b.exchange.GetLatestPrice(ctx, pair)
		if err != nil {
			ct.AppendRow(table.Row{pair, "⚠️ " + err.Error()})
			continue
		}
		fits := "✅"
		if checkBounds(pair, b.cfg.Trading.Investment, price, c.MinQuantity, c.MaxQuantity) != nil {
			fits = "❌"
		}
		ct.AppendRow(table.Row{
			pair,
			fmt.Sprintf("%.8g", price),
			fmt.Sprintf("%g", c.Step),
			fmt.Sprintf("%g", c.MinQuantity),
			maxQtyString(c.MaxQuantity),
			fmt.Sprintf("%.2f", c.MinQuantity*price),
			fmt.Sprintf("%.2f", c.MinNotional),
			fits,
		})
	}
	ct.Render()
	fmt.Fprintln(b.opts.Out)
	return nil
}

// PrintResults prints how every pair ended.
func (b *Bot) PrintResults(results []supervisor.Result) {
	t := b.newTable("SESSION RESULTS")
	t.AppendHeader(table.Row{"Pair", "Cycles", "State", "Exit", "Entry Price", "Exit Price", "P&L", "Error"})

	total := 0.0
	for _, r := range results {
		o := r.Outcome
		entry, exit := "-", "-"
		if o.Position != nil {
			entry = fmt.Sprintf("%.8g", o.Position.EntryPrice)
		}
		if o.ExitOrder != nil {
			exit = fmt.Sprintf("%.8g", o.ExitOrder.ExecutionPrice())
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		total += o.PnL
		t.AppendRow(table.Row{r.Pair, r.Cycles, stateString(o.State), string(o.ExitReason), entry, exit, fmt.Sprintf("%.2f", o.PnL), errText})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%.2f", total), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 8, WidthMax: 50},
	})
	t.Render()
}

func (b *Bot) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(b.opts.Out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// environmentString returns a formatted environment string
func (b *Bot) environmentString() string {
	env := b.venue.GetEnvironment()
	if b.opts.Mode == ModePaper {
		return fmt.Sprintf("%s prices (paper trading)", env)
	}
	return fmt.Sprintf("%s (live trading)", env)
}

// tradingModeString returns a formatted trading mode string
func (b *Bot) tradingModeString() string {
	switch {
	case b.opts.Mode == ModePaper:
		return "🧪 PAPER MODE (Simulated Fills)"
	case b.cfg.Exchange.Demo || b.cfg.Exchange.Testnet:
		return "🧪 DEMO MODE (Test Funds)"
	default:
		return "💰 LIVE TRADING MODE (Real Money!)"
	}
}

func (b *Bot) exitPolicyString() string {
	if lifecycle.ExitPolicy(b.cfg.Trading.ExitPolicy) == lifecycle.ExitTrailing {
		return fmt.Sprintf("trailing %.2f%%", b.cfg.Trading.TrailingPct*100)
	}
	return "fixed levels"
}

func stateString(s lifecycle.State) string {
	if s == "" {
		return "-"
	}
	return string(s)
}

func maxQtyString(maxQty float64) string {
	if maxQty <= 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%g", maxQty)
}
