package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a per-pair session logger for trading activity. It writes a
// readable log file and mirrors entries to the console.
type Logger struct {
	symbol   string
	interval string
	logFile  *os.File
	zl       *zap.Logger
	sugar    *zap.SugaredLogger
	mu       *sync.Mutex
	logDir   string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
	LogLevelDebug   LogLevel = "DEBUG"
)

// Options tune where and how much is logged.
type Options struct {
	Dir     string
	Debug   bool
	Console bool
}

// NewLogger creates a new file logger for the specified symbol and interval
func NewLogger(symbol, interval string) (*Logger, error) {
	return NewLoggerWithOptions(symbol, interval, Options{Dir: "logs", Console: true})
}

func NewLoggerWithOptions(symbol, interval string, opts Options) (*Logger, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.log", symbol, interval, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(opts.Dir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(file), level),
	}
	if opts.Console {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(os.Stdout), level))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2)).
		With(zap.String("symbol", symbol))

	l := &Logger{
		symbol:   symbol,
		interval: interval,
		logFile:  file,
		zl:       zl,
		sugar:    zl.Sugar(),
		logDir:   opts.Dir,
		mu:       &sync.Mutex{},
	}
	l.writeSessionHeader()
	return l, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	zl := zap.NewNop()
	return &Logger{zl: zl, sugar: zl.Sugar(), mu: &sync.Mutex{}}
}

// FromZap wraps an existing zap logger, typically zaptest's in tests.
func FromZap(zl *zap.Logger) *Logger {
	return &Logger{zl: zl, sugar: zl.Sugar(), mu: &sync.Mutex{}}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// With returns a child logger sharing the same sinks.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.zl.With(fields...)
	return &Logger{symbol: l.symbol, interval: l.interval, logFile: l.logFile, zl: zl, sugar: zl.Sugar(), mu: l.mu, logDir: l.logDir}
}

func (l *Logger) writeSessionHeader() {
	l.raw(fmt.Sprintf(`
================================================================================
🚀 CONFLUENCE TRADING SESSION STARTED
================================================================================
Symbol: %s | Interval: %s
Started: %s
================================================================================`,
		l.symbol, l.interval, time.Now().Format("2006-01-02 15:04:05")))
}

// raw writes an unformatted block straight to the log file.
func (l *Logger) raw(block string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		fmt.Fprintln(l.logFile, block)
	}
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LogLevelWarning:
		l.sugar.Warnf(format, args...)
	case LogLevelError:
		l.sugar.Errorf(format, args...)
	case LogLevelDebug:
		l.sugar.Debugf(format, args...)
	case LogLevelTrade, LogLevelStatus:
		l.sugar.With("kind", string(level)).Infof(format, args...)
	default:
		l.sugar.Infof(format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.Log(LogLevelDebug, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogMarketStatus logs one monitoring tick of an open position.
func (l *Logger) LogMarketStatus(currentPrice, entryPrice, stopLoss, takeProfit float64, state string) {
	change := 0.0
	if entryPrice > 0 {
		change = (currentPrice - entryPrice) / entryPrice * 100
	}
	l.zl.Info("market status",
		zap.String("kind", string(LogLevelStatus)),
		zap.String("state", state),
		zap.Float64("price", currentPrice),
		zap.Float64("entry", entryPrice),
		zap.Float64("stop_loss", stopLoss),
		zap.Float64("take_profit", takeProfit),
		zap.Float64("change_pct", change),
	)
}

// LogTradeExecution logs trade execution details
func (l *Logger) LogTradeExecution(side, orderID string, quantity, price, stopLoss, takeProfit float64) {
	l.raw(fmt.Sprintf(`
[%s] [TRADE] ==================== %s EXECUTED ====================
✅ Order ID: %s
📦 Quantity: %g %s
💰 Price: $%.8g
💵 Value: $%.2f
🛑 Stop Loss: $%.8g | 🎯 Take Profit: $%.8g
=============================================================`,
		time.Now().Format("2006-01-02 15:04:05"), side, orderID, quantity, l.symbol, price, quantity*price, stopLoss, takeProfit))

	l.zl.Info("trade executed",
		zap.String("kind", string(LogLevelTrade)),
		zap.String("side", side),
		zap.String("order_id", orderID),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
	)
}

// LogCycleCompletion logs a closed position.
func (l *Logger) LogCycleCompletion(exitPrice, entryPrice, profit float64, reason string) {
	pct := 0.0
	if entryPrice > 0 {
		pct = (exitPrice - entryPrice) / entryPrice * 100
	}
	l.raw(fmt.Sprintf(`
[%s] [TRADE] ==================== POSITION CLOSED ====================
🎯 Entry Price: $%.8g
🚪 Exit Price: $%.8g (%s)
📊 Price Change: %.2f%% | P&L: $%.2f
==============================================================`,
		time.Now().Format("2006-01-02 15:04:05"), entryPrice, exitPrice, reason, pct, profit))

	l.zl.Info("position closed",
		zap.String("kind", string(LogLevelTrade)),
		zap.String("reason", reason),
		zap.Float64("entry", entryPrice),
		zap.Float64("exit", exitPrice),
		zap.Float64("profit", profit),
	)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error(context, zap.Error(err))
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.Warning("%s: %s", context, fmt.Sprintf(message, args...))
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	_ = l.zl.Sync()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	fmt.Fprintf(l.logFile, `
================================================================================
🛑 CONFLUENCE TRADING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	filename := fmt.Sprintf("%s_%s_%s.log", l.symbol, l.interval, time.Now().Format("2006-01-02"))
	return filepath.Join(l.logDir, filename)
}
