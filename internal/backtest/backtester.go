package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/collector"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/indicator"
	"github.com/newthinker/swingsim/internal/logger"
	"github.com/newthinker/swingsim/internal/strategy"
	"go.uber.org/zap"
)

// Recorder receives run outcomes for instrumentation.
type Recorder interface {
	RecordRun(status string, duration time.Duration)
	RecordResult(r *Result)
}

// Backtester loads market data, annotates it and runs the engine
type Backtester struct {
	provider collector.Provider
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) { b.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Backtester) { b.recorder = r }
}

// New creates a new Backtester reading from provider
func New(provider collector.Provider, opts ...Option) *Backtester {
	b := &Backtester{provider: provider, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunConfig describes one simulation.
type RunConfig struct {
	Params     broker.Params
	Conditions []strategy.Condition
	// Start is the first simulated date. Earlier bars only warm up indicators.
	Start time.Time
	// Ticker overrides the ticker reported by the provider.
	Ticker string
}

// Run executes a simulation over the provider's data
func (b *Backtester) Run(ctx context.Context, cfg RunConfig) (res *Result, err error) {
	started := time.Now()
	defer func() {
		if b.recorder == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		b.recorder.RecordRun(status, time.Since(started))
		if res != nil {
			b.recorder.RecordResult(res)
		}
	}()

	series, err := b.provider.LoadDaily(ctx)
	if err != nil {
		return nil, err
	}
	if len(series.Bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no historical data available")
	}
	intraday, err := b.provider.LoadIntraday(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ticker := series.Ticker
	if cfg.Ticker != "" {
		ticker = cfg.Ticker
	}
	if ticker == "" {
		ticker = "Unknown"
	}

	closes := make([]float64, len(series.Bars))
	for i, bar := range series.Bars {
		closes[i] = bar.Close.InexactFloat64()
	}
	full := indicator.Annotate(closes)

	daily, offset := collector.FilterDaily(series.Bars, cfg.Start)
	if len(daily) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no daily bars on or after %s", core.DayKey(cfg.Start))
	}
	frame := full.Slice(offset)
	intraday = collector.FilterIntraday(intraday, cfg.Start)

	runID := newRunID()
	log := logger.ForRun(b.logger, runID, ticker)
	log.Info("starting simulation",
		zap.String("from", core.DayKey(daily[0].Date)),
		zap.String("to", core.DayKey(daily[len(daily)-1].Date)),
		zap.Int("daily_bars", len(daily)),
		zap.Int("intraday_bars", len(intraday)),
		zap.Int("warmup_bars", offset),
		zap.String("source", b.provider.Name()),
	)

	gate := strategy.NewGate(cfg.Params, cfg.Conditions, log)
	engine, err := NewEngine(cfg.Params, ticker, gate, log)
	if err != nil {
		return nil, err
	}

	res, err = engine.Run(daily, frame, intraday)
	if err != nil {
		log.Error("simulation failed", zap.Error(err))
		return nil, err
	}
	res.RunID = runID
	res.Series = series.Bars
	res.Indicators = full

	log.Info("simulation complete",
		zap.Int("trades", res.Stats.TotalTrades),
		zap.Float64("win_rate", res.Stats.WinRate),
		logger.Money("liquidity", res.Stats.FinalLiquidity),
		logger.Money("contributions", res.Stats.TotalContributions),
		zap.Float64("total_return_pct", res.Stats.TotalReturn),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
