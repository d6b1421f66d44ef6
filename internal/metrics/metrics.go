package metrics

import (
	"time"

	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Run metrics
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram

	// Simulation metrics
	daysSimulated     prometheus.Counter
	intradayBars      prometheus.Counter
	entriesTotal      prometheus.Counter
	entryRejections   *prometheus.CounterVec
	partialSalesTotal prometheus.Counter
	closesTotal       *prometheus.CounterVec
	contributions     prometheus.Counter
	finalLiquidity    *prometheus.GaugeVec
	totalReturn       *prometheus.GaugeVec
	commissions       *prometheus.GaugeVec
	winRate           *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingsim_runs_total",
				Help: "Total number of simulation runs",
			},
			[]string{"status"},
		),

		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "swingsim_run_duration_seconds",
				Help:    "Simulation run duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
	}

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)

	// Simulation metrics
	r.daysSimulated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swingsim_days_simulated_total",
			Help: "Total number of daily bars processed",
		},
	)
	r.intradayBars = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swingsim_intraday_bars_total",
			Help: "Total number of intraday bars replayed",
		},
	)
	r.entriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swingsim_entries_total",
			Help: "Total number of positions opened",
		},
	)
	r.entryRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swingsim_entry_rejections_total",
			Help: "Total number of entry attempts rejected, by failing check",
		},
		[]string{"check"},
	)
	r.partialSalesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swingsim_partial_sales_total",
			Help: "Total number of partial sales at the first profit target",
		},
	)
	r.closesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swingsim_closes_total",
			Help: "Total number of positions closed, by reason",
		},
		[]string{"reason"},
	)
	r.contributions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swingsim_contributions_total",
			Help: "Total number of monthly contributions credited",
		},
	)
	r.finalLiquidity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingsim_final_liquidity",
			Help: "Liquidity at the end of the last run",
		},
		[]string{"ticker"},
	)
	r.totalReturn = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingsim_total_return_percent",
			Help: "Return on contributions of the last run",
		},
		[]string{"ticker"},
	)
	r.commissions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingsim_commissions",
			Help: "Commissions paid in the last run",
		},
		[]string{"ticker"},
	)
	r.winRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swingsim_win_rate_percent",
			Help: "Share of winning trades in the last run",
		},
		[]string{"ticker"},
	)

	reg.MustRegister(r.daysSimulated)
	reg.MustRegister(r.intradayBars)
	reg.MustRegister(r.entriesTotal)
	reg.MustRegister(r.entryRejections)
	reg.MustRegister(r.partialSalesTotal)
	reg.MustRegister(r.closesTotal)
	reg.MustRegister(r.contributions)
	reg.MustRegister(r.finalLiquidity)
	reg.MustRegister(r.totalReturn)
	reg.MustRegister(r.commissions)
	reg.MustRegister(r.winRate)

	return r
}

// RecordRun records a run completion.
func (r *Registry) RecordRun(status string, duration time.Duration) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// RecordResult records the counters and headline numbers of a finished run.
func (r *Registry) RecordResult(res *backtest.Result) {
	c := res.Counters
	r.daysSimulated.Add(float64(c.Days))
	r.intradayBars.Add(float64(c.IntradayBars))
	r.entriesTotal.Add(float64(c.Entries))
	r.partialSalesTotal.Add(float64(c.PartialSales))
	r.contributions.Add(float64(c.Contributions))
	for check, n := range c.Rejections {
		r.entryRejections.WithLabelValues(check).Add(float64(n))
	}
	if c.Insufficient > 0 {
		r.entryRejections.WithLabelValues("insufficient_liquidity").Add(float64(c.Insufficient))
	}
	r.closesTotal.WithLabelValues("stop_loss").Add(float64(c.StopLosses))
	r.closesTotal.WithLabelValues("profit_target").Add(float64(c.ProfitTargets))
	r.closesTotal.WithLabelValues("end_of_run").Add(float64(c.EndOfRun))

	s := res.Stats
	r.finalLiquidity.WithLabelValues(res.Ticker).Set(s.FinalLiquidity.InexactFloat64())
	r.totalReturn.WithLabelValues(res.Ticker).Set(s.TotalReturn)
	r.commissions.WithLabelValues(res.Ticker).Set(s.Commissions.InexactFloat64())
	r.winRate.WithLabelValues(res.Ticker).Set(s.WinRate)
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

var _ backtest.Recorder = (*Registry)(nil)
