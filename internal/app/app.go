// Package app wires configuration, market data, the simulation and its
// outputs into a single run.
package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/newthinker/swingsim/internal/collector"
	"github.com/newthinker/swingsim/internal/collector/csvfile"
	"github.com/newthinker/swingsim/internal/collector/yahoo"
	"github.com/newthinker/swingsim/internal/config"
	"github.com/newthinker/swingsim/internal/journal"
	"github.com/newthinker/swingsim/internal/metrics"
	"github.com/newthinker/swingsim/internal/report"
	"github.com/newthinker/swingsim/internal/storage/archive"
	"github.com/newthinker/swingsim/internal/strategy"
	"go.uber.org/zap"
)

// Report file names by format.
var reportFiles = map[string]string{
	report.FormatJSON: "report.json",
	report.FormatYAML: "report.yaml",
	report.FormatCSV:  "trades.csv",
	report.FormatText: "summary.txt",
}

// AnnotatedFile is the name of the annotated daily series export.
const AnnotatedFile = "series.csv"

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	collectors *collector.Registry
	conditions *strategy.Registry
	metrics    *metrics.Registry
}

// Outcome is what a run produced.
type Outcome struct {
	Result *backtest.Result
	// Reports are the files written below the report directory.
	Reports  []string
	Manifest *archive.Manifest
}

// New creates a new App instance with the csv and yahoo sources and the
// built-in entry conditions registered.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	collectors := collector.NewRegistry()
	collectors.Register("csv", csvfile.Factory)
	collectors.Register("yahoo", yahoo.Factory)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		collectors: collectors,
		conditions: strategy.NewRegistry(),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}
	return a
}

// RegisterCollector adds a market data source
func (a *App) RegisterCollector(name string, f collector.Factory) {
	a.collectors.Register(name, f)
}

// RegisterCondition adds or replaces an entry condition
func (a *App) RegisterCondition(c strategy.Condition) {
	a.conditions.Register(c)
}

// Conditions returns the entry condition registry.
func (a *App) Conditions() *strategy.Registry {
	return a.conditions
}

// Sources returns the registered market data source names.
func (a *App) Sources() []string {
	return a.collectors.Names()
}

// Metrics returns the metrics registry, nil when metrics are disabled.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Run performs one simulation and writes every configured output.
func (a *App) Run(ctx context.Context) (*Outcome, error) {
	params, err := a.cfg.Params()
	if err != nil {
		return nil, err
	}
	conditions, err := a.conditions.Select(a.cfg.Strategy.Conditions)
	if err != nil {
		return nil, err
	}
	cc, err := a.cfg.CollectorConfig()
	if err != nil {
		return nil, err
	}
	provider, err := a.collectors.Build(cc)
	if err != nil {
		return nil, err
	}

	opts := []backtest.Option{backtest.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, backtest.WithRecorder(a.metrics))
	}
	res, err := backtest.New(provider, opts...).Run(ctx, backtest.RunConfig{
		Params:     params,
		Conditions: conditions,
		Start:      cc.Start,
		Ticker:     a.cfg.Data.Ticker,
	})
	if a.metrics != nil && a.cfg.Metrics.Textfile != "" {
		if werr := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); werr != nil {
			a.logger.Warn("writing metrics textfile", zap.Error(werr))
		}
	}
	if err != nil {
		return nil, err
	}

	out := &Outcome{Result: res}

	artifacts, err := a.render(res, cc.Start)
	if err != nil {
		return out, err
	}
	if out.Reports, err = a.writeReports(res, artifacts); err != nil {
		return out, err
	}

	if a.cfg.Journal.Enabled {
		if err := a.recordJournal(ctx, res); err != nil {
			return out, err
		}
	}

	if a.cfg.Archive.Enabled {
		store, err := a.OpenArchive()
		if err != nil {
			return out, err
		}
		m, err := archive.NewRuns(store).Save(ctx, res.Ticker, res.RunID, artifacts)
		if err != nil {
			return out, fmt.Errorf("archiving run: %w", err)
		}
		out.Manifest = &m
		a.logger.Info("run archived",
			zap.String("type", a.cfg.Archive.Type),
			zap.Int("artifacts", len(m.Artifacts)),
		)
	}

	return out, nil
}

func (a *App) render(res *backtest.Result, since time.Time) ([]archive.Artifact, error) {
	var artifacts []archive.Artifact
	for _, format := range a.cfg.Report.Formats {
		data, err := report.Encode(res, format)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, archive.Artifact{Name: reportFiles[format], Data: data})
	}

	if a.cfg.Report.Annotated {
		var buf bytes.Buffer
		if err := report.WriteAnnotatedCSV(&buf, res, since); err != nil {
			return nil, fmt.Errorf("writing annotated series: %w", err)
		}
		artifacts = append(artifacts, archive.Artifact{Name: AnnotatedFile, Data: buf.Bytes()})
	}
	return artifacts, nil
}

func (a *App) writeReports(res *backtest.Result, artifacts []archive.Artifact) ([]string, error) {
	if a.cfg.Report.Dir == "" || len(artifacts) == 0 {
		return nil, nil
	}

	dir := filepath.Join(a.cfg.Report.Dir, res.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	paths := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		p := filepath.Join(dir, art.Name)
		if err := os.WriteFile(p, art.Data, 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	a.logger.Info("reports written", zap.String("dir", dir), zap.Int("files", len(paths)))
	return paths, nil
}

func (a *App) recordJournal(ctx context.Context, res *backtest.Result) error {
	j, err := a.OpenJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.RecordRun(ctx, res); err != nil {
		return fmt.Errorf("journaling run: %w", err)
	}
	a.logger.Debug("run journaled", zap.String("path", a.cfg.Journal.Path))
	return nil
}

// OpenJournal opens the configured trade journal.
func (a *App) OpenJournal() (*journal.SQLite, error) {
	return journal.NewSQLite(a.cfg.Journal.Path)
}

// OpenArchive opens the configured archive storage.
func (a *App) OpenArchive() (archive.Storage, error) {
	switch a.cfg.Archive.Type {
	case "s3":
		s3 := a.cfg.Archive.S3
		return archive.NewS3(archive.S3Config{
			Bucket:    s3.Bucket,
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Prefix:    s3.Prefix,
		})
	default:
		return archive.NewLocalFS(a.cfg.Archive.Path)
	}
}
