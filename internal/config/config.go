package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/collector"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SWINGSIM_SIMULATION_MAX_RISK_PCT.
const EnvPrefix = "SWINGSIM"

// DateLayout is the layout of configured dates.
const DateLayout = "2006-01-02"

type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Data       DataConfig       `mapstructure:"data"`
	Report     ReportConfig     `mapstructure:"report"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// SimulationConfig holds the strategy parameters. Amounts are decimal
// strings; percentages are in percent.
type SimulationConfig struct {
	StartingCapital     string `mapstructure:"starting_capital"`
	MonthlyContribution string `mapstructure:"monthly_contribution"`
	StopLossPct         string `mapstructure:"stop_loss_pct"`
	ProfitTargetPct     string `mapstructure:"profit_target_pct"`
	MaxRiskPct          string `mapstructure:"max_risk_pct"`
	MaxTradeCost        string `mapstructure:"max_trade_cost"`
	PartialSalePct      string `mapstructure:"partial_sale_pct"`
}

type StrategyConfig struct {
	// Conditions are entry condition names, evaluated in order.
	Conditions []string `mapstructure:"conditions"`
}

type DataConfig struct {
	Source   string `mapstructure:"source"` // "csv" or "yahoo"
	Ticker   string `mapstructure:"ticker"`
	Daily    string `mapstructure:"daily"`
	Intraday string `mapstructure:"intraday"`
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
	Interval string `mapstructure:"interval"`
	Timezone string `mapstructure:"timezone"`
}

type ReportConfig struct {
	Dir       string   `mapstructure:"dir"`
	Formats   []string `mapstructure:"formats"`
	Annotated bool     `mapstructure:"annotated"`
	Summary   bool     `mapstructure:"summary"`
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Textfile is where the registry is written after a run, for the node
	// exporter textfile collector.
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load reads configuration from file on top of Defaults. An empty path
// loads defaults and environment overrides only. A .env file in the working
// directory is loaded first without overriding the existing environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.Contains(val, "${") {
			v.Set(key, os.Expand(val, os.Getenv))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return &cfg, nil
}

// Defaults returns the parameters the strategy was tuned with.
func Defaults() *Config {
	p := broker.DefaultParams()
	return &Config{
		Simulation: SimulationConfig{
			StartingCapital:     p.StartingCapital.String(),
			MonthlyContribution: p.MonthlyContribution.String(),
			StopLossPct:         p.StopLossPct.String(),
			ProfitTargetPct:     p.ProfitTargetPct.String(),
			MaxRiskPct:          p.MaxRiskPct.String(),
			MaxTradeCost:        p.MaxTradeCost.String(),
			PartialSalePct:      p.PartialSalePct.String(),
		},
		Strategy: StrategyConfig{
			Conditions: append([]string(nil), strategy.DefaultConditions...),
		},
		Data: DataConfig{
			Source:   "csv",
			Interval: "1h",
		},
		Report: ReportConfig{
			Dir:     "reports",
			Formats: []string{"json"},
			Summary: true,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "archive",
		},
		Journal: JournalConfig{
			Path: "swingsim.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("simulation.starting_capital", d.Simulation.StartingCapital)
	v.SetDefault("simulation.monthly_contribution", d.Simulation.MonthlyContribution)
	v.SetDefault("simulation.stop_loss_pct", d.Simulation.StopLossPct)
	v.SetDefault("simulation.profit_target_pct", d.Simulation.ProfitTargetPct)
	v.SetDefault("simulation.max_risk_pct", d.Simulation.MaxRiskPct)
	v.SetDefault("simulation.max_trade_cost", d.Simulation.MaxTradeCost)
	v.SetDefault("simulation.partial_sale_pct", d.Simulation.PartialSalePct)
	v.SetDefault("strategy.conditions", d.Strategy.Conditions)
	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.ticker", d.Data.Ticker)
	v.SetDefault("data.daily", d.Data.Daily)
	v.SetDefault("data.intraday", d.Data.Intraday)
	v.SetDefault("data.start", d.Data.Start)
	v.SetDefault("data.end", d.Data.End)
	v.SetDefault("data.interval", d.Data.Interval)
	v.SetDefault("data.timezone", d.Data.Timezone)
	v.SetDefault("report.dir", d.Report.Dir)
	v.SetDefault("report.formats", d.Report.Formats)
	v.SetDefault("report.annotated", d.Report.Annotated)
	v.SetDefault("report.summary", d.Report.Summary)
	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.region", "")
	v.SetDefault("archive.s3.access_key", "")
	v.SetDefault("archive.s3.secret_key", "")
	v.SetDefault("archive.s3.prefix", "")
	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.level", d.Log.Level)
}

// Params converts the simulation section to broker parameters.
func (c *Config) Params() (broker.Params, error) {
	var p broker.Params
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"starting_capital", c.Simulation.StartingCapital, &p.StartingCapital},
		{"monthly_contribution", c.Simulation.MonthlyContribution, &p.MonthlyContribution},
		{"stop_loss_pct", c.Simulation.StopLossPct, &p.StopLossPct},
		{"profit_target_pct", c.Simulation.ProfitTargetPct, &p.ProfitTargetPct},
		{"max_risk_pct", c.Simulation.MaxRiskPct, &p.MaxRiskPct},
		{"max_trade_cost", c.Simulation.MaxTradeCost, &p.MaxTradeCost},
		{"partial_sale_pct", c.Simulation.PartialSalePct, &p.PartialSalePct},
	}

	for _, f := range fields {
		d, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return broker.Params{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("simulation.%s: %q is not a number", f.name, f.raw))
		}
		*f.dst = d
	}
	return p, nil
}

// StartDate returns data.start, zero when unset.
func (c *Config) StartDate() (time.Time, error) { return parseDate("data.start", c.Data.Start) }

// EndDate returns data.end, zero when unset.
func (c *Config) EndDate() (time.Time, error) { return parseDate("data.end", c.Data.End) }

// CollectorConfig builds the market data source configuration.
func (c *Config) CollectorConfig() (collector.Config, error) {
	start, err := c.StartDate()
	if err != nil {
		return collector.Config{}, err
	}
	end, err := c.EndDate()
	if err != nil {
		return collector.Config{}, err
	}

	cc := collector.Config{
		Source:       c.Data.Source,
		Ticker:       c.Data.Ticker,
		DailyPath:    c.Data.Daily,
		IntradayPath: c.Data.Intraday,
		Start:        start,
		End:          end,
		Interval:     c.Data.Interval,
		Extra:        map[string]any{},
	}
	if c.Data.Timezone != "" {
		cc.Extra["timezone"] = c.Data.Timezone
	}
	return cc, nil
}

func parseDate(key, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{DateLayout, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, core.WrapError(core.ErrConfigInvalid,
		fmt.Errorf("%s: %q is not a date (want %s)", key, s, DateLayout))
}

var reportFormats = map[string]bool{"json": true, "yaml": true, "csv": true, "text": true}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	p, err := c.Params()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	if len(c.Strategy.Conditions) == 0 {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("strategy.conditions must name at least one condition"))
	}

	// Data validation
	switch c.Data.Source {
	case "csv":
		if c.Data.Daily == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.daily required when source is csv"))
		}
	case "yahoo":
		if c.Data.Ticker == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.ticker required when source is yahoo"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.source must be csv or yahoo, got %q", c.Data.Source))
	}

	start, err := c.StartDate()
	if err != nil {
		return err
	}
	end, err := c.EndDate()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.end %s is before data.start %s", c.Data.End, c.Data.Start))
	}
	if c.Data.Timezone != "" {
		if _, err := time.LoadLocation(c.Data.Timezone); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.timezone: %w", err))
		}
	}

	for _, f := range c.Report.Formats {
		if !reportFormats[f] {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("report.formats: unknown format %q", f))
		}
	}

	// Archive validation
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive.path required when type is localfs"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive.s3.bucket required when type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("archive.type must be localfs or s3, got %q", c.Archive.Type))
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("journal.path required when journal is enabled"))
	}

	return nil
}
