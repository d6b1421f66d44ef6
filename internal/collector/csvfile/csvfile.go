// Package csvfile loads daily and intraday bars from CSV exports.
//
// Daily files need Date, Open, High, Low, Close and Volume columns and may
// carry an Index column (benchmark return as a fraction) and a Stock column
// naming the ticker. Intraday files carry either Date and Time columns or a
// single Datetime column. Dates are read day-first. Rows above the header
// row are ignored.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/swingsim/internal/collector"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	"02-01-2006",
	"02.01.2006",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
}

// Provider reads bars from files on disk
type Provider struct {
	dailyPath    string
	intradayPath string
	ticker       string
	location     *time.Location
}

// New creates a CSV provider. cfg.Ticker is the fallback ticker when the
// daily file has no Stock column.
func New(cfg collector.Config) (*Provider, error) {
	if cfg.DailyPath == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "data.daily is required for the csv source")
	}
	loc := time.UTC
	if tz, ok := cfg.Extra["timezone"].(string); ok && tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		loc = l
	}
	return &Provider{
		dailyPath:    cfg.DailyPath,
		intradayPath: cfg.IntradayPath,
		ticker:       cfg.Ticker,
		location:     loc,
	}, nil
}

// Factory adapts New to collector.Factory.
func Factory(cfg collector.Config) (collector.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string { return "csv" }

// LoadDaily reads the daily file.
func (p *Provider) LoadDaily(ctx context.Context) (*collector.DailySeries, error) {
	f, err := os.Open(p.dailyPath)
	if err != nil {
		return nil, fmt.Errorf("opening daily data: %w", err)
	}
	defer f.Close()

	series, err := p.ReadDaily(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.dailyPath, err)
	}
	return series, nil
}

// LoadIntraday reads the intraday file. A missing path yields no bars.
func (p *Provider) LoadIntraday(ctx context.Context) ([]core.IntradayBar, error) {
	if p.intradayPath == "" {
		return nil, nil
	}
	f, err := os.Open(p.intradayPath)
	if err != nil {
		return nil, fmt.Errorf("opening intraday data: %w", err)
	}
	defer f.Close()

	bars, err := p.ReadIntraday(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.intradayPath, err)
	}
	return bars, nil
}

// ReadDaily parses a daily CSV stream.
func (p *Provider) ReadDaily(r io.Reader) (*collector.DailySeries, error) {
	tbl, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if err := tbl.require("Date", "Open", "High", "Low", "Close"); err != nil {
		return nil, err
	}

	series := &collector.DailySeries{Ticker: p.ticker}
	var stock string
	for n, row := range tbl.rows {
		raw := tbl.get(row, "Date")
		if raw == "" {
			continue
		}
		date, err := parseIn(raw, dateLayouts, p.location)
		if err != nil {
			// unparseable dates are dropped like blank rows
			continue
		}
		bar := core.DailyBar{Date: date}
		if bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, err = tbl.ohlcv(row); err != nil {
			return nil, core.Errorf(core.ErrMalformedInput, "row %d: %v", tbl.line(n), err)
		}
		if f, ok := parseIndexReturn(tbl.get(row, "Index")); ok {
			bar.IndexReturn = &f
		}
		if stock == "" {
			stock = tbl.get(row, "Stock")
		}
		series.Bars = append(series.Bars, bar)
	}

	if len(series.Bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no daily rows")
	}
	if stock != "" {
		series.Ticker = stock
	}
	sort.SliceStable(series.Bars, func(i, j int) bool { return series.Bars[i].Date.Before(series.Bars[j].Date) })
	return series, nil
}

// ReadIntraday parses an intraday CSV stream.
func (p *Provider) ReadIntraday(r io.Reader) ([]core.IntradayBar, error) {
	tbl, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if err := tbl.require("Open", "High", "Low", "Close"); err != nil {
		return nil, err
	}
	combined := tbl.has("Datetime")
	if !combined {
		if err := tbl.require("Date", "Time"); err != nil {
			return nil, err
		}
	}

	var bars []core.IntradayBar
	for n, row := range tbl.rows {
		var ts time.Time
		var perr error
		if combined {
			ts, perr = parseIn(tbl.get(row, "Datetime"), datetimeLayouts, p.location)
		} else {
			ts, perr = p.joinDateTime(tbl.get(row, "Date"), tbl.get(row, "Time"))
		}
		if perr != nil {
			continue
		}
		bar := core.IntradayBar{Time: ts}
		var err error
		if bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, err = tbl.ohlcv(row); err != nil {
			return nil, core.Errorf(core.ErrMalformedInput, "row %d: %v", tbl.line(n), err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (p *Provider) joinDateTime(date, clock string) (time.Time, error) {
	d, err := parseIn(date, dateLayouts, p.location)
	if err != nil {
		return time.Time{}, err
	}
	c, err := parseIn(clock, timeLayouts, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, p.location), nil
}

func parseIn(value string, layouts []string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// table is a CSV body keyed by trimmed header names.
type table struct {
	header int
	cols   map[string]int
	rows   [][]string
}

func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedInput, err)
	}

	for i, rec := range records {
		cols := make(map[string]int, len(rec))
		for j, name := range rec {
			cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = j
		}
		_, hasOpen := cols["Open"]
		_, hasDate := cols["Date"]
		_, hasDatetime := cols["Datetime"]
		if hasOpen && (hasDate || hasDatetime) {
			return &table{header: i, cols: cols, rows: records[i+1:]}, nil
		}
	}
	return nil, core.Errorf(core.ErrMalformedInput, "no header row with Date and Open columns")
}

func (t *table) line(n int) int { return t.header + n + 2 }

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if !t.has(c) {
			return core.Errorf(core.ErrMissingField, "column %s", c)
		}
	}
	return nil
}

func (t *table) get(row []string, col string) string {
	j, ok := t.cols[col]
	if !ok || j >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[j])
}

func (t *table) ohlcv(row []string) (o, h, l, c decimal.Decimal, v int64, err error) {
	if o, err = t.price(row, "Open"); err != nil {
		return
	}
	if h, err = t.price(row, "High"); err != nil {
		return
	}
	if l, err = t.price(row, "Low"); err != nil {
		return
	}
	if c, err = t.price(row, "Close"); err != nil {
		return
	}
	if raw := cleanNumber(t.get(row, "Volume")); raw != "" {
		var f float64
		if f, err = strconv.ParseFloat(raw, 64); err != nil {
			err = fmt.Errorf("volume %q: %w", raw, err)
			return
		}
		v = int64(f)
	}
	return
}

func (t *table) price(row []string, col string) (decimal.Decimal, error) {
	raw := cleanNumber(t.get(row, col))
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%s is empty", col)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", col, raw, err)
	}
	return d, nil
}

// cleanNumber strips currency symbols and thousands separators.
func cleanNumber(s string) string {
	return strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
}

// parseIndexReturn reads an index return as a fraction. "0.125" and "12.5%"
// are the same value.
func parseIndexReturn(v string) (float64, bool) {
	if v == "" {
		return 0, false
	}
	pct := strings.HasSuffix(v, "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "%")), 64)
	if err != nil {
		return 0, false
	}
	if pct {
		f /= 100
	}
	return f, true
}
