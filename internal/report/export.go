package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/indicator"
	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatText = "text"
)

// Document is the serialized form of a run.
type Document struct {
	RunID      string              `json:"run_id" yaml:"run_id"`
	Ticker     string              `json:"ticker" yaml:"ticker"`
	Start      string              `json:"start" yaml:"start"`
	End        string              `json:"end" yaml:"end"`
	Params     broker.Params       `json:"params" yaml:"params"`
	Conditions []string            `json:"conditions" yaml:"conditions"`
	Capital    broker.CapitalState `json:"capital" yaml:"capital"`
	Stats      backtest.Stats      `json:"stats" yaml:"stats"`
	Trades     []backtest.Trade    `json:"trades" yaml:"trades"`
	Positions  []*broker.Position  `json:"positions" yaml:"positions"`
}

// NewDocument builds the export document of res.
func NewDocument(res *backtest.Result) Document {
	return Document{
		RunID:      res.RunID,
		Ticker:     res.Ticker,
		Start:      core.DayKey(res.StartDate),
		End:        core.DayKey(res.EndDate),
		Params:     res.Params,
		Conditions: res.Conditions,
		Capital:    res.Capital,
		Stats:      res.Stats,
		Trades:     res.Trades,
		Positions:  res.Positions,
	}
}

// Encode renders res in format.
func Encode(res *backtest.Result, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(NewDocument(res)); err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(res)); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	case FormatCSV:
		if err := WriteTradesCSV(&buf, res.Trades); err != nil {
			return nil, err
		}
	case FormatText:
		if err := WriteTradeSummary(&buf, res.Positions); err != nil {
			return nil, err
		}
		if err := WriteFinalSummary(&buf, res); err != nil {
			return nil, err
		}
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown report format %q", format)
	}
	return buf.Bytes(), nil
}

// WriteTradesCSV writes one row per trade.
func WriteTradesCSV(w io.Writer, trades []backtest.Trade) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"key", "ticker", "entry_date", "entry_price", "shares",
		"partial_shares", "partial_price", "exit_time", "exit_price", "exit_shares",
		"close_reason", "cost", "proceeds", "profit", "commission", "return_pct", "hold_days", "win",
	})
	for _, t := range trades {
		exit := ""
		if !t.ExitDate.IsZero() {
			exit = t.ExitDate.Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			strconv.Itoa(t.Key), t.Ticker, core.DayKey(t.EntryDate), t.EntryPrice.String(),
			strconv.FormatInt(t.Shares, 10),
			strconv.FormatInt(t.PartialShares, 10), t.PartialPrice.String(),
			exit, t.ExitPrice.String(), strconv.FormatInt(t.ExitShares, 10),
			string(t.CloseReason), t.Cost.StringFixed(2), t.Proceeds.StringFixed(2),
			t.Profit.StringFixed(2), t.Commission.StringFixed(4),
			formatF(t.Return, 4), strconv.Itoa(t.HoldDays), strconv.FormatBool(t.Win),
		})
	}
	cw.Flush()
	return cw.Error()
}

// annotatedColumns are the indicator columns of the annotated series export.
var annotatedColumns = []struct {
	header string
	field  string
}{
	{"SMA3", indicator.SMAField(3)},
	{"SMA5", indicator.SMAField(5)},
	{"SMA10", indicator.SMAField(10)},
	{"SMA20", indicator.SMAField(20)},
	{"SMA50", indicator.SMAField(50)},
	{"EMA3", indicator.EMAField(3)},
	{"EMA5", indicator.EMAField(5)},
	{"EMA10", indicator.EMAField(10)},
	{"EMA20", indicator.EMAField(20)},
	{"EMA50", indicator.EMAField(50)},
	{"EMA100", indicator.EMAField(100)},
	{"RSI", indicator.FieldRSI},
}

// WriteAnnotatedCSV writes the daily series with its indicators from since
// onwards, marking each entry date with the position key, ticker and
// return as a fraction of cost.
func WriteAnnotatedCSV(w io.Writer, res *backtest.Result, since time.Time) error {
	entries := make(map[string]backtest.Trade, len(res.Trades))
	for _, t := range res.Trades {
		entries[core.DayKey(t.EntryDate)] = t
	}

	header := []string{"Date", "Pos", "Ticker", "Return"}
	for _, c := range annotatedColumns {
		header = append(header, c.header)
	}
	header = append(header, "Close", "Open", "Low", "High", "Volume")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, bar := range res.Series {
		if !since.IsZero() && core.Day(bar.Date).Before(core.Day(since)) {
			continue
		}
		row := []string{bar.Date.Format(dateLayout), "", "", ""}
		if t, ok := entries[core.DayKey(bar.Date)]; ok {
			row[1] = strconv.Itoa(t.Key)
			row[2] = t.Ticker
			row[3] = formatF(t.Return/100, 4)
		}
		for _, c := range annotatedColumns {
			row = append(row, indicatorCell(res.Indicators, c.field, i))
		}
		row = append(row,
			bar.Close.String(), bar.Open.String(), bar.Low.String(), bar.High.String(),
			strconv.FormatInt(bar.Volume, 10))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func indicatorCell(f *indicator.Frame, field string, i int) string {
	if f == nil {
		return ""
	}
	v, err := f.Value(field, i)
	if err != nil || math.IsNaN(v) {
		return ""
	}
	return formatF(v, 4)
}

func formatF(f float64, prec int) string { return strconv.FormatFloat(f, 'f', prec, 64) }
