package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/indicator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(y int, m time.Month, d, h, minute int) time.Time {
	return time.Date(y, m, d, h, minute, 0, 0, time.UTC)
}

// sampleResult has one position closed at its second profit target and one
// still open.
func sampleResult(t *testing.T) *backtest.Result {
	t.Helper()

	l := broker.NewLedger(broker.DefaultParams())
	first := l.Open("VRT", at(2024, 1, 2, 0, 0), dec("100"), 50)
	_, err := l.PartialSale(first.Key, at(2024, 1, 5, 10, 30), dec("115"), at(2024, 1, 5, 0, 0))
	require.NoError(t, err)
	_, err = l.Close(first.Key, broker.CloseProfitTarget, at(2024, 1, 10, 11, 0), dec("133"))
	require.NoError(t, err)
	l.Open("VRT", at(2024, 1, 12, 0, 0), dec("120"), 10)

	series := []core.DailyBar{
		{Date: at(2024, 1, 1, 0, 0), Open: dec("10"), High: dec("10"), Low: dec("10"), Close: dec("10"), Volume: 100},
		{Date: at(2024, 1, 2, 0, 0), Open: dec("11"), High: dec("11"), Low: dec("11"), Close: dec("11"), Volume: 200},
		{Date: at(2024, 1, 3, 0, 0), Open: dec("12"), High: dec("12"), Low: dec("12"), Close: dec("12"), Volume: 300},
	}

	trade := backtest.NewTrade(first)
	idx := 1.25
	return &backtest.Result{
		RunID:      "run-1",
		Ticker:     "VRT",
		StartDate:  series[0].Date,
		EndDate:    series[2].Date,
		Params:     broker.DefaultParams(),
		Conditions: []string{"sma_5_10"},
		Positions:  l.All(),
		Trades:     []backtest.Trade{trade},
		Capital: broker.CapitalState{
			Liquidity:          dec("16380"),
			TotalContributions: dec("16000"),
		},
		Stats: backtest.Stats{
			TotalTrades:            1,
			WinningTrades:          1,
			WinRate:                100,
			TotalProfit:            dec("1380"),
			TotalReturn:            2.375,
			AverageWin:             27.6,
			AverageHoldDays:        8,
			Commissions:            dec("2"),
			ReturnAfterCommissions: 2.3625,
			FinalLiquidity:         dec("16380"),
			TotalContributions:     dec("16000"),
			TickerStart:            dec("10"),
			TickerEnd:              dec("12"),
			TickerReturn:           20,
			IndexReturn:            &idx,
		},
		Series:     series,
		Indicators: indicator.Annotate([]float64{10, 11, 12}),
	}
}

func TestWriteTradeSummary(t *testing.T) {
	res := sampleResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTradeSummary(&buf, res.Positions))
	out := buf.String()

	assert.Contains(t, out, "Entry 02/01/2024 @ $100.00 | SL @ $96.00 | PT @ $115.00 | Size: 50 shares | Position: $5000.00")
	assert.Contains(t, out, "Adjusted targets on 02/01/2024 | SL @ $96.00 | PT @ $115.00")
	assert.Contains(t, out, "First profit target hit on 05/01/2024 10:30 @ $115.00 | SL @ $110.40 | PT @ $132.25 | Shares sold: 15 | Total Sale: $1725.00")
	assert.Contains(t, out, "Adjusted targets on 05/01/2024 | SL @ $110.40 | PT @ $132.25")
	assert.Contains(t, out, "Profit target hit on 10/01/2024 11:00 @ $133.00 | Shares sold: 35 | Total Sale: $4655.00.")
	assert.Contains(t, out, "Total Return: 27.60% ($1380.00).")
	assert.Contains(t, out, "Entry 12/01/2024 @ $120.00")
	assert.Contains(t, out, "Still open | Shares held: 10")
	assert.Contains(t, out, "End of Trade Summary")
}

func TestWriteFinalSummary(t *testing.T) {
	res := sampleResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteFinalSummary(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "Total Profit/Loss: $1380.00")
	assert.Contains(t, out, "Total Capital: $16380.00 | Total Contributions: $16000.00")
	assert.Contains(t, out, "Total Trades Executed: 1 | Winning Trades: 1 | Losing Trades: 0 | Win Rate: 100.00%")
	assert.Contains(t, out, "Commissions: $2.00 | Return After Commissions: 2.36%")
	assert.Contains(t, out, "VRT Performance: $10.00 -> $12.00 (20.00%). S&P Return: 1.25%.")

	res.Stats.IndexReturn = nil
	buf.Reset()
	require.NoError(t, WriteFinalSummary(&buf, res))
	assert.Contains(t, buf.String(), "S&P Return: N/A.")
}

func TestEncode_JSON(t *testing.T) {
	data, err := Encode(sampleResult(t), FormatJSON)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, "2024-01-01", doc["start"])
	assert.Len(t, doc["trades"], 1)
	assert.Len(t, doc["positions"], 2)

	stats := doc["stats"].(map[string]any)
	assert.Equal(t, "1380", stats["total_profit"])
}

func TestEncode_YAML(t *testing.T) {
	data, err := Encode(sampleResult(t), FormatYAML)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "VRT", doc["ticker"])
	assert.Equal(t, []any{"sma_5_10"}, doc["conditions"])

	params := doc["params"].(map[string]any)
	assert.Equal(t, "15000", params["starting_capital"])
}

func TestEncode_CSV(t *testing.T) {
	data, err := Encode(sampleResult(t), FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "key", rows[0][0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "profit_target", rows[1][10])
	assert.Equal(t, "1380.00", rows[1][13])
	assert.Equal(t, "27.6000", rows[1][15])
}

func TestEncode_Text(t *testing.T) {
	data, err := Encode(sampleResult(t), FormatText)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Trade Summary:")
	assert.Contains(t, string(data), "Final Summary:")
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(sampleResult(t), "xml")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestWriteAnnotatedCSV(t *testing.T) {
	res := sampleResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteAnnotatedCSV(&buf, res, at(2024, 1, 2, 0, 0)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, []string{"Date", "Pos", "Ticker", "Return", "SMA3"}, header[:5])
	assert.Equal(t, []string{"Close", "Open", "Low", "High", "Volume"}, header[len(header)-5:])

	entry := rows[1]
	assert.Equal(t, "02/01/2024", entry[0])
	assert.Equal(t, "1", entry[1])
	assert.Equal(t, "VRT", entry[2])
	assert.Equal(t, "0.2760", entry[3])
	assert.Equal(t, "", entry[4], "SMA3 is still warming up")
	assert.Equal(t, "200", entry[len(entry)-1])

	plain := rows[2]
	assert.Equal(t, "03/01/2024", plain[0])
	assert.Equal(t, "", plain[1])
	assert.Equal(t, "11.0000", plain[4])
	assert.Equal(t, "12", plain[len(plain)-5])
}
