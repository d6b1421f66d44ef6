package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/newthinker/swingsim/internal/collector"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahoo_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	y, err := New(collector.Config{Ticker: "VRT"})
	require.NoError(t, err)
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_InvalidSymbol(t *testing.T) {
	_, err := New(collector.Config{Ticker: "not a symbol"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	y := &Yahoo{}
	for _, tc := range tests {
		got := y.toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestYahoo_ToYahooInterval(t *testing.T) {
	y := &Yahoo{}
	assert.Equal(t, "30m", y.toYahooInterval("30m"))
	assert.Equal(t, "60m", y.toYahooInterval("1h"))
	assert.Equal(t, "30m", y.toYahooInterval("weird"))
}

const chartJSON = `{"chart":{"result":[{"timestamp":[1704204000,1704290400,1704376800],
"indicators":{"quote":[{"open":[100.5,null,102],"high":[103,104,105],"low":[99,100,101],
"close":[102,103,104],"volume":[1000,1100,null]}]}}],"error":null}}`

type seenRequest struct {
	path  string
	query url.Values
}

func newTestYahoo(t *testing.T, body string, status int) (*Yahoo, *seenRequest) {
	t.Helper()
	seen := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.query = r.URL.Query()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	y, err := New(collector.Config{
		Ticker:   "VRT",
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Interval: "30m",
	})
	require.NoError(t, err)
	y.baseURL = srv.URL
	return y, seen
}

func TestYahoo_LoadDaily(t *testing.T) {
	y, req := newTestYahoo(t, chartJSON, http.StatusOK)

	series, err := y.LoadDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "VRT", series.Ticker)
	require.Len(t, series.Bars, 2, "bar with a missing open is skipped")
	assert.Equal(t, "100.5", series.Bars[0].Open.String())
	assert.Equal(t, int64(0), series.Bars[1].Volume)
	assert.Equal(t, "2024-01-02", core.DayKey(series.Bars[0].Date))
	assert.Equal(t, "1d", req.query.Get("interval"))
	assert.Equal(t, "/VRT", req.path)
}

func TestYahoo_LoadDailyRequestsWarmupHistory(t *testing.T) {
	y, req := newTestYahoo(t, chartJSON, http.StatusOK)

	_, err := y.LoadDaily(context.Background())
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	period1, err := strconv.ParseInt(req.query.Get("period1"), 10, 64)
	require.NoError(t, err)
	assert.Less(t, period1, start.Unix(), "daily history starts before the window")
	assert.Equal(t, start.AddDate(-1, 0, 0).Unix(), period1)
	assert.Equal(t, "1706745600", req.query.Get("period2"))
}

func TestYahoo_LoadIntraday(t *testing.T) {
	y, req := newTestYahoo(t, chartJSON, http.StatusOK)

	bars, err := y.LoadIntraday(context.Background())
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, "30m", req.query.Get("interval"))
	assert.Equal(t, "1704067200", req.query.Get("period1"), "intraday starts at the window")
}

func TestYahoo_LoadIntradayDisabled(t *testing.T) {
	y, _ := newTestYahoo(t, chartJSON, http.StatusOK)
	y.interval = ""

	bars, err := y.LoadIntraday(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestYahoo_Errors(t *testing.T) {
	y, _ := newTestYahoo(t, `{}`, http.StatusInternalServerError)
	_, err := y.LoadDaily(context.Background())
	assert.Error(t, err)

	y, _ = newTestYahoo(t, `{"chart":{"result":[],"error":null}}`, http.StatusOK)
	_, err = y.LoadDaily(context.Background())
	assert.ErrorIs(t, err, core.ErrNoData)

	y, _ = newTestYahoo(t, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, http.StatusOK)
	_, err = y.LoadDaily(context.Background())
	assert.ErrorContains(t, err, "No data found")
}
