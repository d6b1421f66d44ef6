package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/swingsim/internal/collector"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
)

// validSymbol matches stock symbols like AAPL, VRT, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo loads daily and intraday history from the Yahoo Finance chart API
type Yahoo struct {
	client   *http.Client
	baseURL  string
	symbol   string
	start    time.Time
	end      time.Time
	interval string
}

// New creates a Yahoo provider for cfg.Ticker. cfg.Interval is the intraday
// bar size; an empty interval disables intraday loading.
func New(cfg collector.Config) (*Yahoo, error) {
	if err := validateSymbol(cfg.Ticker); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	end := cfg.End
	if end.IsZero() {
		end = time.Now()
	}
	start := cfg.Start
	if start.IsZero() {
		start = end.AddDate(-2, 0, 0)
	}
	return &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  defaultBaseURL,
		symbol:   cfg.Ticker,
		start:    start,
		end:      end,
		interval: cfg.Interval,
	}, nil
}

// Factory adapts New to collector.Factory.
func Factory(cfg collector.Config) (collector.Provider, error) {
	return New(cfg)
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// LoadDaily fetches 1d bars up to the configured end, starting a year before
// the configured start so the longest indicator windows are warm by then.
func (y *Yahoo) LoadDaily(ctx context.Context) (*collector.DailySeries, error) {
	r, err := y.fetch(ctx, "1d", y.start.AddDate(-1, 0, 0))
	if err != nil {
		return nil, err
	}

	quotes := r.Indicators.Quote[0]
	bars := make([]core.DailyBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if !quotes.complete(i) {
			continue // Skip missing data
		}
		bars = append(bars, core.DailyBar{
			Date:   core.Day(time.Unix(int64(ts), 0).UTC()),
			Open:   decimal.NewFromFloat(*quotes.Open[i]),
			High:   decimal.NewFromFloat(*quotes.High[i]),
			Low:    decimal.NewFromFloat(*quotes.Low[i]),
			Close:  decimal.NewFromFloat(*quotes.Close[i]),
			Volume: quotes.volume(i),
		})
	}
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no daily bars for %s", y.symbol)
	}

	return &collector.DailySeries{Ticker: y.symbol, Bars: bars}, nil
}

// LoadIntraday fetches bars of the configured interval.
func (y *Yahoo) LoadIntraday(ctx context.Context) ([]core.IntradayBar, error) {
	if y.interval == "" {
		return nil, nil
	}
	r, err := y.fetch(ctx, y.toYahooInterval(y.interval), y.start)
	if err != nil {
		return nil, err
	}

	quotes := r.Indicators.Quote[0]
	bars := make([]core.IntradayBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if !quotes.complete(i) {
			continue
		}
		bars = append(bars, core.IntradayBar{
			Time:   time.Unix(int64(ts), 0).UTC(),
			Open:   decimal.NewFromFloat(*quotes.Open[i]),
			High:   decimal.NewFromFloat(*quotes.High[i]),
			Low:    decimal.NewFromFloat(*quotes.Low[i]),
			Close:  decimal.NewFromFloat(*quotes.Close[i]),
			Volume: quotes.volume(i),
		})
	}
	return bars, nil
}

func (y *Yahoo) fetch(ctx context.Context, interval string, from time.Time) (*chartResult, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(y.end.Unix()))
	endpoint := fmt.Sprintf("%s/%s?%s", y.baseURL, y.toYahooSymbol(y.symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrMalformedInput, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no data for symbol: %s", y.symbol)
	}

	return &result.Chart.Result[0], nil
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

func (y *Yahoo) toYahooInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m", "90m", "1d":
		return interval
	case "1h", "60m":
		return "60m"
	default:
		return "30m"
	}
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

func (q quoteIndicator) complete(i int) bool {
	return i < len(q.Open) && i < len(q.High) && i < len(q.Low) && i < len(q.Close) &&
		q.Open[i] != nil && q.High[i] != nil && q.Low[i] != nil && q.Close[i] != nil
}

func (q quoteIndicator) volume(i int) int64 {
	if i < len(q.Volume) && q.Volume[i] != nil {
		return *q.Volume[i]
	}
	return 0
}
