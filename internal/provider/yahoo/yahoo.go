package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/provider"
)

const baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Yahoo fetches OHLCV history from the Yahoo Finance v8 chart API.
type Yahoo struct {
	client *resty.Client
}

// Option configures the provider.
type Option func(*Yahoo)

// WithBaseURL overrides the chart API endpoint, used by tests.
func WithBaseURL(url string) Option {
	return func(y *Yahoo) {
		y.client.SetBaseURL(url)
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(y *Yahoo) {
		y.client.SetTimeout(d)
	}
}

// New creates a new Yahoo provider.
func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("User-Agent", "hindcast/1.0"),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format.
// Shanghai stocks: 600519.SH -> 600519.SS
func toYahooSymbol(symbol string) string {
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// Fetch retrieves raw bars for the symbol over the given range.
func (y *Yahoo) Fetch(ctx context.Context, symbol string, period core.Period, interval core.Interval) ([]core.PriceBar, error) {
	if err := provider.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	var result chartResponse
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"range":    string(period),
			"interval": string(interval),
		}).
		SetResult(&result).
		Get("/" + toYahooSymbol(symbol))
	if err != nil {
		if isTimeout(err) {
			return nil, core.WrapError(core.ErrFetchTimeout, err)
		}
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("symbol %s", symbol))
	case http.StatusTooManyRequests:
		return nil, core.WrapError(core.ErrRateLimited, fmt.Errorf("HTTP 429 for %s", symbol))
	default:
		return nil, core.WrapError(core.ErrDataUnavailable,
			fmt.Errorf("unexpected status %d for %s", resp.StatusCode(), symbol))
	}

	if result.Chart.Error != nil {
		if result.Chart.Error.Code == "Not Found" {
			return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("symbol %s", symbol))
		}
		return nil, core.WrapError(core.ErrDataUnavailable,
			fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no data for symbol %s", symbol))
	}

	r := result.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("no quote data for %s", symbol))
	}
	quotes := r.Indicators.Quote[0]

	bars := make([]core.PriceBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quotes.Open) || quotes.Open[i] == nil {
			continue // Skip missing data
		}
		var volume int64
		if quotes.Volume[i] != nil {
			volume = int64(*quotes.Volume[i])
		}
		bars = append(bars, core.PriceBar{
			Date:   time.Unix(int64(ts), 0).UTC(),
			Open:   *quotes.Open[i],
			High:   *quotes.High[i],
			Low:    *quotes.Low[i],
			Close:  *quotes.Close[i],
			Volume: volume,
		})
	}

	return bars, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
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
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	RegularMarketTime  int     `json:"regularMarketTime"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int     `json:"volume"`
}
