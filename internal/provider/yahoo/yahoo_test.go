package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pwelter/hindcast/internal/core"
)

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "regularMarketPrice": 150.5},
      "timestamp": [1704153600, 1704240000, 1704326400],
      "indicators": {
        "quote": [{
          "open":   [148.0, null, 150.0],
          "high":   [151.0, null, 152.5],
          "low":    [147.5, null, 149.0],
          "close":  [150.0, null, 151.0],
          "volume": [1000000, null, 1200000]
        }]
      }
    }],
    "error": null
  }
}`

func newTestProvider(handler http.HandlerFunc) (*Yahoo, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(WithBaseURL(srv.URL)), srv
}

func TestFetchParsesBars(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("range"); got != "1y" {
			t.Errorf("range = %q, want 1y", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %q, want 1d", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartBody))
	})
	defer srv.Close()

	bars, err := p.Fetch(context.Background(), "AAPL", core.Period1Y, core.Interval1d)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	// The null row is skipped.
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Close != 150.0 {
		t.Errorf("bars[0].Close = %v, want 150.0", bars[0].Close)
	}
	if bars[0].Volume != 1000000 {
		t.Errorf("bars[0].Volume = %v, want 1000000", bars[0].Volume)
	}
	if !bars[0].Date.Equal(time.Unix(1704153600, 0).UTC()) {
		t.Errorf("bars[0].Date = %v", bars[0].Date)
	}
}

func TestFetchNotFound(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := p.Fetch(context.Background(), "NOPE", core.Period1Y, core.Interval1d)
	if !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("got %v, want ErrSymbolNotFound", err)
	}
}

func TestFetchRateLimited(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := p.Fetch(context.Background(), "AAPL", core.Period1Y, core.Interval1d)
	if !errors.Is(err, core.ErrRateLimited) {
		t.Errorf("got %v, want ErrRateLimited", err)
	}
	if !core.Retryable(err) {
		t.Error("rate limited error should be retryable")
	}
}

func TestFetchServerError(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := p.Fetch(context.Background(), "AAPL", core.Period1Y, core.Interval1d)
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Errorf("got %v, want ErrDataUnavailable", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(chartBody))
	})
	defer srv.Close()
	WithTimeout(50 * time.Millisecond)(p)

	_, err := p.Fetch(context.Background(), "AAPL", core.Period1Y, core.Interval1d)
	if !errors.Is(err, core.ErrFetchTimeout) {
		t.Errorf("got %v, want ErrFetchTimeout", err)
	}
	if !core.Retryable(err) {
		t.Error("timeout error should be retryable")
	}
}

func TestFetchInvalidSymbol(t *testing.T) {
	p := New()
	_, err := p.Fetch(context.Background(), "not a symbol!!", core.Period1Y, core.Interval1d)
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("got %v, want ErrConfigInvalid", err)
	}
}

func TestToYahooSymbol(t *testing.T) {
	cases := map[string]string{
		"AAPL":      "AAPL",
		"600519.SH": "600519.SS",
		"000001.SZ": "000001.SZ",
	}
	for in, want := range cases {
		if got := toYahooSymbol(in); got != want {
			t.Errorf("toYahooSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
