package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/pwelter/hindcast/internal/core"
)

// tradingDays generates n consecutive weekday bars starting at start.
func tradingDays(start time.Time, n int, close float64) []core.PriceBar {
	bars := make([]core.PriceBar, 0, n)
	d := start
	for len(bars) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			bars = append(bars, core.PriceBar{
				Date: d, Open: close, High: close, Low: close, Close: close, Volume: 1000,
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

var monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func TestSeries_Empty(t *testing.T) {
	_, err := Series("AAPL", core.Interval1d, nil, DefaultOptions())
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("expected DATA_UNAVAILABLE, got %v", err)
	}
}

func TestSeries_LengthGate(t *testing.T) {
	bars := tradingDays(monday, 50, 100)

	s, err := Series("AAPL", core.Interval1d, bars, Options{MinLength: 100, GapTolerance: 5})
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if s.Verdict != core.VerdictInsufficientLength {
		t.Errorf("Verdict = %v, want insufficient_length", s.Verdict)
	}
	// Data is kept so callers can report available length.
	if s.Len() != 50 {
		t.Errorf("Len = %d, want 50", s.Len())
	}
}

func TestSeries_OK(t *testing.T) {
	bars := tradingDays(monday, 120, 100)

	s, err := Series("AAPL", core.Interval1d, bars, DefaultOptions())
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if s.Verdict != core.VerdictOK {
		t.Errorf("Verdict = %v, want ok", s.Verdict)
	}
	if !s.CoverageStart.Equal(bars[0].Date) || !s.CoverageEnd.Equal(bars[len(bars)-1].Date) {
		t.Error("coverage range should span first to last bar")
	}
}

func TestSeries_SortsAndDedupes(t *testing.T) {
	bars := tradingDays(monday, 110, 100)
	// Shuffle a pair out of order and add a duplicate date.
	bars[3], bars[4] = bars[4], bars[3]
	dup := bars[10]
	dup.Close = 999 // later duplicate must lose to the first occurrence
	bars = append(bars, dup)

	s, err := Series("AAPL", core.Interval1d, bars, DefaultOptions())
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if s.Len() != 110 {
		t.Fatalf("Len = %d, want 110 after dedupe", s.Len())
	}
	for i := 1; i < s.Len(); i++ {
		if !s.Bars[i-1].Date.Before(s.Bars[i].Date) {
			t.Fatalf("bars not strictly ascending at %d", i)
		}
	}
	for _, b := range s.Bars {
		if b.Close == 999 {
			t.Error("duplicate date should keep the first occurrence")
		}
	}
}

func TestSeries_TrimsMalformedEdges(t *testing.T) {
	bars := tradingDays(monday, 120, 100)
	bars[0].Low = 200                 // malformed leading row
	bars[len(bars)-1].High = 1        // malformed trailing row
	interiorIdx := 60
	bars[interiorIdx].Volume = -5 // malformed interior row stays

	s, err := Series("AAPL", core.Interval1d, bars, DefaultOptions())
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if s.Len() != 118 {
		t.Fatalf("Len = %d, want 118 after trimming both edges", s.Len())
	}
	found := false
	for _, b := range s.Bars {
		if b.Volume == -5 {
			found = true
		}
	}
	if !found {
		t.Error("interior malformed row should be kept, not trimmed")
	}
}

func TestSeries_GapDetection(t *testing.T) {
	first := tradingDays(monday, 60, 100)
	// Resume 3 calendar weeks later: >5 missing weekdays.
	resume := first[len(first)-1].Date.AddDate(0, 0, 21)
	second := tradingDays(resume, 60, 100)

	s, err := Series("AAPL", core.Interval1d, append(first, second...), DefaultOptions())
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if s.Verdict != core.VerdictHasGaps {
		t.Errorf("Verdict = %v, want has_gaps", s.Verdict)
	}
}

func TestSeries_WeekendIsNotAGap(t *testing.T) {
	bars := tradingDays(monday, 120, 100)

	s, err := Series("AAPL", core.Interval1d, bars, DefaultOptions())
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if s.Verdict != core.VerdictOK {
		t.Errorf("Verdict = %v; weekends must not count as gaps", s.Verdict)
	}
}

func TestSeries_IntradayGap(t *testing.T) {
	base := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	var bars []core.PriceBar
	for i := 0; i < 120; i++ {
		bars = append(bars, core.PriceBar{
			Date: base.Add(time.Duration(i) * time.Hour),
			Open: 100, High: 100, Low: 100, Close: 100, Volume: 10,
		})
	}
	// Insert a 10-bar hole.
	bars = append(bars[:60], bars[70:]...)

	s, err := Series("AAPL", core.Interval1h, bars, DefaultOptions())
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if s.Verdict != core.VerdictHasGaps {
		t.Errorf("Verdict = %v, want has_gaps for 10 missing hourly bars", s.Verdict)
	}
}

func TestSeries_NeverMutatesPrices(t *testing.T) {
	bars := tradingDays(monday, 120, 100)
	bars[5].Close = 123.456

	s, err := Series("AAPL", core.Interval1d, bars, DefaultOptions())
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	for _, b := range s.Bars {
		if b.Date.Equal(bars[5].Date) && b.Close != 123.456 {
			t.Error("validator must not rewrite price values")
		}
	}
}
