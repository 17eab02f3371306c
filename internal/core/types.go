package core

import (
	"fmt"
	"strings"
	"time"
)

// Direction represents the predicted or held direction of a move.
type Direction int

const (
	DirectionDown Direction = -1
	DirectionFlat Direction = 0
	DirectionUp   Direction = 1
)

// Sign collapses a weighted vote into a Direction. Ties resolve to flat.
func Sign(v float64) Direction {
	switch {
	case v > 0:
		return DirectionUp
	case v < 0:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// Period represents a supported historical lookback range.
type Period string

const (
	Period1Mo Period = "1mo"
	Period3Mo Period = "3mo"
	Period6Mo Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
)

var periodDurations = map[Period]time.Duration{
	Period1Mo: 31 * 24 * time.Hour,
	Period3Mo: 92 * 24 * time.Hour,
	Period6Mo: 183 * 24 * time.Hour,
	Period1Y:  366 * 24 * time.Hour,
	Period2Y:  2 * 366 * 24 * time.Hour,
	Period5Y:  5 * 366 * 24 * time.Hour,
}

// ParsePeriod validates a period string.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodDurations[p]; !ok {
		return "", WrapError(ErrConfigInvalid, fmt.Errorf("unknown period %q", s))
	}
	return p, nil
}

// Duration returns the wall-clock span the period covers.
func (p Period) Duration() time.Duration {
	return periodDurations[p]
}

// PeriodCovering returns the smallest enumerated period whose span reaches
// back to start from now.
func PeriodCovering(start, now time.Time) Period {
	span := now.Sub(start)
	for _, p := range []Period{Period1Mo, Period3Mo, Period6Mo, Period1Y, Period2Y} {
		if span <= p.Duration() {
			return p
		}
	}
	return Period5Y
}

// Interval represents the bar spacing of a series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval1d:  24 * time.Hour,
}

// ParseInterval validates an interval string.
func ParseInterval(s string) (Interval, error) {
	i := Interval(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := intervalDurations[i]; !ok {
		return "", WrapError(ErrConfigInvalid, fmt.Errorf("unknown interval %q", s))
	}
	return i, nil
}

// Duration returns the bar spacing.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Intraday reports whether the interval is finer than one trading day.
func (i Interval) Intraday() bool {
	return i != Interval1d
}

// BarsPerYear returns the annualization factor for the interval, assuming
// ~252 trading days and 6.5 trading hours per session.
func (i Interval) BarsPerYear() float64 {
	const days = 252.0
	switch i {
	case Interval1d:
		return days
	case Interval1h:
		return days * 6.5
	case Interval15m:
		return days * 6.5 * 4
	case Interval5m:
		return days * 6.5 * 12
	case Interval1m:
		return days * 6.5 * 60
	default:
		return days
	}
}

// PriceBar is one trading session of OHLCV data.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Valid reports whether the bar satisfies the OHLC ordering invariant:
// low ≤ min(open,close) ≤ max(open,close) ≤ high, with non-negative volume.
func (b PriceBar) Valid() bool {
	if b.Volume < 0 || b.Low <= 0 {
		return false
	}
	lo, hi := b.Open, b.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return b.Low <= lo && hi <= b.High
}

// Verdict is the outcome of series validation.
type Verdict string

const (
	VerdictOK                 Verdict = "ok"
	VerdictInsufficientLength Verdict = "insufficient_length"
	VerdictHasGaps            Verdict = "has_gaps"
)

// ValidatedSeries is a validated, chronologically ordered bar sequence.
// It is immutable once produced; consumers must not modify Bars.
type ValidatedSeries struct {
	Symbol        string     `json:"symbol"`
	Interval      Interval   `json:"source_interval"`
	Bars          []PriceBar `json:"bars"`
	CoverageStart time.Time  `json:"coverage_start"`
	CoverageEnd   time.Time  `json:"coverage_end"`
	Verdict       Verdict    `json:"verdict"`
}

// Len returns the number of bars.
func (s *ValidatedSeries) Len() int {
	return len(s.Bars)
}

// UpTo returns the prefix of bars with date ≤ d. The returned slice shares
// backing storage with Bars; it is the sole anti-look-ahead slicing point.
func (s *ValidatedSeries) UpTo(d time.Time) []PriceBar {
	n := len(s.Bars)
	for n > 0 && s.Bars[n-1].Date.After(d) {
		n--
	}
	return s.Bars[:n]
}

// Closes extracts closing prices in bar order.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes in bar order.
func Volumes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}
