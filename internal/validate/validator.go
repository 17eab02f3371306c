// Package validate turns raw provider bars into a ValidatedSeries.
// It never mutates price values; it only orders, flags, and trims.
package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/pwelter/hindcast/internal/core"
)

// DefaultMinLength is the minimum number of bars the prediction engine
// accepts as a usable history.
const DefaultMinLength = 100

// DefaultGapTolerance is the number of consecutive missing expected
// sessions tolerated before a series is flagged has_gaps.
const DefaultGapTolerance = 5

// Options control validation thresholds.
type Options struct {
	MinLength    int
	GapTolerance int
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		MinLength:    DefaultMinLength,
		GapTolerance: DefaultGapTolerance,
	}
}

// Series validates raw bars into an immutable ValidatedSeries.
// Checks run in order: non-empty, chronological de-duplication, trim of
// leading/trailing malformed rows, length gate, gap scan. A short series
// is returned with verdict insufficient_length rather than discarded so
// callers can report required-vs-available lengths.
func Series(symbol string, interval core.Interval, raw []core.PriceBar, opts Options) (*core.ValidatedSeries, error) {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.GapTolerance <= 0 {
		opts.GapTolerance = DefaultGapTolerance
	}

	if len(raw) == 0 {
		return nil, core.WrapError(core.ErrDataUnavailable,
			fmt.Errorf("no bars returned for %s", symbol))
	}

	bars := sortAndDedupe(raw)
	bars = trimMalformed(bars)

	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrDataUnavailable,
			fmt.Errorf("all %d bars for %s malformed", len(raw), symbol))
	}

	series := &core.ValidatedSeries{
		Symbol:        symbol,
		Interval:      interval,
		Bars:          bars,
		CoverageStart: bars[0].Date,
		CoverageEnd:   bars[len(bars)-1].Date,
		Verdict:       core.VerdictOK,
	}

	if len(bars) < opts.MinLength {
		series.Verdict = core.VerdictInsufficientLength
		return series, nil
	}

	if hasGaps(bars, interval, opts.GapTolerance) {
		series.Verdict = core.VerdictHasGaps
	}

	return series, nil
}

// sortAndDedupe orders bars ascending by date and drops duplicate dates,
// keeping the first occurrence. The input slice is not modified.
func sortAndDedupe(raw []core.PriceBar) []core.PriceBar {
	bars := make([]core.PriceBar, len(raw))
	copy(bars, raw)
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	out := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Date.Equal(bars[i-1].Date) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// trimMalformed drops leading and trailing rows that violate the OHLC
// invariant. Interior rows are kept as-is; values are never rewritten.
func trimMalformed(bars []core.PriceBar) []core.PriceBar {
	start := 0
	for start < len(bars) && !bars[start].Valid() {
		start++
	}
	end := len(bars)
	for end > start && !bars[end-1].Valid() {
		end--
	}
	return bars[start:end]
}

// hasGaps scans adjacent bars for runs of missing expected sessions longer
// than the tolerance. For daily data the expected sessions are weekdays;
// weekends and scattered holidays are not gaps.
func hasGaps(bars []core.PriceBar, interval core.Interval, tolerance int) bool {
	for i := 1; i < len(bars); i++ {
		var missing int
		if interval.Intraday() {
			span := bars[i].Date.Sub(bars[i-1].Date)
			missing = int(span/interval.Duration()) - 1
		} else {
			missing = missingWeekdays(bars[i-1].Date, bars[i].Date)
		}
		if missing > tolerance {
			return true
		}
	}
	return false
}

// missingWeekdays counts weekdays strictly between two dates.
func missingWeekdays(a, b time.Time) int {
	count := 0
	for d := a.AddDate(0, 0, 1); d.Before(b); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
	}
	return count
}
