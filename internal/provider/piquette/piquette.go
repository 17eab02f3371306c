// Package piquette provides price history through the piquette/finance-go
// client library, used as an alternative to the raw chart API provider.
package piquette

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/provider"
)

type Piquette struct{}

func New() *Piquette {
	return &Piquette{}
}

func (p *Piquette) Name() string {
	return "piquette"
}

func toInterval(interval core.Interval) (datetime.Interval, error) {
	switch interval {
	case core.Interval1m:
		return datetime.OneMin, nil
	case core.Interval5m:
		return datetime.FiveMins, nil
	case core.Interval15m:
		return datetime.FifteenMins, nil
	case core.Interval1h:
		return datetime.OneHour, nil
	case core.Interval1d:
		return datetime.OneDay, nil
	default:
		return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported interval %q", interval))
	}
}

func toFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// Fetch retrieves bars for the symbol over the given range.
func (p *Piquette) Fetch(ctx context.Context, symbol string, period core.Period, interval core.Interval) ([]core.PriceBar, error) {
	if err := provider.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	iv, err := toInterval(interval)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	start := end.Add(-period.Duration())
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: iv,
	}
	params.Context = &ctx

	var bars []core.PriceBar
	iter := chart.Get(params)
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, core.PriceBar{
			Date:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   toFloat(b.Open),
			High:   toFloat(b.High),
			Low:    toFloat(b.Low),
			Close:  toFloat(b.Close),
			Volume: int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no data for symbol %s", symbol))
	}
	return bars, nil
}
