package sim

import (
	"time"
)

// The chart series types below are a compatibility contract with the
// consuming chart layer; field names must not change.

const chartDateLayout = "2006-01-02"

// EquityCurvePoint is one point of the equity chart.
type EquityCurvePoint struct {
	Timestamp      string  `json:"timestamp"`
	Equity         float64 `json:"equity"`
	Cash           float64 `json:"cash"`
	PositionsValue float64 `json:"positions_value"`
}

// DrawdownCurvePoint is one point of the drawdown chart.
type DrawdownCurvePoint struct {
	Timestamp string  `json:"timestamp"`
	Drawdown  float64 `json:"drawdown"`
	Peak      float64 `json:"peak"`
	Equity    float64 `json:"equity"`
}

// TradeDistribution is the P&L histogram plus per-trade detail rows.
type TradeDistribution struct {
	Buckets []int    `json:"buckets"`
	Labels  []string `json:"labels"`
	Details []Trade  `json:"details"`
}

// MonthlyReturns holds the month-by-month return table. Data is one row of
// twelve monthly values per year; months without coverage are zero.
type MonthlyReturns struct {
	Months  []string    `json:"months"`
	Returns []float64   `json:"returns"`
	Years   []int       `json:"years"`
	Data    [][]float64 `json:"data"`
}

// EquityCurve converts the raw equity points into the chart contract shape.
func EquityCurve(out *Outcome) []EquityCurvePoint {
	curve := make([]EquityCurvePoint, len(out.Equity))
	for i, p := range out.Equity {
		curve[i] = EquityCurvePoint{
			Timestamp:      p.Date.Format(chartDateLayout),
			Equity:         p.Equity,
			Cash:           p.Cash,
			PositionsValue: p.PositionsValue,
		}
	}
	return curve
}

// DrawdownCurve derives the drawdown chart from the equity points.
func DrawdownCurve(out *Outcome) []DrawdownCurvePoint {
	curve := make([]DrawdownCurvePoint, len(out.Equity))
	var peak float64
	for i, p := range out.Equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Equity - peak) / peak
		}
		curve[i] = DrawdownCurvePoint{
			Timestamp: p.Date.Format(chartDateLayout),
			Drawdown:  dd,
			Peak:      peak,
			Equity:    p.Equity,
		}
	}
	return curve
}

var distributionBounds = []struct {
	label string
	upper float64 // exclusive upper bound on pnl_pct
}{
	{"<-5%", -5},
	{"-5..-2%", -2},
	{"-2..0%", 0},
	{"0..2%", 2},
	{"2..5%", 5},
	{">5%", 0}, // catch-all, upper unused
}

// Distribution buckets closed trades by their percentage P&L.
func Distribution(out *Outcome) TradeDistribution {
	dist := TradeDistribution{
		Buckets: make([]int, len(distributionBounds)),
		Labels:  make([]string, len(distributionBounds)),
		Details: out.Trades,
	}
	for i, b := range distributionBounds {
		dist.Labels[i] = b.label
	}
	if dist.Details == nil {
		dist.Details = []Trade{}
	}
	for _, t := range out.Trades {
		dist.Buckets[bucketFor(t.PnLPct)]++
	}
	return dist
}

func bucketFor(pnlPct float64) int {
	for i, b := range distributionBounds[:len(distributionBounds)-1] {
		if pnlPct < b.upper {
			return i
		}
	}
	return len(distributionBounds) - 1
}

var monthLabels = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Monthly aggregates per-bar equity into month-over-month returns.
func Monthly(out *Outcome) MonthlyReturns {
	mr := MonthlyReturns{
		Months:  []string{},
		Returns: []float64{},
		Years:   []int{},
		Data:    [][]float64{},
	}
	if len(out.Equity) == 0 {
		return mr
	}

	// Last equity value per calendar month, in bar order.
	type monthKey struct {
		year  int
		month time.Month
	}
	var order []monthKey
	closes := make(map[monthKey]float64)
	for _, p := range out.Equity {
		k := monthKey{p.Date.Year(), p.Date.Month()}
		if _, seen := closes[k]; !seen {
			order = append(order, k)
		}
		closes[k] = p.Equity
	}

	byYear := make(map[int][]float64)
	prev := out.Equity[0].Equity
	for _, k := range order {
		ret := 0.0
		if prev > 0 {
			ret = (closes[k] - prev) / prev * 100
		}
		prev = closes[k]

		mr.Months = append(mr.Months, monthLabels[int(k.month)-1])
		mr.Returns = append(mr.Returns, ret)
		if _, seen := byYear[k.year]; !seen {
			mr.Years = append(mr.Years, k.year)
			byYear[k.year] = make([]float64, 12)
		}
		byYear[k.year][int(k.month)-1] = ret
	}
	for _, y := range mr.Years {
		mr.Data = append(mr.Data, byYear[y])
	}
	return mr
}
