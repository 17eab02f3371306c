package sim

import (
	"math"
	"time"

	"github.com/pwelter/hindcast/internal/indicator"
)

// Metrics are the summary statistics derived from one simulation outcome.
// Undefined ratios (no trades, no losing trades) are reported as zero.
type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	WinRate        float64 `json:"win_rate"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	ProfitFactor   float64 `json:"profit_factor"`
	AvgHoldBars    float64 `json:"avg_hold_bars"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	CostsPaid      float64 `json:"costs_paid"`
}

// ComputeMetrics derives the full metric set from an outcome.
func ComputeMetrics(out *Outcome, initialCapital float64) Metrics {
	m := Metrics{
		TotalTrades: len(out.Trades),
		CostsPaid:   out.CostsPaid,
	}
	if initialCapital > 0 && len(out.Equity) > 0 {
		m.TotalReturnPct = (out.FinalEquity() - initialCapital) / initialCapital * 100
	}

	var grossProfit, grossLoss float64
	var holdBars float64
	for _, t := range out.Trades {
		if t.PnL > 0 {
			m.WinningTrades++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			m.LosingTrades++
			grossLoss += -t.PnL
		}
		holdBars += float64(barsBetween(out.Equity, t.EntryDate, t.ExitDate))
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
		m.AvgHoldBars = holdBars / float64(m.TotalTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}

	m.SharpeRatio = sharpe(out)
	m.MaxDrawdown = maxDrawdown(out.Equity)
	return m
}

// sharpe annualizes the mean/stdev of per-bar returns by the bar frequency.
func sharpe(out *Outcome) float64 {
	returns := barReturns(out.Equity)
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	sd := indicator.StdDev(returns)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(out.Interval.BarsPerYear())
}

func barReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i].Equity-prev)/prev)
	}
	return out
}

// maxDrawdown returns the most negative drawdown from the running peak.
// It is always <= 0.
func maxDrawdown(equity []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (p.Equity - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

func barsBetween(equity []EquityPoint, from, to time.Time) int {
	n := 0
	for _, p := range equity {
		if p.Date.After(from) && !p.Date.After(to) {
			n++
		}
	}
	return n
}
