package backtest

import (
	"time"

	"github.com/pwelter/hindcast/internal/sim"
)

// Result is the complete outcome of one backtest run. Field names of the
// chart series are a compatibility contract with the chart layer.
type Result struct {
	RunID          string    `json:"run_id"`
	Symbol         string    `json:"symbol"`
	ModelType      ModelType `json:"model_type"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"`

	Metrics sim.Metrics `json:"metrics"`

	EquityCurve       []sim.EquityCurvePoint   `json:"equity_curve"`
	DrawdownCurve     []sim.DrawdownCurvePoint `json:"drawdown_curve"`
	TradeDistribution sim.TradeDistribution    `json:"trade_distribution"`
	MonthlyReturns    sim.MonthlyReturns       `json:"monthly_returns"`

	// UsedFallback is set when any sub-model ran in degraded mode during
	// the run.
	UsedFallback bool `json:"used_fallback"`
	// DataWarnings lists non-fatal data quality findings, e.g. gaps.
	DataWarnings []string `json:"data_warnings,omitempty"`

	CompletedAt time.Time     `json:"completed_at"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}
