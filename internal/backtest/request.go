// Package backtest orchestrates one request/response cycle: load, validate,
// cache, predict, simulate, summarize.
package backtest

import (
	"fmt"
	"time"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/provider"
)

// ModelType selects which prediction configuration a run uses.
type ModelType string

const (
	ModelTypeLSTM      ModelType = "lstm"
	ModelTypeSentiment ModelType = "sentiment"
	ModelTypeEnsemble  ModelType = "ensemble"
)

const dateLayout = "2006-01-02"

// Request is one inbound backtest job.
type Request struct {
	Symbol         string    `json:"symbol"`
	ModelType      ModelType `json:"model_type"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	// Optional overrides; zero means use the configured default.
	EntryThreshold  float64 `json:"entry_threshold,omitempty"`
	PositionSizing  float64 `json:"position_sizing,omitempty"`
	Interval        string  `json:"interval,omitempty"`
	AllowShort      bool    `json:"allow_short,omitempty"`
	StopLossPct     float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct   float64 `json:"take_profit_pct,omitempty"`
	CommissionRate  float64 `json:"commission_rate,omitempty"`
	SlippageRate    float64 `json:"slippage_rate,omitempty"`
}

// Validated holds a parsed and checked request. Validation happens before
// any network fetch.
type Validated struct {
	Request
	Start   time.Time
	End     time.Time
	BarSpan core.Interval
}

// Validate parses and checks the request fields.
func (r Request) Validate() (*Validated, error) {
	if err := provider.ValidateSymbol(r.Symbol); err != nil {
		return nil, err
	}
	switch r.ModelType {
	case ModelTypeLSTM, ModelTypeSentiment, ModelTypeEnsemble:
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown model_type %q", r.ModelType))
	}

	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("bad start_date %q", r.StartDate))
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("bad end_date %q", r.EndDate))
	}
	if !start.Before(end) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("start_date %s must precede end_date %s", r.StartDate, r.EndDate))
	}
	if r.InitialCapital <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %v", r.InitialCapital))
	}
	if r.EntryThreshold < 0 || r.EntryThreshold > 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("entry_threshold %v outside [0,1]", r.EntryThreshold))
	}
	if r.PositionSizing < 0 || r.PositionSizing > 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("position_sizing %v outside (0,1]", r.PositionSizing))
	}

	interval := core.Interval1d
	if r.Interval != "" {
		interval, err = core.ParseInterval(r.Interval)
		if err != nil {
			return nil, err
		}
	}

	return &Validated{
		Request: r,
		Start:   start,
		End:     end,
		BarSpan: interval,
	}, nil
}
