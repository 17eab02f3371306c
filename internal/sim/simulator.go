// Package sim executes a virtual trading strategy over a predicted signal
// sequence, tracking cash, positions, and per-bar equity.
package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/predict"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss       ExitReason = "stop_loss"
	ExitTakeProfit     ExitReason = "take_profit"
	ExitSignalReversal ExitReason = "signal_reversal"
	ExitEndOfPeriod    ExitReason = "end_of_period"
)

// Config controls one simulation run.
type Config struct {
	InitialCapital float64
	// EntryThreshold is the minimum ensemble confidence to open a position.
	EntryThreshold float64
	// PositionFraction is the fraction of current equity committed per entry.
	PositionFraction float64
	CommissionRate   float64
	SlippageRate     float64
	AllowShort       bool
	// StopLossPct and TakeProfitPct are fractional offsets from the entry
	// price. Zero disables the corresponding exit.
	StopLossPct   float64
	TakeProfitPct float64
}

// DefaultConfig returns the standard simulation parameters.
func DefaultConfig(initialCapital float64) Config {
	return Config{
		InitialCapital:   initialCapital,
		EntryThreshold:   0.55,
		PositionFraction: 0.95,
		CommissionRate:   0.001,
		SlippageRate:     0.0005,
	}
}

// Validate rejects configurations the simulator cannot run with.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital))
	}
	if c.EntryThreshold < 0 || c.EntryThreshold > 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("entry threshold %v outside [0,1]", c.EntryThreshold))
	}
	if c.PositionFraction <= 0 || c.PositionFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("position fraction %v outside (0,1]", c.PositionFraction))
	}
	if c.CommissionRate < 0 || c.SlippageRate < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("negative cost rates"))
	}
	if c.StopLossPct < 0 || c.TakeProfitPct < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("negative exit offsets"))
	}
	return nil
}

// Trade is one closed round-trip. PnL is the gross price difference; costs
// are accounted separately in Outcome.CostsPaid.
type Trade struct {
	EntryDate  time.Time  `json:"entry_date"`
	ExitDate   time.Time  `json:"exit_date"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   float64    `json:"quantity"`
	PnL        float64    `json:"pnl"`
	PnLPct     float64    `json:"pnl_pct"`
	ExitReason ExitReason `json:"exit_reason"`
}

// EquityPoint is one bar's account snapshot. Equity is always exactly
// Cash + PositionsValue.
type EquityPoint struct {
	Date           time.Time
	Cash           float64
	PositionsValue float64
	Equity         float64
}

// Outcome is the raw simulation output before statistics are derived.
type Outcome struct {
	Trades    []Trade
	Equity    []EquityPoint
	CostsPaid float64
	Interval  core.Interval
}

// FinalEquity returns the equity after the last simulated bar.
func (o *Outcome) FinalEquity() float64 {
	if len(o.Equity) == 0 {
		return 0
	}
	return o.Equity[len(o.Equity)-1].Equity
}

// position is the simulator's open holding. Quantity is negative for shorts.
type position struct {
	quantity   float64
	entryPrice float64
	entryDate  time.Time
	entryIndex int
	stopPrice  float64
	takePrice  float64
}

func (p *position) long() bool { return p.quantity > 0 }

// Simulator runs the Flat -> Long/Short -> Flat state machine bar by bar.
type Simulator struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{cfg: cfg, logger: logger}, nil
}

// Run replays the prediction sequence against the series. Bars before the
// first sample are skipped; simulation ends at the last sampled bar with any
// open position force-closed.
func (s *Simulator) Run(ctx context.Context, series *core.ValidatedSeries, samples []predict.Sample) (*Outcome, error) {
	if len(samples) == 0 {
		return &Outcome{Interval: series.Interval}, nil
	}

	byDate := make(map[time.Time]predict.Sample, len(samples))
	for _, sm := range samples {
		byDate[sm.AsOfDate] = sm
	}
	firstDate := samples[0].AsOfDate
	lastDate := samples[len(samples)-1].AsOfDate

	out := &Outcome{Interval: series.Interval}
	cash := s.cfg.InitialCapital
	var pos *position

	for i, bar := range series.Bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bar.Date.Before(firstDate) {
			continue
		}
		if bar.Date.After(lastDate) {
			break
		}
		final := bar.Date.Equal(lastDate)
		sample, hasSample := byDate[bar.Date]

		// Exit checks never fire on the entry bar itself.
		if pos != nil && i > pos.entryIndex {
			if reason, price, ok := s.exitTriggered(pos, bar, sample, hasSample); ok {
				cash = s.close(out, pos, bar.Date, price, cash, reason)
				pos = nil
			}
		}
		if pos != nil && final {
			cash = s.close(out, pos, bar.Date, bar.Close, cash, ExitEndOfPeriod)
			pos = nil
		}

		if pos == nil && !final && hasSample && s.entrySignal(sample) {
			var err error
			pos, cash, err = s.open(i, bar, sample.Direction, cash, out)
			if err != nil {
				return nil, err
			}
		}

		posValue := 0.0
		if pos != nil {
			posValue = pos.quantity * bar.Close
		}
		if cash < -1e-6 {
			return nil, core.WrapError(core.ErrSimInvariant,
				fmt.Errorf("negative cash %v at %s", cash, bar.Date.Format("2006-01-02")))
		}
		out.Equity = append(out.Equity, EquityPoint{
			Date:           bar.Date,
			Cash:           cash,
			PositionsValue: posValue,
			Equity:         cash + posValue,
		})
	}

	return out, nil
}

func (s *Simulator) entrySignal(sample predict.Sample) bool {
	if sample.Direction == core.DirectionFlat {
		return false
	}
	if sample.Direction == core.DirectionDown && !s.cfg.AllowShort {
		return false
	}
	return sample.Confidence >= s.cfg.EntryThreshold
}

// exitTriggered checks exit conditions in priority order. Stop and take
// exits fill at the trigger price, not at the bar's traded extreme.
func (s *Simulator) exitTriggered(pos *position, bar core.PriceBar, sample predict.Sample, hasSample bool) (ExitReason, float64, bool) {
	if pos.stopPrice > 0 {
		if pos.long() && bar.Low <= pos.stopPrice {
			return ExitStopLoss, pos.stopPrice, true
		}
		if !pos.long() && bar.High >= pos.stopPrice {
			return ExitStopLoss, pos.stopPrice, true
		}
	}
	if pos.takePrice > 0 {
		if pos.long() && bar.High >= pos.takePrice {
			return ExitTakeProfit, pos.takePrice, true
		}
		if !pos.long() && bar.Low <= pos.takePrice {
			return ExitTakeProfit, pos.takePrice, true
		}
	}
	if hasSample && sample.Direction != core.DirectionFlat {
		if (pos.long() && sample.Direction == core.DirectionDown) ||
			(!pos.long() && sample.Direction == core.DirectionUp) {
			return ExitSignalReversal, bar.Close, true
		}
	}
	return "", 0, false
}

func (s *Simulator) open(index int, bar core.PriceBar, dir core.Direction, cash float64, out *Outcome) (*position, float64, error) {
	price := bar.Close
	if price <= 0 {
		return nil, cash, core.WrapError(core.ErrSimInvariant,
			fmt.Errorf("non-positive price %v at %s", price, bar.Date.Format("2006-01-02")))
	}
	costRate := s.cfg.CommissionRate + s.cfg.SlippageRate

	// Entries happen from flat, so equity equals cash here. Cap the
	// notional so cash covers the position plus its entry costs.
	notional := s.cfg.PositionFraction * cash
	if maxNotional := cash / (1 + costRate); notional > maxNotional {
		notional = maxNotional
	}
	quantity := notional / price
	costs := costRate * notional
	out.CostsPaid += costs

	pos := &position{
		entryPrice: price,
		entryDate:  bar.Date,
		entryIndex: index,
	}
	if dir == core.DirectionUp {
		pos.quantity = quantity
		cash -= notional + costs
		if s.cfg.StopLossPct > 0 {
			pos.stopPrice = price * (1 - s.cfg.StopLossPct)
		}
		if s.cfg.TakeProfitPct > 0 {
			pos.takePrice = price * (1 + s.cfg.TakeProfitPct)
		}
	} else {
		pos.quantity = -quantity
		cash += notional - costs
		if s.cfg.StopLossPct > 0 {
			pos.stopPrice = price * (1 + s.cfg.StopLossPct)
		}
		if s.cfg.TakeProfitPct > 0 {
			pos.takePrice = price * (1 - s.cfg.TakeProfitPct)
		}
	}

	s.logger.Debug("position opened",
		zap.String("date", bar.Date.Format("2006-01-02")),
		zap.Float64("price", price),
		zap.Float64("quantity", pos.quantity))
	return pos, cash, nil
}

// close settles the position at price and records the Trade. Returns the
// updated cash balance.
func (s *Simulator) close(out *Outcome, pos *position, date time.Time, price, cash float64, reason ExitReason) float64 {
	notional := pos.quantity * price
	costs := (s.cfg.CommissionRate + s.cfg.SlippageRate) * abs(notional)
	out.CostsPaid += costs
	cash += notional - costs

	pnl := (price - pos.entryPrice) * pos.quantity
	basis := pos.entryPrice * abs(pos.quantity)
	pnlPct := 0.0
	if basis > 0 {
		pnlPct = pnl / basis * 100
	}
	out.Trades = append(out.Trades, Trade{
		EntryDate:  pos.entryDate,
		ExitDate:   date,
		EntryPrice: pos.entryPrice,
		ExitPrice:  price,
		Quantity:   pos.quantity,
		PnL:        pnl,
		PnLPct:     pnlPct,
		ExitReason: reason,
	})

	s.logger.Debug("position closed",
		zap.String("date", date.Format("2006-01-02")),
		zap.Float64("price", price),
		zap.Float64("pnl", pnl),
		zap.String("reason", string(reason)))
	return cash
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
