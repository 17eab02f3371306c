package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/predict"
)

var simStart = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func seriesFrom(closes []float64) *core.ValidatedSeries {
	bars := make([]core.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = core.PriceBar{
			Date: simStart.AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return &core.ValidatedSeries{
		Symbol:        "TEST",
		Interval:      core.Interval1d,
		Bars:          bars,
		CoverageStart: bars[0].Date,
		CoverageEnd:   bars[len(bars)-1].Date,
		Verdict:       core.VerdictOK,
	}
}

// constantSamples emits the same direction and confidence on every bar.
func constantSamples(series *core.ValidatedSeries, dir core.Direction, conf float64) []predict.Sample {
	samples := make([]predict.Sample, len(series.Bars))
	for i, b := range series.Bars {
		samples[i] = predict.Sample{AsOfDate: b.Date, Direction: dir, Confidence: conf}
	}
	return samples
}

func linearCloses(n int, from, to float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n-1)
	}
	return out
}

func mustSim(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func zeroCostConfig(capital float64) Config {
	cfg := DefaultConfig(capital)
	cfg.CommissionRate = 0
	cfg.SlippageRate = 0
	return cfg
}

func TestFlatSeriesNeverTrades(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100
	}
	series := seriesFrom(closes)
	s := mustSim(t, zeroCostConfig(10000))

	// Zero confidence everywhere, as a degenerate model produces on a
	// flat series.
	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionFlat, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 0 {
		t.Errorf("got %d trades, want 0", len(out.Trades))
	}
	if out.FinalEquity() != 10000 {
		t.Errorf("final equity = %v, want exactly 10000", out.FinalEquity())
	}
}

func TestSingleBuyAndRide(t *testing.T) {
	series := seriesFrom(linearCloses(50, 100, 110))
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.5
	cfg.PositionFraction = 1.0
	s := mustSim(t, cfg)

	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionUp, 1.0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(out.Trades))
	}
	tr := out.Trades[0]
	if tr.ExitReason != ExitEndOfPeriod {
		t.Errorf("exit reason = %q, want end_of_period", tr.ExitReason)
	}
	if tr.EntryPrice != 100 {
		t.Errorf("entry price = %v, want 100", tr.EntryPrice)
	}
	if math.Abs(tr.PnLPct-10) > 1e-6 {
		t.Errorf("pnl_pct = %v, want 10", tr.PnLPct)
	}
	if math.Abs(out.FinalEquity()-11000) > 1e-6 {
		t.Errorf("final equity = %v, want 11000", out.FinalEquity())
	}
}

func TestStopLossFillsAtStopPrice(t *testing.T) {
	// Entry at 100 on bar 0, then an 8% gap down. The 5% stop fills at
	// the stop price, not the traded gap price.
	closes := []float64{100, 92, 92, 92, 92}
	series := seriesFrom(closes)
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.5
	cfg.StopLossPct = 0.05
	s := mustSim(t, cfg)

	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionUp, 1.0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) == 0 {
		t.Fatal("no trades recorded")
	}
	tr := out.Trades[0]
	if tr.ExitReason != ExitStopLoss {
		t.Errorf("exit reason = %q, want stop_loss", tr.ExitReason)
	}
	if math.Abs(tr.ExitPrice-95) > 1e-9 {
		t.Errorf("exit price = %v, want 95 (stop price)", tr.ExitPrice)
	}
	if math.Abs(tr.PnLPct-(-5)) > 1e-6 {
		t.Errorf("pnl_pct = %v, want -5", tr.PnLPct)
	}
}

func TestTakeProfitFillsAtTargetPrice(t *testing.T) {
	closes := []float64{100, 100, 112, 112, 112}
	series := seriesFrom(closes)
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.5
	cfg.TakeProfitPct = 0.10
	s := mustSim(t, cfg)

	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionUp, 1.0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) == 0 {
		t.Fatal("no trades recorded")
	}
	tr := out.Trades[0]
	if tr.ExitReason != ExitTakeProfit {
		t.Errorf("exit reason = %q, want take_profit", tr.ExitReason)
	}
	if math.Abs(tr.ExitPrice-110) > 1e-9 {
		t.Errorf("exit price = %v, want 110 (target price)", tr.ExitPrice)
	}
}

func TestSignalReversalClosesLong(t *testing.T) {
	series := seriesFrom(linearCloses(10, 100, 109))
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.5
	s := mustSim(t, cfg)

	samples := constantSamples(series, core.DirectionUp, 1.0)
	for i := 5; i < len(samples); i++ {
		samples[i].Direction = core.DirectionDown
	}

	out, err := s.Run(context.Background(), series, samples)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) == 0 {
		t.Fatal("no trades recorded")
	}
	if out.Trades[0].ExitReason != ExitSignalReversal {
		t.Errorf("exit reason = %q, want signal_reversal", out.Trades[0].ExitReason)
	}
	if !out.Trades[0].ExitDate.Equal(series.Bars[5].Date) {
		t.Errorf("exit date = %v, want bar 5", out.Trades[0].ExitDate)
	}
}

func TestShortPosition(t *testing.T) {
	series := seriesFrom(linearCloses(20, 100, 90))
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.5
	cfg.AllowShort = true
	s := mustSim(t, cfg)

	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionDown, 1.0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(out.Trades))
	}
	tr := out.Trades[0]
	if tr.Quantity >= 0 {
		t.Errorf("short quantity = %v, want negative", tr.Quantity)
	}
	if tr.PnL <= 0 {
		t.Errorf("short into falling prices pnl = %v, want positive", tr.PnL)
	}
	if out.FinalEquity() <= 10000 {
		t.Errorf("final equity = %v, want gain", out.FinalEquity())
	}
}

func TestShortDisabledByDefault(t *testing.T) {
	series := seriesFrom(linearCloses(20, 100, 90))
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.5
	s := mustSim(t, cfg)

	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionDown, 1.0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 0 {
		t.Errorf("got %d trades with shorting disabled, want 0", len(out.Trades))
	}
}

func TestEquityConservation(t *testing.T) {
	// A choppy series with costs enabled exercises entries and exits.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/4)
	}
	series := seriesFrom(closes)
	cfg := DefaultConfig(10000)
	cfg.EntryThreshold = 0.5
	cfg.StopLossPct = 0.04
	s := mustSim(t, cfg)

	samples := constantSamples(series, core.DirectionUp, 1.0)
	for i := range samples {
		if closes[i] > 105 {
			samples[i].Direction = core.DirectionDown
		}
	}

	out, err := s.Run(context.Background(), series, samples)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Equity) != len(series.Bars) {
		t.Fatalf("got %d equity points, want one per bar", len(out.Equity))
	}
	for i, p := range out.Equity {
		if math.Abs(p.Equity-(p.Cash+p.PositionsValue)) > 1e-6 {
			t.Errorf("equity point %d: equity %v != cash %v + positions %v", i, p.Equity, p.Cash, p.PositionsValue)
		}
	}
}

func TestTradeAccounting(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 8*math.Sin(float64(i)/5)
	}
	series := seriesFrom(closes)
	cfg := DefaultConfig(10000)
	cfg.EntryThreshold = 0.5
	s := mustSim(t, cfg)

	samples := constantSamples(series, core.DirectionUp, 1.0)
	for i := range samples {
		if closes[i] > 104 {
			samples[i].Direction = core.DirectionDown
		}
	}

	out, err := s.Run(context.Background(), series, samples)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) == 0 {
		t.Fatal("expected trades")
	}

	var sumPnL float64
	for _, tr := range out.Trades {
		sumPnL += tr.PnL
	}
	got := out.FinalEquity() - 10000
	want := sumPnL - out.CostsPaid
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("final-initial = %v, sum(pnl)-costs = %v", got, want)
	}
}

func TestForcedCloseAtFinalBar(t *testing.T) {
	series := seriesFrom(linearCloses(10, 100, 105))
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.5
	s := mustSim(t, cfg)

	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionUp, 1.0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(out.Trades))
	}
	tr := out.Trades[0]
	if tr.ExitReason != ExitEndOfPeriod {
		t.Errorf("exit reason = %q, want end_of_period", tr.ExitReason)
	}
	if !tr.ExitDate.Equal(series.CoverageEnd) {
		t.Errorf("exit date = %v, want final bar", tr.ExitDate)
	}
	// The final equity point is all cash.
	last := out.Equity[len(out.Equity)-1]
	if last.PositionsValue != 0 {
		t.Errorf("final positions value = %v, want 0", last.PositionsValue)
	}
}

func TestEntryThresholdGate(t *testing.T) {
	series := seriesFrom(linearCloses(20, 100, 110))
	cfg := zeroCostConfig(10000)
	cfg.EntryThreshold = 0.8
	s := mustSim(t, cfg)

	out, err := s.Run(context.Background(), series, constantSamples(series, core.DirectionUp, 0.79))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 0 {
		t.Errorf("confidence below threshold opened %d trades", len(out.Trades))
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	series := seriesFrom(linearCloses(50, 100, 110))
	s := mustSim(t, zeroCostConfig(10000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx, series, constantSamples(series, core.DirectionUp, 1.0))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{InitialCapital: 0, EntryThreshold: 0.5, PositionFraction: 0.5},
		{InitialCapital: 1000, EntryThreshold: 1.5, PositionFraction: 0.5},
		{InitialCapital: 1000, EntryThreshold: 0.5, PositionFraction: 0},
		{InitialCapital: 1000, EntryThreshold: 0.5, PositionFraction: 1.2},
		{InitialCapital: 1000, EntryThreshold: 0.5, PositionFraction: 0.5, CommissionRate: -0.1},
	}
	for i, cfg := range bad {
		if _, err := New(cfg, nil); !errors.Is(err, core.ErrConfigInvalid) {
			t.Errorf("config %d: got %v, want ErrConfigInvalid", i, err)
		}
	}
}
