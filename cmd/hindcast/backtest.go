package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pwelter/hindcast/internal/backtest"
	"github.com/pwelter/hindcast/internal/logger"
)

var (
	backtestSymbols   string
	backtestFrom      string
	backtestTo        string
	backtestCapital   float64
	backtestThreshold float64
	backtestSizing    float64
	backtestInterval  string
	backtestShort     bool
	backtestStop      float64
	backtestTake      float64
	backtestJSON      bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [model]",
	Short: "Run a walk-forward backtest",
	Long: `Replay a prediction model against historical data and show
performance statistics. Model is one of: lstm, sentiment, ensemble.`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbols, "symbol", "", "Symbol to backtest, comma-separated for a batch (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 10000, "Initial capital")
	backtestCmd.Flags().Float64Var(&backtestThreshold, "threshold", 0, "Entry confidence threshold override")
	backtestCmd.Flags().Float64Var(&backtestSizing, "sizing", 0, "Position sizing fraction override")
	backtestCmd.Flags().StringVar(&backtestInterval, "interval", "", "Bar interval (1m, 5m, 15m, 1h, 1d)")
	backtestCmd.Flags().BoolVar(&backtestShort, "short", false, "Allow short positions")
	backtestCmd.Flags().Float64Var(&backtestStop, "stop", 0, "Stop loss fraction, e.g. 0.05")
	backtestCmd.Flags().Float64Var(&backtestTake, "take", 0, "Take profit fraction, e.g. 0.10")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "Emit full result as JSON")

	backtestCmd.MarkFlagRequired("symbol")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	runner, _, err := buildRunner(cfg, log)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	var reqs []backtest.Request
	for _, symbol := range strings.Split(backtestSymbols, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		reqs = append(reqs, backtest.Request{
			Symbol:         symbol,
			ModelType:      backtest.ModelType(args[0]),
			StartDate:      backtestFrom,
			EndDate:        backtestTo,
			InitialCapital: backtestCapital,
			EntryThreshold: backtestThreshold,
			PositionSizing: backtestSizing,
			Interval:       backtestInterval,
			AllowShort:     backtestShort,
			StopLossPct:    backtestStop,
			TakeProfitPct:  backtestTake,
		})
	}
	if len(reqs) == 0 {
		return fmt.Errorf("no symbols given")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var results []*backtest.Result
	if len(reqs) == 1 {
		res, err := runner.Run(ctx, reqs[0])
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		results, err = runner.RunBatch(ctx, reqs)
		if err != nil {
			return err
		}
	}

	if backtestJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, res := range results {
		printReport(res)
	}
	return nil
}

func printReport(res *backtest.Result) {
	fmt.Println("=== hindcast Backtest ===")
	fmt.Printf("Run ID:   %s\n", res.RunID)
	fmt.Printf("Symbol:   %s\n", res.Symbol)
	fmt.Printf("Model:    %s\n", res.ModelType)
	fmt.Printf("Period:   %s to %s\n", res.StartDate, res.EndDate)
	fmt.Println()
	fmt.Printf("Initial capital:  %12.2f\n", res.InitialCapital)
	fmt.Printf("Final equity:     %12.2f\n", res.FinalEquity)
	fmt.Printf("Total return:     %11.2f%%\n", res.Metrics.TotalReturnPct)
	fmt.Printf("Max drawdown:     %11.2f%%\n", res.Metrics.MaxDrawdown*100)
	fmt.Printf("Sharpe ratio:     %12.2f\n", res.Metrics.SharpeRatio)
	fmt.Printf("Profit factor:    %12.2f\n", res.Metrics.ProfitFactor)
	fmt.Printf("Win rate:         %11.2f%%\n", res.Metrics.WinRate*100)
	fmt.Printf("Trades:           %6d (%d won, %d lost)\n",
		res.Metrics.TotalTrades, res.Metrics.WinningTrades, res.Metrics.LosingTrades)
	fmt.Printf("Avg hold:         %9.1f bars\n", res.Metrics.AvgHoldBars)
	fmt.Printf("Costs paid:       %12.2f\n", res.Metrics.CostsPaid)
	if len(res.TradeDistribution.Details) > 0 {
		fmt.Println()
		fmt.Println("Trades:")
		for _, tr := range res.TradeDistribution.Details {
			fmt.Printf("  %s -> %s  %8.2f -> %8.2f  qty %8.2f  pnl %9.2f (%6.2f%%)  %s\n",
				tr.EntryDate.Format("2006-01-02"), tr.ExitDate.Format("2006-01-02"),
				tr.EntryPrice, tr.ExitPrice, tr.Quantity, tr.PnL, tr.PnLPct, tr.ExitReason)
		}
	}
	if res.UsedFallback {
		fmt.Println()
		fmt.Println("Note: one or more sub-models ran in degraded (fallback) mode.")
	}
	for _, w := range res.DataWarnings {
		fmt.Printf("Warning: %s\n", w)
	}
	fmt.Println()
}
