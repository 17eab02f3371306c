package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pwelter/hindcast/internal/backtest"
)

// Recorder archives completed results as JSON documents, one file per run
// under results/{symbol}/{run_id}.json.
type Recorder struct {
	storage Storage
}

func NewRecorder(storage Storage) *Recorder {
	return &Recorder{storage: storage}
}

func resultPath(result *backtest.Result) string {
	return fmt.Sprintf("results/%s/%s.json", result.Symbol, result.RunID)
}

func (r *Recorder) Record(ctx context.Context, result *backtest.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := r.storage.Write(ctx, resultPath(result), data); err != nil {
		return fmt.Errorf("archiving result %s: %w", result.RunID, err)
	}
	return nil
}

// Load reads one archived result back.
func (r *Recorder) Load(ctx context.Context, symbol, runID string) (*backtest.Result, error) {
	data, err := r.storage.Read(ctx, fmt.Sprintf("results/%s/%s.json", symbol, runID))
	if err != nil {
		return nil, err
	}
	var result backtest.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding archived result: %w", err)
	}
	return &result, nil
}

// ListRuns returns the archived run paths for a symbol.
func (r *Recorder) ListRuns(ctx context.Context, symbol string) ([]string, error) {
	return r.storage.List(ctx, "results/"+symbol)
}
