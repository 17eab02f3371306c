// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pwelter/hindcast/internal/api/job"
	"github.com/pwelter/hindcast/internal/api/response"
	"github.com/pwelter/hindcast/internal/backtest"
	"github.com/pwelter/hindcast/internal/core"
)

const backtestTimeout = 5 * time.Minute

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	runner   *backtest.Runner
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(jobStore *job.Store, runner *backtest.Runner) *BacktestHandler {
	return &BacktestHandler{
		jobStore: jobStore,
		runner:   runner,
	}
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req backtest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	// Reject malformed requests before queueing a job
	if _, err := req.Validate(); err != nil {
		response.Error(w, response.ErrorStatus(err), err)
		return
	}

	j := h.jobStore.Create("backtest")

	// Copy values before starting goroutine to avoid race
	jobID := j.ID
	status := j.Status

	go h.runBacktest(jobID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": status,
	})
}

// BatchRequest is the request body for a multi-symbol batch run.
type BatchRequest struct {
	Requests []backtest.Request `json:"requests"`
}

// CreateBatch starts one job covering several backtest requests.
func (h *BacktestHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if len(req.Requests) == 0 {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, errors.New("requests must not be empty")))
		return
	}
	for _, br := range req.Requests {
		if _, err := br.Validate(); err != nil {
			response.Error(w, response.ErrorStatus(err), err)
			return
		}
	}

	j := h.jobStore.Create("batch")
	jobID := j.ID
	status := j.Status

	go h.runBatch(jobID, req.Requests)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": status,
	})
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, req backtest.Request) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	result, err := h.runner.Run(ctx, req)

	if err != nil {
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
}

func (h *BacktestHandler) runBatch(jobID string, reqs []backtest.Request) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	results, err := h.runner.RunBatch(ctx, reqs)

	if err != nil {
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = results
	})
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobStore.Get(jobID)
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

// List returns all known jobs.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.jobStore.List())
}

func asCoreError(err error) *core.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return core.WrapError(core.ErrBacktestFailed, err)
}
