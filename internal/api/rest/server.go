// Package rest exposes the run service over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/owamns/clinmr/internal/results"
	"github.com/owamns/clinmr/internal/runs"
	"github.com/owamns/clinmr/internal/shared/config"
	"github.com/owamns/clinmr/internal/shared/logging"
	"github.com/owamns/clinmr/pkg/jobs"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxRequestBody   = 1 << 20
)

// RunService is the part of runs.Service the API depends on.
type RunService interface {
	Jobs() []jobs.Definition
	Submit(job string, params jobs.Params) (*runs.Run, error)
	Execute(ctx context.Context, job string, params jobs.Params) (*runs.Run, error)
	Get(id uuid.UUID) (*runs.Run, error)
	List(filter runs.Filter) ([]*runs.Run, int, error)
	Results(id uuid.UUID, offset, limit int) (results.Page, error)
	WriteOutput(id uuid.UUID, w io.Writer) error
	Delete(id uuid.UUID) error
}

// API handles HTTP requests for the analytics server.
type API struct {
	service RunService
	logger  logging.Logger
}

func NewAPI(service RunService, logger logging.Logger) *API {
	return &API{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers all API routes with the provided mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/jobs", a.handleListJobs)
	mux.HandleFunc("POST /api/runs", a.handleSubmitRun)
	mux.HandleFunc("GET /api/runs", a.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", a.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", a.handleDeleteRun)
	mux.HandleFunc("GET /api/runs/{id}/results", a.handleGetResults)
	mux.HandleFunc("GET /api/runs/{id}/download", a.handleDownload)
	mux.HandleFunc("GET /healthz", a.handleHealth)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	defs := a.service.Jobs()
	resp := ListJobsResponse{Jobs: make([]JobInfo, len(defs))}
	for i, def := range defs {
		resp.Jobs[i] = toJobInfo(def)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *API) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Job) == "" {
		respondError(w, http.StatusBadRequest, "invalid request", "job is required")
		return
	}

	var (
		run *runs.Run
		err error
	)
	if req.Wait {
		run, err = a.service.Execute(r.Context(), req.Job, req.Params)
	} else {
		run, err = a.service.Submit(req.Job, req.Params)
	}
	if err != nil {
		a.respondServiceError(w, err, "failed to submit run")
		return
	}

	a.logger.Info("Run submitted", "run_id", run.ID, "job", run.Job, "wait", req.Wait)

	status := http.StatusCreated
	if req.Wait {
		status = http.StatusOK
	}
	w.Header().Set("Location", runLinks(run).Self)
	respondJSON(w, status, toRunResponse(run))
}

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := queryInt(query.Get("limit"), defaultListLimit)
	if err != nil || limit < 1 {
		respondError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
		return
	}
	limit = min(limit, maxListLimit)

	offset, err := queryInt(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "invalid offset", "offset must be a non-negative integer")
		return
	}

	filter := runs.Filter{
		Job:    query.Get("job"),
		Limit:  limit,
		Offset: offset,
	}
	if s := query.Get("status"); s != "" {
		status, ok := parseStatus(s)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid status", fmt.Sprintf("unknown status: %s", s))
			return
		}
		filter.Status = &status
	}

	list, total, err := a.service.List(filter)
	if err != nil {
		a.respondServiceError(w, err, "failed to list runs")
		return
	}

	resp := ListRunsResponse{
		Runs:   make([]RunSummary, len(list)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i, run := range list {
		resp.Runs[i] = toRunSummary(run)
	}
	if next := offset + len(list); next < total {
		resp.NextOffset = &next
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRunID(w, r)
	if !ok {
		return
	}
	run, err := a.service.Get(id)
	if err != nil {
		a.respondServiceError(w, err, "failed to get run")
		return
	}
	respondJSON(w, http.StatusOK, toRunResponse(run))
}

func (a *API) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRunID(w, r)
	if !ok {
		return
	}
	if err := a.service.Delete(id); err != nil {
		a.respondServiceError(w, err, "failed to delete run")
		return
	}
	a.logger.Info("Run deleted", "run_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRunID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	offset, err := queryInt(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "invalid offset", "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(query.Get("limit"), 0)
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, "invalid limit", "limit must be a non-negative integer")
		return
	}

	run, err := a.service.Get(id)
	if err != nil {
		a.respondServiceError(w, err, "failed to get run")
		return
	}
	page, err := a.service.Results(id, offset, limit)
	if err != nil {
		a.respondServiceError(w, err, "failed to read results")
		return
	}

	resp := ResultsResponse{
		RunID:     id.String(),
		Job:       run.Job,
		Total:     page.Total,
		Offset:    page.Offset,
		Limit:     page.Limit,
		Truncated: page.Truncated,
		Rows:      page.Rows,
	}
	if resp.Rows == nil {
		resp.Rows = []results.Row{}
	}
	if page.Truncated {
		resp.DownloadURL = runLinks(run).Download
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRunID(w, r)
	if !ok {
		return
	}
	run, err := a.service.Get(id)
	if err != nil {
		a.respondServiceError(w, err, "failed to get run")
		return
	}
	if run.Status != runs.StatusCompleted {
		a.respondServiceError(w, fmt.Errorf("%w: %s is %s", runs.ErrRunNotFinished, id, run.Status), "output not available")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.txt", run.Job, id)))
	w.WriteHeader(http.StatusOK)
	if err := a.service.WriteOutput(id, w); err != nil {
		// Headers are gone; all that is left is to log.
		a.logger.Error("Failed to stream output", "run_id", id, "error", err)
	}
}

func (a *API) respondServiceError(w http.ResponseWriter, err error, message string) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		a.logger.Error(message, "error", err)
		respondError(w, code, message, "")
		return
	}
	respondError(w, code, http.StatusText(code), err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, jobs.ErrUnknownJob), errors.Is(err, jobs.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, runs.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, runs.ErrRunNotFinished), errors.Is(err, runs.ErrRunActive):
		return http.StatusConflict
	case errors.Is(err, runs.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run ID", "run ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseStatus(s string) (runs.Status, bool) {
	status := runs.Status(strings.ToUpper(s))
	switch status {
	case runs.StatusPending, runs.StatusRunning, runs.StatusCompleted, runs.StatusFailed:
		return status, true
	}
	return "", false
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func respondJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, code int, error string, message string) {
	respondJSON(w, code, ErrorResponse{
		Error:   error,
		Message: message,
		Code:    code,
	})
}

// NewServer wires the API and an optional metrics handler behind the
// standard middleware chain.
func NewServer(cfg config.RESTConfig, service RunService, metrics http.Handler, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	NewAPI(service, logger).RegisterRoutes(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	handler := ChainMiddleware(mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger),
	)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
