// Package runs executes catalogue jobs on behalf of API clients and keeps
// their history.
package runs

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/owamns/clinmr/internal/results"
	"github.com/owamns/clinmr/internal/shared/config"
	"github.com/owamns/clinmr/internal/shared/logging"
	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/local"
)

type Config struct {
	Dataset          string
	Engine           config.EngineConfig
	Model            config.ModelConfig
	Workers          int
	QueueSize        int
	MaxInlineResults int
}

type Service struct {
	config    Config
	store     Store
	workspace *Workspace
	metrics   *Metrics
	logger    logging.Logger

	pool   *local.Pool
	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(cfg Config, store Store, workspace *Workspace, metrics *Metrics, logger logging.Logger) *Service {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := local.NewPool(cfg.Workers, cfg.QueueSize)
	pool.Start()

	return &Service{
		config:    cfg,
		store:     store,
		workspace: workspace,
		metrics:   metrics,
		logger:    logger,
		pool:      pool,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Jobs lists the catalogue.
func (s *Service) Jobs() []jobs.Definition {
	return jobs.List()
}

// Submit records a pending run and queues it for execution.
func (s *Service) Submit(job string, params jobs.Params) (*Run, error) {
	run, built, err := s.prepare(job, params)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(run); err != nil {
		return nil, err
	}

	snapshot := run.clone()
	if !s.pool.TrySubmit(func() { s.execute(s.ctx, run, built) }) {
		run.Status = StatusFailed
		run.Error = ErrQueueFull.Error()
		run.CompletedAt = ptrTimeNow()
		if err := s.store.Update(run); err != nil {
			s.logger.Error("Failed to record rejected run", "run_id", run.ID.String(), "error", err)
		}
		s.metrics.rejected(run)
		return nil, ErrQueueFull
	}

	s.logger.Info("Run submitted", "run_id", run.ID.String(), "job", job)
	return snapshot, nil
}

// Execute runs the job in the caller's goroutine. A job that fails still
// returns its run, with the failure recorded on it.
func (s *Service) Execute(ctx context.Context, job string, params jobs.Params) (*Run, error) {
	run, built, err := s.prepare(job, params)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(run); err != nil {
		return nil, err
	}
	s.execute(ctx, run, built)
	return run, nil
}

func (s *Service) Get(id uuid.UUID) (*Run, error) {
	return s.store.Get(id)
}

func (s *Service) List(filter Filter) ([]*Run, int, error) {
	return s.store.List(filter)
}

// Results parses a window of a completed run's output. A non-positive limit,
// or one above the inline maximum, is replaced by the maximum.
func (s *Service) Results(id uuid.UUID, offset, limit int) (results.Page, error) {
	run, err := s.completedRun(id)
	if err != nil {
		return results.Page{}, err
	}

	lines, err := results.ReadOutput(run.OutputDir)
	if err != nil {
		return results.Page{}, err
	}

	if maxRows := s.config.MaxInlineResults; maxRows > 0 && (limit <= 0 || limit > maxRows) {
		limit = maxRows
	}
	offset = max(offset, 0)
	window := results.Paginate(lines, offset, limit)
	rows, err := results.Parse(run.Job, window)
	if err != nil {
		return results.Page{}, err
	}

	return results.Page{
		Total:     len(lines),
		Offset:    offset,
		Limit:     limit,
		Truncated: offset+len(window) < len(lines),
		Rows:      rows,
	}, nil
}

// WriteOutput copies the raw output of a completed run to w.
func (s *Service) WriteOutput(id uuid.UUID, w io.Writer) error {
	run, err := s.completedRun(id)
	if err != nil {
		return err
	}
	return results.CopyOutput(w, run.OutputDir)
}

// Delete removes a finished run and everything it wrote.
func (s *Service) Delete(id uuid.UUID) error {
	run, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if run.Active() {
		return fmt.Errorf("%w: %s is %s", ErrRunActive, id, run.Status)
	}
	if err := s.workspace.Remove(id); err != nil {
		return err
	}
	return s.store.Delete(id)
}

// RecoverInterrupted fails runs left pending or running by a previous
// process. It must be called before any new run is submitted.
func (s *Service) RecoverInterrupted() (int, error) {
	recovered := 0
	for _, status := range []Status{StatusPending, StatusRunning} {
		stale, _, err := s.store.List(Filter{Status: &status})
		if err != nil {
			return recovered, err
		}
		for _, run := range stale {
			run.Status = StatusFailed
			run.Error = "interrupted by server restart"
			run.CompletedAt = ptrTimeNow()
			if err := s.store.Update(run); err != nil {
				return recovered, err
			}
			recovered++
		}
	}
	return recovered, nil
}

// Close cancels executing runs and waits for the pool to drain.
func (s *Service) Close() {
	s.cancel()
	s.pool.Close()
}

func (s *Service) completedRun(id uuid.UUID) (*Run, error) {
	run, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if run.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunNotFinished, id, run.Status)
	}
	return run, nil
}

// prepare validates the request and fills model weights the caller left out
// from configuration.
func (s *Service) prepare(job string, params jobs.Params) (*Run, core.Job, error) {
	def, err := jobs.Get(job)
	if err != nil {
		return nil, core.Job{}, err
	}

	p := maps.Clone(params)
	if p == nil {
		p = jobs.Params{}
	}
	if s.config.Model != (config.ModelConfig{}) {
		defaults := map[string]float64{
			jobs.ParamWeightAge:     s.config.Model.WeightAge,
			jobs.ParamWeightGlucose: s.config.Model.WeightGlucose,
			jobs.ParamThreshold:     s.config.Model.Threshold,
		}
		for name, value := range defaults {
			if def.Accepts(name) && p.Get(name) == "" {
				p[name] = strconv.FormatFloat(value, 'f', -1, 64)
			}
		}
	}

	built, err := jobs.Build(job, p)
	if err != nil {
		return nil, core.Job{}, err
	}

	id := uuid.New()
	return &Run{
		ID:          id,
		Job:         job,
		Params:      p,
		Status:      StatusPending,
		OutputDir:   s.workspace.OutputDir(id, job),
		SubmittedAt: time.Now().UTC(),
	}, built, nil
}

func (s *Service) execute(ctx context.Context, run *Run, job core.Job) {
	logger := s.logger.With("run_id", run.ID.String())

	run.Status = StatusRunning
	run.StartedAt = ptrTimeNow()
	if err := s.store.Update(run); err != nil {
		logger.Error("Failed to record run start", "error", err)
	}
	s.metrics.started()

	engine := local.NewEngine(local.Config{
		Job:         job,
		Input:       s.config.Dataset,
		Output:      run.OutputDir,
		NumMappers:  s.config.Engine.Mappers,
		NumReducers: s.config.Engine.Reducers,
		Logger:      logger,
	})
	stats, err := engine.Run(ctx)

	run.CompletedAt = ptrTimeNow()
	run.Stats = stats
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		if rmErr := os.RemoveAll(run.OutputDir); rmErr != nil {
			logger.Warn("Failed to remove partial output", "dir", run.OutputDir, "error", rmErr)
		}
		logger.Error("Run failed", "job", run.Job, "error", err)
	} else {
		run.Status = StatusCompleted
		logger.Info("Run completed", "job", run.Job, "duration", run.Duration().String(),
			"records", stats.RecordsRead, "lines", stats.LinesWritten)
	}

	if err := s.store.Update(run); err != nil {
		logger.Error("Failed to record run result", "error", err)
	}
	s.metrics.finished(run)
}
