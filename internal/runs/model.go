package runs

import (
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/local"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrRunNotFinished = errors.New("run has not completed")
	ErrRunActive      = errors.New("run is still active")
	ErrQueueFull      = errors.New("run queue is full")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Run is one execution of a catalogue job over the dataset.
type Run struct {
	ID        uuid.UUID
	Job       string
	Params    jobs.Params
	Status    Status
	OutputDir string

	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Stats local.Stats
	Error string
}

func (r *Run) Active() bool {
	return r.Status == StatusPending || r.Status == StatusRunning
}

// Duration is the execution time of a finished run, or zero.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

func (r *Run) clone() *Run {
	c := *r
	c.Params = maps.Clone(r.Params)
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

type Filter struct {
	Job    string
	Status *Status
	Limit  int
	Offset int
}

func (f Filter) matches(r *Run) bool {
	if f.Job != "" && r.Job != f.Job {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	return true
}

func ptrTimeNow() *time.Time {
	t := time.Now().UTC()
	return &t
}
