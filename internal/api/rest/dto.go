package rest

import (
	"time"

	"github.com/owamns/clinmr/internal/results"
	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/local"
)

type SubmitRunRequest struct {
	Job    string            `json:"job"`
	Params map[string]string `json:"params,omitempty"`
	// Wait runs the job within the request and returns the finished run.
	Wait bool `json:"wait,omitempty"`
}

type RunResponse struct {
	RunID      string            `json:"run_id"`
	Job        string            `json:"job"`
	Params     map[string]string `json:"params"`
	Status     string            `json:"status"`
	Timestamps TimestampsInfo    `json:"timestamps"`
	Stats      local.Stats       `json:"stats"`
	Error      string            `json:"error,omitempty"`
	Links      Links             `json:"links"`
}

type TimestampsInfo struct {
	Submitted time.Time  `json:"submitted"`
	Started   *time.Time `json:"started"`
	Completed *time.Time `json:"completed"`
}

type Links struct {
	Self     string `json:"self"`
	Results  string `json:"results,omitempty"`
	Download string `json:"download,omitempty"`
}

type ListRunsResponse struct {
	Runs       []RunSummary `json:"runs"`
	Total      int          `json:"total"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
	NextOffset *int         `json:"next_offset,omitempty"`
}

type RunSummary struct {
	RunID       string     `json:"run_id"`
	Job         string     `json:"job"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ResultsResponse struct {
	RunID       string        `json:"run_id"`
	Job         string        `json:"job"`
	Total       int           `json:"total"`
	Offset      int           `json:"offset"`
	Limit       int           `json:"limit"`
	Truncated   bool          `json:"truncated"`
	Rows        []results.Row `json:"rows"`
	DownloadURL string        `json:"download_url,omitempty"`
}

type ListJobsResponse struct {
	Jobs []JobInfo `json:"jobs"`
}

type JobInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	MapOnly     bool         `json:"map_only"`
	Chained     bool         `json:"chained"`
	Params      []jobs.Param `json:"params"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
