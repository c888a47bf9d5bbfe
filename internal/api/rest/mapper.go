package rest

import (
	"fmt"
	"maps"

	"github.com/owamns/clinmr/internal/runs"
	"github.com/owamns/clinmr/pkg/jobs"
)

func runLinks(run *runs.Run) Links {
	self := fmt.Sprintf("/api/runs/%s", run.ID)
	links := Links{Self: self}
	if run.Status == runs.StatusCompleted {
		links.Results = self + "/results"
		links.Download = self + "/download"
	}
	return links
}

func toRunResponse(run *runs.Run) RunResponse {
	params := maps.Clone(map[string]string(run.Params))
	if params == nil {
		params = map[string]string{}
	}
	return RunResponse{
		RunID:  run.ID.String(),
		Job:    run.Job,
		Params: params,
		Status: string(run.Status),
		Timestamps: TimestampsInfo{
			Submitted: run.SubmittedAt,
			Started:   run.StartedAt,
			Completed: run.CompletedAt,
		},
		Stats: run.Stats,
		Error: run.Error,
		Links: runLinks(run),
	}
}

func toRunSummary(run *runs.Run) RunSummary {
	return RunSummary{
		RunID:       run.ID.String(),
		Job:         run.Job,
		Status:      string(run.Status),
		SubmittedAt: run.SubmittedAt,
		CompletedAt: run.CompletedAt,
	}
}

func toJobInfo(def jobs.Definition) JobInfo {
	params := def.Params
	if params == nil {
		params = []jobs.Param{}
	}
	return JobInfo{
		Name:        def.Name,
		Description: def.Description,
		MapOnly:     def.MapOnly,
		Chained:     def.Chained,
		Params:      params,
	}
}
