// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"sort"

	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/metrics"
)

// JobResult is one job's final record in a run report.
type JobResult struct {
	JobID     int64   `json:"job_id"`
	Status    string  `json:"status"`
	Site      string  `json:"site,omitempty"`
	Host      string  `json:"host,omitempty"`
	Retries   int     `json:"retries"`
	Enqueue   float64 `json:"enqueue"`
	Assign    float64 `json:"assign"`
	ExecStart float64 `json:"exec_start"`
	ExecDone  float64 `json:"exec_done"`
	ReadTime  float64 `json:"read_time"`
	WriteTime float64 `json:"write_time"`
}

// Report summarizes a completed simulation run: final per-job outcomes,
// aggregate counters, and the simulated clock at shutdown.
type Report struct {
	RunID        string         `json:"run_id"`
	GridName     string         `json:"grid_name"`
	SimulatedEnd float64        `json:"simulated_end"`
	Finished     int            `json:"finished"`
	Failed       int            `json:"failed"`
	Unplaced     int            `json:"unplaced"`
	Jobs         []JobResult    `json:"jobs"`
	Stats        *metrics.Stats `json:"stats,omitempty"`
}

func (e *Executor) buildReport() *Report {
	rep := &Report{
		RunID:        e.runID,
		GridName:     e.grid.Name,
		SimulatedEnd: e.kernel.Now(),
	}
	if e.metrics != nil {
		rep.Stats = e.metrics.GetStats()
	}

	ids := make([]int64, 0, len(e.jobs))
	for id := range e.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		j := e.jobs[id]
		res := JobResult{
			JobID:     j.ID,
			Status:    j.Status.String(),
			Retries:   j.Retries,
			Enqueue:   j.Timestamps.Enqueue,
			Assign:    j.Timestamps.Assign,
			ExecStart: j.Timestamps.ExecStart,
			ExecDone:  j.Timestamps.ExecDone,
			ReadTime:  j.TotalReadTime,
			WriteTime: j.TotalWriteTime,
		}
		if j.Placement != nil {
			if site := e.grid.Site(j.Placement.Site); site != nil {
				res.Site = site.Name
			}
			if host := e.grid.Host(j.Placement.Host); host != nil {
				res.Host = host.Name
			}
		}
		switch j.Status {
		case job.StatusFinished:
			rep.Finished++
		case job.StatusFailed:
			rep.Failed++
		case job.StatusPending:
			rep.Unplaced++
		}
		rep.Jobs = append(rep.Jobs, res)
	}
	return rep
}
