// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

// FirstFit is the reference first-fit placement policy: it
// walks sites in deterministic name order and, within each, hosts in
// insertion order, committing to the first host with enough cores and a
// disk with enough free space for the job's combined file footprint. A
// job that fits nowhere is left Pending rather than Failed, so the
// executor's retry loop will reconsider it once resources free up.
type FirstFit struct {
	Base

	grid       *model.Grid
	workloadFn func(n int) []*job.Job
}

// NewFirstFit builds a FirstFit policy. workloadFn may be nil if the
// executor supplies jobs through its own WorkloadSource instead of asking
// the dispatcher for them.
func NewFirstFit(workloadFn func(n int) []*job.Job) *FirstFit {
	return &FirstFit{workloadFn: workloadFn}
}

func (p *FirstFit) GetWorkload(n int) []*job.Job {
	if p.workloadFn == nil {
		return nil
	}
	return p.workloadFn(n)
}

func (p *FirstFit) ProvideTopology(grid *model.Grid) { p.grid = grid }

func (p *FirstFit) AssignJob(j *job.Job) *job.Job {
	if p.grid == nil {
		j.Status = job.StatusFailed
		return j
	}

	needed := j.TotalBytes()
	for _, siteID := range p.grid.SortedSiteIDs() {
		hostID, diskID, ok := SelectHostFirstFit(p.grid, siteID, j.CoresRequested, needed)
		if !ok {
			continue
		}
		j.Placement = &job.Placement{Site: siteID, Host: hostID, Disk: diskID}
		j.Status = job.StatusAssigned
		return j
	}

	j.Status = job.StatusPending
	return j
}
