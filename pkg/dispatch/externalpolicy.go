// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"

	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
	"github.com/jontk/cgsim-dispatcher/pkg/policyrpc"
)

// ExternalPolicy is the Dispatcher that defers placement to an external
// decision server over the framed tensor protocol, rather than computing
// a placement locally the way FirstFit and WeightedScore do.
type ExternalPolicy struct {
	Base
	grid       *model.Grid
	client     *policyrpc.Client
	workloadFn func(n int) []*job.Job
}

// NewExternalPolicy builds an ExternalPolicy that submits every job to
// client and pulls its workload from workloadFn.
func NewExternalPolicy(client *policyrpc.Client, workloadFn func(n int) []*job.Job) *ExternalPolicy {
	return &ExternalPolicy{client: client, workloadFn: workloadFn}
}

func (p *ExternalPolicy) GetWorkload(n int) []*job.Job {
	if p.workloadFn == nil {
		return nil
	}
	return p.workloadFn(n)
}

func (p *ExternalPolicy) ProvideTopology(grid *model.Grid) {
	p.grid = grid
}

// AssignJob runs the SBMT/WAIT exchange for j and, on a site decision,
// picks a feasible host within it uniformly at random. A Pending decision,
// whether from an all-zero response, a protocol error, or an exhausted
// reconnect, leaves j pending rather than failed: RPC faults are
// recoverable, not fatal.
func (p *ExternalPolicy) AssignJob(j *job.Job) *job.Job {
	if p.grid == nil {
		j.Status = job.StatusFailed
		return j
	}

	snap := p.grid.Snapshot()
	topo := policyrpc.Topology{
		TotalCores:     snap.TotalCores,
		AvailableCores: snap.AvailableCores,
		CoreSpeeds:     snap.CoreSpeeds,
	}
	features := policyrpc.JobFeatures{
		CoreCount:       float64(j.CoresRequested),
		NumInputFiles:   float64(len(j.InputFiles)),
		FlopsEstimate:   j.FlopsHint,
		TotalInputBytes: float64(j.TotalInputBytes()),
	}

	decision := p.client.Decide(context.Background(), p.grid, topo, features)
	if decision.Pending {
		j.Status = job.StatusPending
		return j
	}

	bytesNeeded := j.TotalBytes()

	if decision.HasHost {
		// Site-and-host form: the server chose the host too; only its
		// feasibility is checked locally.
		host := p.grid.Host(decision.Host)
		if host == nil || host.SiteID() != decision.Site || host.CoresAvailable() < j.CoresRequested {
			j.Status = job.StatusPending
			return j
		}
		diskID, ok := candidateDisk(p.grid, decision.Host, bytesNeeded)
		if !ok {
			j.Status = job.StatusPending
			return j
		}
		j.Placement = &job.Placement{Site: decision.Site, Host: decision.Host, Disk: diskID}
		j.Status = job.StatusAssigned
		return j
	}

	hostID, diskID, ok := SelectHostRandom(p.grid, decision.Site, j.CoresRequested, bytesNeeded)
	if !ok {
		j.Status = job.StatusPending
		return j
	}

	j.Placement = &job.Placement{Site: decision.Site, Host: hostID, Disk: diskID}
	j.Status = job.StatusAssigned
	return j
}
