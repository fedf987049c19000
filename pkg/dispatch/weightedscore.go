// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"sort"

	"github.com/jontk/cgsim-dispatcher/pkg/analytics"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

// WeightedScore is the reference weighted-score placement policy: over a
// priority-ordered site list, score every feasible host by speed/cores
// and its best candidate disk by bandwidth/storage, and place the job on
// the argmax. A host with no disk able to hold the job's footprint is
// treated as infeasible rather than scored with a sentinel "no disk"
// value.
type WeightedScore struct {
	Base

	grid       *model.Grid
	calc       *analytics.ScoreCalculator
	workloadFn func(n int) []*job.Job
}

// NewWeightedScore builds a WeightedScore policy with the given resource
// weights (normalized internally). workloadFn may be nil, same as FirstFit.
func NewWeightedScore(weights analytics.ResourceWeights, workloadFn func(n int) []*job.Job) *WeightedScore {
	return &WeightedScore{
		calc:       analytics.NewScoreCalculatorWithWeights(weights),
		workloadFn: workloadFn,
	}
}

// NewDefaultWeightedScore builds a WeightedScore policy using
// analytics.DefaultResourceWeights.
func NewDefaultWeightedScore(workloadFn func(n int) []*job.Job) *WeightedScore {
	return &WeightedScore{
		calc:       analytics.NewScoreCalculator(),
		workloadFn: workloadFn,
	}
}

func (p *WeightedScore) GetWorkload(n int) []*job.Job {
	if p.workloadFn == nil {
		return nil
	}
	return p.workloadFn(n)
}

func (p *WeightedScore) ProvideTopology(grid *model.Grid) { p.grid = grid }

type scoredHost struct {
	site  model.SiteID
	host  model.HostID
	disk  model.DiskID
	total float64
}

func (p *WeightedScore) AssignJob(j *job.Job) *job.Job {
	if p.grid == nil {
		j.Status = job.StatusFailed
		return j
	}

	needed := j.TotalBytes()
	sites := p.prioritizedSites()

	var best *scoredHost
	for _, siteID := range sites {
		site := p.grid.Site(siteID)
		for _, hostID := range site.Hosts() {
			host := p.grid.Host(hostID)
			if host == nil || host.CoresAvailable() < j.CoresRequested {
				continue
			}

			diskID, diskScore, ok := p.bestDiskScore(hostID, needed)
			if !ok {
				continue
			}

			hostScore := p.calc.HostScore(host.SpeedFlopsPerSec/1e8, host.CoresAvailable())
			total := p.calc.CombinedScore(hostScore, diskScore)

			cand := &scoredHost{site: siteID, host: hostID, disk: diskID, total: total}
			if best == nil || total > best.total ||
				(total == best.total && p.grid.Host(hostID).Name < p.grid.Host(best.host).Name) {
				best = cand
			}
		}
	}

	if best == nil {
		j.Status = job.StatusPending
		return j
	}

	j.Placement = &job.Placement{Site: best.site, Host: best.host, Disk: best.disk}
	j.Status = job.StatusAssigned
	return j
}

// bestDiskScore returns the highest-scoring disk on hostID with enough
// free space for bytesNeeded, or ok=false if none qualifies.
func (p *WeightedScore) bestDiskScore(hostID model.HostID, bytesNeeded int64) (model.DiskID, float64, bool) {
	host := p.grid.Host(hostID)
	best := model.DiskID(model.Invalid)
	var bestScore float64
	found := false
	for _, diskID := range host.Disks() {
		disk := p.grid.Disk(diskID)
		if disk == nil || disk.Free < bytesNeeded {
			continue
		}
		score := p.calc.DiskScore(disk.ReadBW/1e6, disk.WriteBW/1e6, disk.Free)
		if !found || score > bestScore {
			best, bestScore, found = diskID, score, true
		}
	}
	return best, bestScore, found
}

// prioritizedSites orders sites by descending Priority, then ascending
// name for determinism among equal priorities.
func (p *WeightedScore) prioritizedSites() []model.SiteID {
	ids := p.grid.SortedSiteIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		si, sj := p.grid.Site(ids[i]), p.grid.Site(ids[j])
		return si.Priority > sj.Priority
	})
	return ids
}
