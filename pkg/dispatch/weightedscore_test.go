// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jontk/cgsim-dispatcher/pkg/analytics"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

func TestWeightedScorePrefersFasterBiggerHost(t *testing.T) {
	g := placementGrid(t)
	p := NewDefaultWeightedScore(nil)
	p.ProvideTopology(g)

	j := p.AssignJob(testJob(1, 1, 1e9))
	require.Equal(t, job.StatusAssigned, j.Status)

	// b-cpu-1 dominates: same speed as b-cpu-0, more free cores, and both
	// beat the slower SITE-A host.
	assert.Equal(t, "b-cpu-1", g.Host(j.Placement.Host).Name)
}

func TestWeightedScoreHostWithoutFeasibleDiskIsInfeasible(t *testing.T) {
	g := model.NewGrid("diskless")
	site, err := g.AddSite("SITE-A", 0, 10, 1e12)
	require.NoError(t, err)

	// Fast host with no disk, slow host with a disk.
	_, err = g.AddHost(site, "fast-no-disk", 9e9, 32)
	require.NoError(t, err)
	slow, err := g.AddHost(site, "slow-with-disk", 1e9, 2)
	require.NoError(t, err)
	_, err = g.AddDisk(slow, "disk-0", "/disk-0", 1e8, 1e8, 10e9)
	require.NoError(t, err)

	p := NewDefaultWeightedScore(nil)
	p.ProvideTopology(g)

	j := p.AssignJob(testJob(1, 1, 1e9))
	require.Equal(t, job.StatusAssigned, j.Status)
	assert.Equal(t, "slow-with-disk", g.Host(j.Placement.Host).Name)
}

func TestWeightedScorePendingWhenNothingFits(t *testing.T) {
	g := placementGrid(t)
	p := NewWeightedScore(analytics.DefaultResourceWeights(), nil)
	p.ProvideTopology(g)

	j := p.AssignJob(testJob(1, 64, 0))
	assert.Equal(t, job.StatusPending, j.Status)
}

func TestWeightedScoreTieBreaksByHostName(t *testing.T) {
	g := model.NewGrid("tie")
	site, err := g.AddSite("SITE-A", 0, 10, 1e12)
	require.NoError(t, err)
	for _, name := range []string{"cpu-b", "cpu-a"} {
		host, err := g.AddHost(site, name, 1e9, 4)
		require.NoError(t, err)
		_, err = g.AddDisk(host, "disk-0", "/disk-0", 1e8, 1e8, 10e9)
		require.NoError(t, err)
	}

	p := NewDefaultWeightedScore(nil)
	p.ProvideTopology(g)

	j := p.AssignJob(testJob(1, 1, 0))
	require.Equal(t, job.StatusAssigned, j.Status)
	assert.Equal(t, "cpu-a", g.Host(j.Placement.Host).Name)
}

func TestWeightedScoreRespectsSitePriority(t *testing.T) {
	g := model.NewGrid("priority")

	// Identical hardware; only site priority differs, so the totals tie.
	// Ties go to the lexicographically smaller host name, which here is the
	// higher-priority site's host.
	for _, site := range []struct {
		name     string
		priority int
	}{{"SITE-LOW", 1}, {"SITE-HIGH", 5}} {
		sid, err := g.AddSite(site.name, site.priority, 10, 1e12)
		require.NoError(t, err)
		host, err := g.AddHost(sid, site.name+"_cpu-0", 1e9, 4)
		require.NoError(t, err)
		_, err = g.AddDisk(host, "disk-0", "/disk-0", 1e8, 1e8, 10e9)
		require.NoError(t, err)
	}

	p := NewDefaultWeightedScore(nil)
	p.ProvideTopology(g)

	j := p.AssignJob(testJob(1, 1, 0))
	require.Equal(t, job.StatusAssigned, j.Status)

	high, _ := g.SiteByName("SITE-HIGH")
	assert.Equal(t, high, j.Placement.Site)
}
