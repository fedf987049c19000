// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSnapshotGrid has two placement sites added out of name order plus a
// job-server pseudo-site, with uneven host counts so padding matters.
func buildSnapshotGrid(t *testing.T) *Grid {
	t.Helper()
	g := NewGrid("snap")

	b, err := g.AddSite("SITE-B", 0, 0, 1e12)
	require.NoError(t, err)
	a, err := g.AddSite("SITE-A", 0, 0, 1e12)
	require.NoError(t, err)
	js, err := g.AddSite("JOB-SERVER", 0, 0, 0)
	require.NoError(t, err)
	g.SetJobServerSite(js)

	// Added out of lexicographic order on purpose.
	_, err = g.AddHost(b, "b-cpu-1", 3e9, 8)
	require.NoError(t, err)
	_, err = g.AddHost(b, "b-cpu-0", 2e9, 16)
	require.NoError(t, err)
	_, err = g.AddHost(a, "a-cpu-0", 1e9, 4)
	require.NoError(t, err)
	return g
}

func TestSnapshotShapeAndOrdering(t *testing.T) {
	g := buildSnapshotGrid(t)
	snap := g.Snapshot()

	require.Equal(t, []string{"SITE-A", "SITE-B"}, snap.SiteNames)
	require.Equal(t, 2, g.MaxHostsPerSite())

	// Hosts sorted by name within each site, rows padded to maxC.
	assert.Equal(t, []string{"a-cpu-0", ""}, snap.HostNames[0])
	assert.Equal(t, []string{"b-cpu-0", "b-cpu-1"}, snap.HostNames[1])

	assert.Equal(t, [][]int32{{4, 0}, {16, 8}}, snap.TotalCores)
	assert.Equal(t, [][]int32{{4, 0}, {16, 8}}, snap.AvailableCores)
	assert.Equal(t, [][]float64{{1e9, 0}, {2e9, 3e9}}, snap.CoreSpeeds)
}

func TestSnapshotExcludesJobServer(t *testing.T) {
	g := buildSnapshotGrid(t)
	snap := g.Snapshot()
	assert.NotContains(t, snap.SiteNames, "JOB-SERVER")
}

func TestSnapshotDeterminism(t *testing.T) {
	g := buildSnapshotGrid(t)
	first := g.Snapshot()
	second := g.Snapshot()
	assert.Equal(t, first, second)
}

func TestSnapshotReflectsReservations(t *testing.T) {
	g := buildSnapshotGrid(t)
	site, _ := g.SiteByName("SITE-B")
	host, _ := g.Site(site).HostByName("b-cpu-0")
	require.NoError(t, g.Reserve(1, host, 6, Invalid, 0))

	snap := g.Snapshot()
	assert.Equal(t, int32(10), snap.AvailableCores[1][0])
	assert.Equal(t, int32(16), snap.TotalCores[1][0])
}
