// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSites = `{
	"SITE-B": {
		"SITE_PROPERTIES": {"gflops": "20", "storage_capacity_bytes": "2e10", "priority": "2"},
		"CPUInfo": [
			{"count": 2, "cores": 8, "speed": 2e9,
			 "disks": [{"name": "disk-0", "read_bw": "250MBps", "write_bw": "100MBps"}]}
		],
		"files": [["/data/f1.root", 500000000]]
	},
	"SITE-A": {
		"SITE_PROPERTIES": {"gflops": "10", "storage_capacity_bytes": "1e10", "priority": "1"},
		"CPUInfo": [
			{"count": 1, "cores": 4, "speed": 1e9,
			 "disks": [{"name": "disk-0", "read_bw": 1e8, "write_bw": 1e8}]}
		],
		"files": []
	}
}`

const sampleConns = `{
	"SITE-A:SITE-B": {"bandwidth": "1GBps", "latency": "10ms"},
	"JOB-SERVER:SITE-A": {"bandwidth": "500MBps", "latency": "1ms"},
	"malformed": {"bandwidth": "1GBps"}
}`

func writeDocs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	sites := filepath.Join(dir, "sites.json")
	conns := filepath.Join(dir, "connections.json")
	require.NoError(t, os.WriteFile(sites, []byte(sampleSites), 0o644))
	require.NoError(t, os.WriteFile(conns, []byte(sampleConns), 0o644))
	return sites, conns
}

func TestBuildGrid(t *testing.T) {
	sites, conns := writeDocs(t)
	loader := NewLoader(sites, conns, nil, nil)

	grid, registry, links, err := loader.BuildGrid("test-grid")
	require.NoError(t, err)

	// Sites inserted in sorted name order, plus the job-server pseudo-site.
	siteA, ok := grid.SiteByName("SITE-A")
	require.True(t, ok)
	siteB, ok := grid.SiteByName("SITE-B")
	require.True(t, ok)
	js, ok := grid.SiteByName(JobServerSiteName)
	require.True(t, ok)
	assert.Equal(t, js, grid.JobServerSite())

	assert.Equal(t, 1, grid.Site(siteA).Priority)
	assert.Equal(t, 10.0, grid.Site(siteA).GflopsPerCoreHint)
	assert.Equal(t, int64(1e10), grid.Site(siteA).TotalStorageBytes)

	// SITE-B's single CPU group with count 2 becomes two hosts.
	require.Len(t, grid.Site(siteB).Hosts(), 2)
	host0, ok := grid.Site(siteB).HostByName("SITE-B_cpu-0")
	require.True(t, ok)
	assert.Equal(t, 8, grid.Host(host0).TotalCores)
	assert.Equal(t, 2e9, grid.Host(host0).SpeedFlopsPerSec)

	// Suffixed rates normalize to bytes per second; site storage is split
	// across the site's disks.
	disk, ok := grid.Host(host0).DiskByName("disk-0")
	require.True(t, ok)
	assert.Equal(t, 2.5e8, grid.Disk(disk).ReadBW)
	assert.Equal(t, 1e8, grid.Disk(disk).WriteBW)
	assert.Equal(t, int64(1e10), grid.Disk(disk).Capacity)

	// Seeded files land in the registry and charge storage.
	assert.True(t, registry.ExistsAt("/data/f1.root", "SITE-B"))
	remaining, err := registry.RemainingOn("SITE-B")
	require.NoError(t, err)
	assert.Equal(t, int64(2e10-5e8), remaining)

	// Links are symmetric lookups; the malformed key is skipped.
	assert.Equal(t, 1e9, links.Between("SITE-A", "SITE-B"))
	assert.Equal(t, 1e9, links.Between("SITE-B", "SITE-A"))
	assert.Equal(t, 5e8, links.Between("JOB-SERVER", "SITE-A"))
	assert.Equal(t, 2, links.Len())
}

func TestBuildGridSiteFilter(t *testing.T) {
	sites, conns := writeDocs(t)
	loader := NewLoader(sites, conns, []string{"SITE-A"}, nil)

	grid, _, links, err := loader.BuildGrid("filtered")
	require.NoError(t, err)

	_, ok := grid.SiteByName("SITE-A")
	assert.True(t, ok)
	_, ok = grid.SiteByName("SITE-B")
	assert.False(t, ok)

	// The A:B link is dropped with SITE-B, the job-server link kept.
	assert.Equal(t, 1, links.Len())
}

func TestBuildGridMissingDocument(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"), "", nil, nil)
	_, _, _, err := loader.BuildGrid("g")
	assert.Error(t, err)
}

func TestBuildGridDeterministicIDs(t *testing.T) {
	sites, conns := writeDocs(t)

	first, _, _, err := NewLoader(sites, conns, nil, nil).BuildGrid("g")
	require.NoError(t, err)
	second, _, _, err := NewLoader(sites, conns, nil, nil).BuildGrid("g")
	require.NoError(t, err)

	a1, _ := first.SiteByName("SITE-A")
	a2, _ := second.SiteByName("SITE-A")
	assert.Equal(t, a1, a2)

	snap1 := first.Snapshot()
	snap2 := second.Snapshot()
	assert.Equal(t, snap1, snap2)
}

func TestQuantityParsing(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`"1GBps"`, 1e9},
		{`"250MBps"`, 2.5e8},
		{`"64kBps"`, 6.4e4},
		{`"1000Bps"`, 1000},
		{`"1e8"`, 1e8},
		{`123.5`, 123.5},
		{`""`, 0},
		{`null`, 0},
	}
	for _, tt := range tests {
		var q quantity
		require.NoError(t, q.UnmarshalJSON([]byte(tt.in)), tt.in)
		assert.Equal(t, tt.want, q.BytesPerSec(), tt.in)
	}

	var q quantity
	assert.Error(t, q.UnmarshalJSON([]byte(`"fastish"`)))
}
