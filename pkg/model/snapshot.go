// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package model

// Snapshot is the deterministic, position-stable view of the resource
// model used for feature emission to the external policy:
// sites sorted lexicographically by name, hosts within a site sorted
// lexicographically by name, rows padded with zero out to MaxHostsPerSite
// so every row has identical width regardless of how many hosts a given
// site actually has.
type Snapshot struct {
	SiteNames []string
	HostNames [][]string // [site][host], "" for padding slots

	// TotalCores, AvailableCores, and CoreSpeeds are each shaped
	// [len(SiteNames)][maxC], maxC = MaxHostsPerSite().
	TotalCores     [][]int32
	AvailableCores [][]int32
	CoreSpeeds     [][]float64
}

// Snapshot materializes the three feature matrices. Two calls against an
// unchanged Grid produce byte-identical matrices.
func (g *Grid) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	siteIDs := g.sortedSiteIDsLocked()
	maxC := g.maxHostsPerSiteLocked()

	snap := Snapshot{
		SiteNames:      make([]string, len(siteIDs)),
		HostNames:      make([][]string, len(siteIDs)),
		TotalCores:     make([][]int32, len(siteIDs)),
		AvailableCores: make([][]int32, len(siteIDs)),
		CoreSpeeds:     make([][]float64, len(siteIDs)),
	}

	for row, sid := range siteIDs {
		site := g.sites[sid]
		snap.SiteNames[row] = site.Name

		hostIDs := g.sortedHostIDsLocked(sid)

		names := make([]string, maxC)
		total := make([]int32, maxC)
		avail := make([]int32, maxC)
		speeds := make([]float64, maxC)

		for col, hid := range hostIDs {
			h := g.hosts[hid]
			names[col] = h.Name
			total[col] = int32(h.TotalCores)
			avail[col] = int32(h.coresAvailable)
			speeds[col] = h.SpeedFlopsPerSec
		}

		snap.HostNames[row] = names
		snap.TotalCores[row] = total
		snap.AvailableCores[row] = avail
		snap.CoreSpeeds[row] = speeds
	}

	return snap
}

// sortedSiteIDsLocked/sortedHostIDsLocked/maxHostsPerSiteLocked duplicate
// the public sorting helpers in grid.go but assume g.mu is already held, so
// Snapshot can use them without recursively locking.
func (g *Grid) sortedSiteIDsLocked() []SiteID {
	ids := make([]SiteID, 0, len(g.sites))
	for _, s := range g.sites {
		if s.id == g.jobServerSite {
			continue
		}
		ids = append(ids, s.id)
	}
	sortSiteIDsByName(ids, g.sites)
	return ids
}

func (g *Grid) sortedHostIDsLocked(siteID SiteID) []HostID {
	site := g.sites[siteID]
	ids := make([]HostID, len(site.hosts))
	copy(ids, site.hosts)
	sortHostIDsByName(ids, g.hosts)
	return ids
}

func (g *Grid) maxHostsPerSiteLocked() int {
	max := 0
	for _, id := range g.sortedSiteIDsLocked() {
		if n := len(g.sites[id].hosts); n > max {
			max = n
		}
	}
	return max
}
