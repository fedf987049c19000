// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"math/rand"
	"sort"

	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

// candidateDisk is the best disk on a host for a byte requirement: the one
// with the most free space, so a host isn't rejected just because its
// first disk happens to be nearly full.
func candidateDisk(g *model.Grid, hostID model.HostID, bytesNeeded int64) (model.DiskID, bool) {
	host := g.Host(hostID)
	if host == nil {
		return model.Invalid, false
	}
	best := model.DiskID(model.Invalid)
	var bestFree int64 = -1
	for _, did := range host.Disks() {
		disk := g.Disk(did)
		if disk == nil || disk.Free < bytesNeeded {
			continue
		}
		if disk.Free > bestFree {
			best, bestFree = did, disk.Free
		}
	}
	if best == model.DiskID(model.Invalid) {
		return model.Invalid, false
	}
	return best, true
}

// SelectHostFirstFit applies the first-fit rule restricted to a single
// nominated site: the first host, in insertion order, with
// enough free cores and a disk with enough free space.
func SelectHostFirstFit(g *model.Grid, siteID model.SiteID, cores int, bytesNeeded int64) (model.HostID, model.DiskID, bool) {
	site := g.Site(siteID)
	if site == nil {
		return model.Invalid, model.Invalid, false
	}
	for _, hid := range site.Hosts() {
		host := g.Host(hid)
		if host == nil || host.CoresAvailable() < cores {
			continue
		}
		if diskID, ok := candidateDisk(g, hid, bytesNeeded); ok {
			return hid, diskID, true
		}
	}
	return model.Invalid, model.Invalid, false
}

// SelectHostRandom picks uniformly at random among the feasible hosts in
// siteID — the local host choice made once the external policy has chosen
// a site.
func SelectHostRandom(g *model.Grid, siteID model.SiteID, cores int, bytesNeeded int64) (model.HostID, model.DiskID, bool) {
	site := g.Site(siteID)
	if site == nil {
		return model.Invalid, model.Invalid, false
	}

	type candidate struct {
		host model.HostID
		disk model.DiskID
	}
	var feasible []candidate
	for _, hid := range site.Hosts() {
		host := g.Host(hid)
		if host == nil || host.CoresAvailable() < cores {
			continue
		}
		if diskID, ok := candidateDisk(g, hid, bytesNeeded); ok {
			feasible = append(feasible, candidate{hid, diskID})
		}
	}
	if len(feasible) == 0 {
		return model.Invalid, model.Invalid, false
	}
	// Sort for determinism before the random pick, so repeated runs with
	// the same seed behave identically regardless of arena ordering.
	sort.Slice(feasible, func(i, j int) bool { return feasible[i].host < feasible[j].host })
	pick := feasible[rand.Intn(len(feasible))]
	return pick.host, pick.disk, true
}
