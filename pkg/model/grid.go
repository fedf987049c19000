// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"sort"
	"sync"
)

// Disk is owned by exactly one Host. Identity (name, mount) and bandwidth
// are immutable once added; Free is the only mutable field, guarded by
// the owning Grid's reservation methods.
type Disk struct {
	id       DiskID
	hostID   HostID
	Name     string
	Mount    string
	ReadBW   float64 // bytes/sec
	WriteBW  float64 // bytes/sec
	Capacity int64   // bytes
	Free     int64   // bytes, mutable
}

// ID returns the disk's stable handle.
func (d *Disk) ID() DiskID { return d.id }

// Host is identified by name; TotalCores and SpeedFlopsPerSec are
// immutable; CoresAvailable and RunningJobs are mutated only through the
// owning Grid's Reserve/Release.
type Host struct {
	id               HostID
	siteID           SiteID
	Name             string
	SpeedFlopsPerSec float64
	TotalCores       int
	coresAvailable   int
	runningJobs      map[int64]struct{}
	disks            []DiskID
	diskByName       map[string]DiskID
}

// ID returns the host's stable handle.
func (h *Host) ID() HostID { return h.id }

// SiteID returns the site that owns this host.
func (h *Host) SiteID() SiteID { return h.siteID }

// CoresAvailable returns the host's currently free core count.
func (h *Host) CoresAvailable() int { return h.coresAvailable }

// RunningJobCount returns how many jobs currently occupy cores on this host.
func (h *Host) RunningJobCount() int { return len(h.runningJobs) }

// IsRunning reports whether jobID currently occupies cores on this host.
func (h *Host) IsRunning(jobID int64) bool {
	_, ok := h.runningJobs[jobID]
	return ok
}

// Disks returns the host's disks in insertion order.
func (h *Host) Disks() []DiskID {
	out := make([]DiskID, len(h.disks))
	copy(out, h.disks)
	return out
}

// DiskByName looks up one of this host's disks by name.
func (h *Host) DiskByName(name string) (DiskID, bool) {
	id, ok := h.diskByName[name]
	return id, ok
}

// Site owns an ordered, name-unique sequence of Hosts. Priority,
// GflopsPerCoreHint, and TotalStorageBytes are immutable; CPUsInUse is
// advisory bookkeeping some policies consult.
type Site struct {
	id                SiteID
	Name              string
	Priority          int
	GflopsPerCoreHint float64
	TotalStorageBytes int64
	cpusInUse         int
	hosts             []HostID
	hostByName        map[string]HostID
}

// ID returns the site's stable handle.
func (s *Site) ID() SiteID { return s.id }

// Hosts returns the site's hosts in insertion order.
func (s *Site) Hosts() []HostID {
	out := make([]HostID, len(s.hosts))
	copy(out, s.hosts)
	return out
}

// HostByName looks up one of this site's hosts by name.
func (s *Site) HostByName(name string) (HostID, bool) {
	id, ok := s.hostByName[name]
	return id, ok
}

// CPUsInUse returns the advisory count of hosts with at least one core in
// use at this site.
func (s *Site) CPUsInUse() int { return s.cpusInUse }

// Grid owns an ordered, name-unique sequence of Sites plus the job-server
// pseudo-site, which owns no compute and is excluded from placement.
// Site/Host/Disk live in arenas here and are referenced elsewhere by
// stable integer handles rather than pointers.
type Grid struct {
	Name string

	// mu guards every mutable counter reachable from Reserve/Release:
	// Host.coresAvailable, Host.runningJobs, Disk.Free, Site.cpusInUse.
	// Structural growth (AddSite/AddHost/AddDisk) happens once at platform
	// initialization, before any concurrent access, so it is unguarded.
	mu sync.Mutex

	sites      []*Site
	siteByName map[string]SiteID
	hosts      []*Host
	disks      []*Disk

	jobServerSite SiteID
}

// NewGrid creates an empty grid with no job-server site set.
func NewGrid(name string) *Grid {
	return &Grid{
		Name:          name,
		siteByName:    make(map[string]SiteID),
		jobServerSite: Invalid,
	}
}

// AddSite appends a new site. Returns a *DuplicateNameError if the name is
// already in use.
func (g *Grid) AddSite(name string, priority int, gflopsPerCoreHint float64, totalStorageBytes int64) (SiteID, error) {
	if _, exists := g.siteByName[name]; exists {
		return Invalid, &DuplicateNameError{Kind: "site", Name: name}
	}
	id := SiteID(len(g.sites))
	g.sites = append(g.sites, &Site{
		id:                id,
		Name:              name,
		Priority:          priority,
		GflopsPerCoreHint: gflopsPerCoreHint,
		TotalStorageBytes: totalStorageBytes,
		hostByName:        make(map[string]HostID),
	})
	g.siteByName[name] = id
	return id, nil
}

// SetJobServerSite marks siteID as the job-server pseudo-site, excluded
// from placement and from the deterministic feature views.
func (g *Grid) SetJobServerSite(siteID SiteID) { g.jobServerSite = siteID }

// JobServerSite returns the job-server pseudo-site id, or Invalid if none
// was set.
func (g *Grid) JobServerSite() SiteID { return g.jobServerSite }

// AddHost appends a new host to siteID. Returns a *DuplicateNameError if the
// host name is already used within that site.
func (g *Grid) AddHost(siteID SiteID, name string, speedFlopsPerSec float64, totalCores int) (HostID, error) {
	site, err := g.site(siteID)
	if err != nil {
		return Invalid, err
	}
	if _, exists := site.hostByName[name]; exists {
		return Invalid, &DuplicateNameError{Kind: "host", Name: name}
	}
	id := HostID(len(g.hosts))
	g.hosts = append(g.hosts, &Host{
		id:               id,
		siteID:           siteID,
		Name:             name,
		SpeedFlopsPerSec: speedFlopsPerSec,
		TotalCores:       totalCores,
		coresAvailable:   totalCores,
		runningJobs:      make(map[int64]struct{}),
		diskByName:       make(map[string]DiskID),
	})
	site.hosts = append(site.hosts, id)
	site.hostByName[name] = id
	return id, nil
}

// AddDisk appends a new disk to hostID. Returns a *DuplicateNameError if the
// disk name is already used on that host.
func (g *Grid) AddDisk(hostID HostID, name, mount string, readBW, writeBW float64, capacity int64) (DiskID, error) {
	host, err := g.host(hostID)
	if err != nil {
		return Invalid, err
	}
	if _, exists := host.diskByName[name]; exists {
		return Invalid, &DuplicateNameError{Kind: "disk", Name: name}
	}
	id := DiskID(len(g.disks))
	g.disks = append(g.disks, &Disk{
		id:       id,
		hostID:   hostID,
		Name:     name,
		Mount:    mount,
		ReadBW:   readBW,
		WriteBW:  writeBW,
		Capacity: capacity,
		Free:     capacity,
	})
	host.disks = append(host.disks, id)
	host.diskByName[name] = id
	return id, nil
}

func (g *Grid) site(id SiteID) (*Site, error) {
	if id < 0 || int(id) >= len(g.sites) {
		return nil, &TopologyMissingError{Kind: "site", ID: int(id)}
	}
	return g.sites[id], nil
}

func (g *Grid) host(id HostID) (*Host, error) {
	if id < 0 || int(id) >= len(g.hosts) {
		return nil, &TopologyMissingError{Kind: "host", ID: int(id)}
	}
	return g.hosts[id], nil
}

func (g *Grid) disk(id DiskID) (*Disk, error) {
	if id < 0 || int(id) >= len(g.disks) {
		return nil, &TopologyMissingError{Kind: "disk", ID: int(id)}
	}
	return g.disks[id], nil
}

// Site returns the site for id, or nil if it is out of range.
func (g *Grid) Site(id SiteID) *Site {
	s, err := g.site(id)
	if err != nil {
		return nil
	}
	return s
}

// Host returns the host for id, or nil if it is out of range.
func (g *Grid) Host(id HostID) *Host {
	h, err := g.host(id)
	if err != nil {
		return nil
	}
	return h
}

// Disk returns the disk for id, or nil if it is out of range.
func (g *Grid) Disk(id DiskID) *Disk {
	d, err := g.disk(id)
	if err != nil {
		return nil
	}
	return d
}

// SiteByName looks up a site by name.
func (g *Grid) SiteByName(name string) (SiteID, bool) {
	id, ok := g.siteByName[name]
	return id, ok
}

// SortedSiteIDs returns every site except the job-server pseudo-site,
// ordered lexicographically by name, so feature emitters are
// position-stable regardless of map iteration order.
func (g *Grid) SortedSiteIDs() []SiteID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sortedSiteIDsLocked()
}

// SortedHostIDs returns a site's hosts ordered lexicographically by name.
func (g *Grid) SortedHostIDs(siteID SiteID) []HostID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(siteID) < 0 || int(siteID) >= len(g.sites) {
		return nil
	}
	return g.sortedHostIDsLocked(siteID)
}

// MaxHostsPerSite is the widest site's host count, used as the
// row width of the deterministic feature matrices.
func (g *Grid) MaxHostsPerSite() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxHostsPerSiteLocked()
}

func sortSiteIDsByName(ids []SiteID, sites []*Site) {
	sort.Slice(ids, func(i, j int) bool { return sites[ids[i]].Name < sites[ids[j]].Name })
}

func sortHostIDsByName(ids []HostID, hosts []*Host) {
	sort.Slice(ids, func(i, j int) bool { return hosts[ids[i]].Name < hosts[ids[j]].Name })
}
