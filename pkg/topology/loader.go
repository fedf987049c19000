// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package topology loads the platform description documents — per-site
// properties, CPU groups, disks, and seeded files in one JSON file,
// inter-site link bandwidths in a second — and materializes the grid
// arenas, the file registry, and the link table a run executes against.
//
// The executor consumes this package only through its TopologySource
// interface.
package topology

import (
	"fmt"
	"os"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/jontk/cgsim-dispatcher/pkg/activity"
	"github.com/jontk/cgsim-dispatcher/pkg/fileregistry"
	"github.com/jontk/cgsim-dispatcher/pkg/logging"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JobServerSiteName is the pseudo-site that fronts workload ingestion. It
// owns no compute and is excluded from placement and feature views.
const JobServerSiteName = "JOB-SERVER"

// diskInfo is one disk of a CPU group. Bandwidths may be bare numbers or
// suffixed quantities ("250MBps").
type diskInfo struct {
	Name    string   `json:"name"`
	ReadBW  quantity `json:"read_bw"`
	WriteBW quantity `json:"write_bw"`
}

// cpuInfo is one homogeneous group of hosts at a site.
type cpuInfo struct {
	Count int        `json:"count"`
	Cores int        `json:"cores"`
	Speed float64    `json:"speed"`
	Disks []diskInfo `json:"disks"`
}

// siteInfo is one site entry of the sites document.
type siteInfo struct {
	Properties map[string]string `json:"SITE_PROPERTIES"`
	CPUInfo    []cpuInfo         `json:"CPUInfo"`
	Files      [][2]interface{}  `json:"files"`
}

// connInfo is one entry of the connections document, keyed "A:B".
type connInfo struct {
	Bandwidth quantity `json:"bandwidth"`
	Latency   string   `json:"latency"`
}

// Loader reads the two platform documents. An optional site filter
// restricts the build to the named sites, the way a run configuration's
// Sites list narrows a large platform dump.
type Loader struct {
	sitesPath string
	connPath  string
	filter    map[string]struct{}
	logger    logging.Logger
}

// NewLoader builds a Loader over the two document paths. filterSites may
// be empty to load every site.
func NewLoader(sitesPath, connPath string, filterSites []string, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	var filter map[string]struct{}
	if len(filterSites) > 0 {
		filter = make(map[string]struct{}, len(filterSites))
		for _, s := range filterSites {
			filter[s] = struct{}{}
		}
	}
	return &Loader{sitesPath: sitesPath, connPath: connPath, filter: filter, logger: logger}
}

// BuildGrid parses both documents and returns the populated grid, the file
// registry seeded with each site's files, and the inter-site link table.
// Sites and hosts are inserted in sorted name order so arena ids are
// reproducible across runs of the same documents.
func (l *Loader) BuildGrid(gridName string) (*model.Grid, *fileregistry.FileRegistry, *activity.Links, error) {
	sites, err := l.readSites()
	if err != nil {
		return nil, nil, nil, err
	}

	grid := model.NewGrid(gridName)
	registry := fileregistry.New()

	names := make([]string, 0, len(sites))
	for name := range sites {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := l.buildSite(grid, registry, name, sites[name]); err != nil {
			return nil, nil, nil, err
		}
	}

	jobServer, err := grid.AddSite(JobServerSiteName, 0, 0, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := grid.AddHost(jobServer, JobServerSiteName+"_cpu-0", 0, 0); err != nil {
		return nil, nil, nil, err
	}
	grid.SetJobServerSite(jobServer)

	links, err := l.readLinks()
	if err != nil {
		return nil, nil, nil, err
	}

	l.logger.Info("platform loaded",
		"grid", gridName, "sites", len(names), "links", links.Len())
	return grid, registry, links, nil
}

func (l *Loader) readSites() (map[string]siteInfo, error) {
	data, err := os.ReadFile(l.sitesPath)
	if err != nil {
		return nil, fmt.Errorf("topology: open sites document: %w", err)
	}
	all := make(map[string]siteInfo)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", l.sitesPath, err)
	}

	if l.filter == nil {
		return all, nil
	}
	kept := make(map[string]siteInfo, len(l.filter))
	for name, info := range all {
		if _, ok := l.filter[name]; ok {
			kept[name] = info
		}
	}
	return kept, nil
}

func (l *Loader) buildSite(grid *model.Grid, registry *fileregistry.FileRegistry, name string, info siteInfo) error {
	priority := intProperty(info.Properties, "priority", 0)
	gflops := floatProperty(info.Properties, "gflops", 0)
	storage := int64(floatProperty(info.Properties, "storage_capacity_bytes", 0))

	siteID, err := grid.AddSite(name, priority, gflops, storage)
	if err != nil {
		return err
	}

	totalDisks := 0
	for _, cpu := range info.CPUInfo {
		totalDisks += cpu.Count * len(cpu.Disks)
	}
	var capacityPerDisk int64
	if totalDisks > 0 {
		capacityPerDisk = storage / int64(totalDisks)
	}

	hostIdx := 0
	for _, cpu := range info.CPUInfo {
		for unit := 0; unit < cpu.Count; unit++ {
			hostName := fmt.Sprintf("%s_cpu-%d", name, hostIdx)
			hostIdx++
			hostID, err := grid.AddHost(siteID, hostName, cpu.Speed, cpu.Cores)
			if err != nil {
				return err
			}
			for _, disk := range cpu.Disks {
				mount := "/" + disk.Name
				if _, err := grid.AddDisk(hostID, disk.Name, mount, disk.ReadBW.value, disk.WriteBW.value, capacityPerDisk); err != nil {
					return err
				}
			}
		}
	}

	files := make(map[string]int64, len(info.Files))
	for _, entry := range info.Files {
		filename, ok := entry[0].(string)
		if !ok {
			return fmt.Errorf("topology: site %s has a files entry with a non-string name", name)
		}
		size, ok := entry[1].(float64)
		if !ok {
			return fmt.Errorf("topology: site %s file %q has a non-numeric size", name, filename)
		}
		files[filename] = int64(size)
	}
	registry.RegisterSite(name, storage, files)
	return nil
}

func (l *Loader) readLinks() (*activity.Links, error) {
	links := activity.NewLinks()
	if l.connPath == "" {
		return links, nil
	}

	data, err := os.ReadFile(l.connPath)
	if err != nil {
		return nil, fmt.Errorf("topology: open connections document: %w", err)
	}
	conns := make(map[string]connInfo)
	if err := json.Unmarshal(data, &conns); err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", l.connPath, err)
	}

	for key, conn := range conns {
		src, dst, ok := splitConnKey(key)
		if !ok {
			l.logger.Warn("skipping malformed connection key", "key", key)
			continue
		}
		if l.filter != nil {
			if _, ok := l.filter[src]; !ok && src != JobServerSiteName {
				continue
			}
			if _, ok := l.filter[dst]; !ok && dst != JobServerSiteName {
				continue
			}
		}
		links.Set(src, dst, conn.Bandwidth.value)
	}
	return links, nil
}

func splitConnKey(key string) (src, dst string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:], i > 0 && i < len(key)-1
		}
	}
	return "", "", false
}
