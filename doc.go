// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

/*
Package cgsim is a discrete-event simulator core for a geographically
distributed compute grid: a job dispatcher that ingests a workload of
compute jobs, matches each to a feasible (site, host, disk) placement
under a pluggable policy, reserves resources, drives the job through a
pipeline of simulated activities (inter-site transfer, read, execute,
write), and releases resources on completion.

# Overview

The module is organized as small, composable packages:

  - pkg/model — the in-memory grid topology (sites, hosts, disks) with
    live core/storage counters, reservation/release, and the
    deterministic snapshot matrices feature emitters consume
  - pkg/fileregistry — which files exist at which site, with sizes and
    per-site remaining storage, plus the activity builders for reads,
    writes, and inter-site transfers
  - pkg/activity — per-job activity graph construction and the event
    stream activity completions are reported on
  - pkg/dispatch — the pluggable policy contract and the reference
    first-fit, weighted-score, and external-RPC policies
  - pkg/policyrpc — the framed TCP protocol to an external decision
    server: length-prefixed message frames and .npy tensor frames
  - pkg/executor — the run controller and its per-host workers
  - pkg/registry — name-keyed policy factories
  - pkg/topology, pkg/workload — reference loaders for the platform
    JSON documents and the workload CSV
  - pkg/config, pkg/logging, pkg/errors, pkg/metrics, pkg/retry,
    pkg/pool, pkg/watch, pkg/analytics — configuration, structured
    logging, typed errors, dispatch metrics, and supporting
    infrastructure

# Basic Usage

Load a platform, pick a policy, and run:

	import (
	    "context"

	    "github.com/jontk/cgsim-dispatcher/internal/simkernel"
	    "github.com/jontk/cgsim-dispatcher/pkg/executor"
	    "github.com/jontk/cgsim-dispatcher/pkg/registry"
	    "github.com/jontk/cgsim-dispatcher/pkg/topology"
	    "github.com/jontk/cgsim-dispatcher/pkg/workload"
	)

	func run() error {
	    loader := topology.NewLoader("sites.json", "connections.json", nil, nil)
	    grid, files, links, err := loader.BuildGrid("grid")
	    if err != nil {
	        return err
	    }

	    policy, err := registry.New("first-fit", registry.Options{})
	    if err != nil {
	        return err
	    }

	    exec, err := executor.New(executor.Options{
	        Kernel:     simkernel.New(),
	        Grid:       grid,
	        Registry:   files,
	        Links:      links,
	        Dispatcher: policy,
	        Workload:   workload.NewCSVSource("jobs.csv", nil),
	    })
	    if err != nil {
	        return err
	    }

	    report, err := exec.Run(context.Background())
	    if err != nil {
	        return err
	    }
	    _ = report
	    return nil
	}

The cgsim-dispatcher command under cmd/ wires the same pieces from a JSON
run configuration.
*/
package cgsim
