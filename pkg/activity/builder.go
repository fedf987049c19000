// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package activity builds the per-job graph of simulated work: one optional
// inter-site transfer per input file not already present at the placement
// site, one read per input file, a single exec, and one write per output
// file. Node completions are reported as Events to the caller instead of
// mutating state in-place from kernel callbacks.
package activity

import (
	"fmt"
	"sort"

	"github.com/jontk/cgsim-dispatcher/internal/simkernel"
	"github.com/jontk/cgsim-dispatcher/pkg/fileregistry"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/logging"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

// Builder constructs activity graphs for assigned jobs. It is stateless
// between Build calls and safe to share across host workers: the kernel,
// grid, and registry it composes are each internally synchronized, and the
// link table is only read during Build.
type Builder struct {
	kernel   simkernel.Kernel
	grid     *model.Grid
	registry *fileregistry.FileRegistry
	links    *Links
	logger   logging.Logger
}

// NewBuilder wires a Builder over the kernel, grid, file registry, and
// inter-site link table.
func NewBuilder(k simkernel.Kernel, grid *model.Grid, registry *fileregistry.FileRegistry, links *Links, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Builder{kernel: k, grid: grid, registry: registry, links: links, logger: logger}
}

// BuiltJob is the handle set returned by Build: every node of the job's
// graph, grouped by kind.
type BuiltJob struct {
	Job       *job.Job
	Transfers []*simkernel.Activity
	Reads     []*simkernel.Activity
	Exec      *simkernel.Activity
	Writes    []*simkernel.Activity
}

// EndEvents returns how many end-of-activity events this job will emit,
// which is what the executor counts down to decide the job has fully
// drained out of the kernel.
func (b *BuiltJob) EndEvents() int {
	return len(b.Transfers) + len(b.Reads) + 1 + len(b.Writes)
}

// NotFoundError reports a job input file absent from the file registry.
// This means the workload and platform documents disagree, so the caller
// treats it as fatal rather than retrying.
type NotFoundError struct {
	JobID    int64
	Filename string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("activity: job %d input file %q not present in registry: %v", e.JobID, e.Filename, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Build schedules the full activity graph for an assigned job and returns
// the node handles. notify is invoked from kernel context for every
// lifecycle edge; it must not block for long and must not call back into
// Build.
//
// Graph shape: for each input file, an optional transfer (when the file is
// not yet at the placement site) feeding a read; the exec starts once all
// reads are done; each output write starts after the exec. Input files
// present at several sites transfer from the lexicographically least
// holder, so repeated runs pick the same source.
func (b *Builder) Build(j *job.Job, notify func(Event)) (*BuiltJob, error) {
	if j.Placement == nil {
		return nil, fmt.Errorf("activity: job %d has no placement", j.ID)
	}

	site := b.grid.Site(j.Placement.Site)
	host := b.grid.Host(j.Placement.Host)
	disk := b.grid.Disk(j.Placement.Disk)
	if site == nil || host == nil {
		return nil, fmt.Errorf("activity: job %d placement references missing topology", j.ID)
	}

	readBW, writeBW := DefaultLinkBandwidth, DefaultLinkBandwidth
	if disk != nil {
		readBW, writeBW = disk.ReadBW, disk.WriteBW
	}

	built := &BuiltJob{Job: j}

	for _, filename := range sortedKeys(j.InputFiles) {
		var preds []*simkernel.Activity

		if !b.registry.ExistsAt(filename, site.Name) {
			src, err := b.transferSource(filename)
			if err != nil {
				return nil, &NotFoundError{JobID: j.ID, Filename: filename, Err: err}
			}

			transfer, err := b.registry.TransferActivity(b.kernel, filename, src, site.Name, b.links.Between(src, site.Name))
			if err != nil {
				return nil, &NotFoundError{JobID: j.ID, Filename: filename, Err: err}
			}
			b.watch(transfer, j, filename, src, site.Name, EventTransferStart, EventTransferEnd, notify)
			built.Transfers = append(built.Transfers, transfer)
			preds = append(preds, transfer)
		}

		read, err := b.registry.ReadActivity(b.kernel, filename, site.Name, readBW, preds...)
		if err != nil {
			return nil, &NotFoundError{JobID: j.ID, Filename: filename, Err: err}
		}
		b.watch(read, j, filename, "", site.Name, EventReadStart, EventReadEnd, notify)
		built.Reads = append(built.Reads, read)
	}

	execName := fmt.Sprintf("exec:job-%d@%s", j.ID, host.Name)
	exec := b.kernel.Exec(execName, j.FlopsHint, host.SpeedFlopsPerSec, built.Reads...)
	b.watch(exec, j, "", "", site.Name, EventExecStart, EventExecEnd, notify)
	built.Exec = exec

	for _, filename := range sortedKeys(j.OutputFiles) {
		write := b.registry.WriteActivity(b.kernel, filename, j.OutputFiles[filename], site.Name, writeBW, exec)
		b.watch(write, j, filename, "", site.Name, EventWriteStart, EventWriteEnd, notify)
		built.Writes = append(built.Writes, write)
	}

	b.logger.Debug("built activity graph",
		"job_id", j.ID, "site", site.Name, "host", host.Name,
		"transfers", len(built.Transfers), "reads", len(built.Reads), "writes", len(built.Writes))

	return built, nil
}

// transferSource picks where to pull filename from: the lexicographically
// least site currently holding it.
func (b *Builder) transferSource(filename string) (string, error) {
	locations, err := b.registry.Locate(filename)
	if err != nil {
		return "", err
	}
	src := ""
	for site := range locations {
		if src == "" || site < src {
			src = site
		}
	}
	return src, nil
}

func (b *Builder) watch(act *simkernel.Activity, j *job.Job, filename, src, dst string, start, end EventKind, notify func(Event)) {
	if notify == nil {
		return
	}
	act.OnStart(func(a *simkernel.Activity) {
		notify(Event{Kind: start, Job: j, Activity: a, Filename: filename, SrcSite: src, DstSite: dst})
	})
	act.OnCompletion(func(a *simkernel.Activity) {
		notify(Event{Kind: end, Job: j, Activity: a, Filename: filename, SrcSite: src, DstSite: dst, Err: a.Err()})
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
