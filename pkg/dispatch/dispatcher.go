// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package dispatch defines the pluggable policy contract and the
// reference placement policies built on it: first-fit, weighted-score,
// and the external-RPC policy.
package dispatch

import (
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

// Dispatcher is the pluggable policy contract: a policy
// that supplies workload, caches the topology it is handed, turns a Job
// into a placement decision, and receives lifecycle hooks for every
// activity the executor drives. AssignJob is the only method expected to
// mutate anything; every hook is informational.
//
// Policies are registered by name in pkg/registry and satisfy this
// interface directly — ordinary Go interface satisfaction, fully type
// checked, no filename-derived factory-symbol inference.
type Dispatcher interface {
	// GetWorkload returns up to n jobs from the policy's workload source,
	// or all remaining jobs if n < 0.
	GetWorkload(n int) []*job.Job

	// ProvideTopology hands the policy the grid it will place jobs into.
	// Called once, before the first AssignJob.
	ProvideTopology(grid *model.Grid)

	// AssignJob returns j with Status set to one of StatusAssigned (with
	// Placement populated), StatusPending, or StatusFailed. The core
	// verifies feasibility of an Assigned placement before committing it.
	AssignJob(j *job.Job) *job.Job

	OnJobExecutionStart(j *job.Job)
	OnJobExecutionEnd(j *job.Job)
	OnJobTransferStart(j *job.Job)
	OnJobTransferEnd(j *job.Job)
	OnFileReadStart(j *job.Job, filename string)
	OnFileReadEnd(j *job.Job, filename string)
	OnFileWriteStart(j *job.Job, filename string)
	OnFileWriteEnd(j *job.Job, filename string)
	OnFileTransferStart(filename, src, dst string)
	OnFileTransferEnd(filename, src, dst string)
	OnSimulationStart()
	OnSimulationEnd()
}

// Base implements every Dispatcher hook as a no-op. Concrete policies
// embed Base and override only AssignJob and whichever hooks they
// actually care about.
type Base struct{}

func (Base) GetWorkload(int) []*job.Job                 { return nil }
func (Base) ProvideTopology(*model.Grid)                {}
func (Base) OnJobExecutionStart(*job.Job)               {}
func (Base) OnJobExecutionEnd(*job.Job)                 {}
func (Base) OnJobTransferStart(*job.Job)                {}
func (Base) OnJobTransferEnd(*job.Job)                  {}
func (Base) OnFileReadStart(*job.Job, string)           {}
func (Base) OnFileReadEnd(*job.Job, string)             {}
func (Base) OnFileWriteStart(*job.Job, string)          {}
func (Base) OnFileWriteEnd(*job.Job, string)            {}
func (Base) OnFileTransferStart(string, string, string) {}
func (Base) OnFileTransferEnd(string, string, string)   {}
func (Base) OnSimulationStart()                         {}
func (Base) OnSimulationEnd()                           {}
