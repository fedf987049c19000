// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package executor drives a simulation run end to end: it drains the
// workload, asks the configured dispatcher for a placement per job,
// commits reservations against the resource model, posts assigned jobs to
// their host workers, and consumes the resulting activity events until no
// job is pending and nothing is in flight. All job and resource mutation
// happens on the executor's own goroutine, inside its event loop; kernel
// callbacks only ever post messages here.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jontk/cgsim-dispatcher/internal/simkernel"
	"github.com/jontk/cgsim-dispatcher/pkg/activity"
	"github.com/jontk/cgsim-dispatcher/pkg/dispatch"
	dispatcherrors "github.com/jontk/cgsim-dispatcher/pkg/errors"
	"github.com/jontk/cgsim-dispatcher/pkg/fileregistry"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/logging"
	"github.com/jontk/cgsim-dispatcher/pkg/metrics"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

// Options configures an Executor. Kernel, Grid, Registry, Links, and
// Dispatcher are required; the rest default sensibly.
type Options struct {
	Kernel     simkernel.Kernel
	Grid       *model.Grid
	Registry   *fileregistry.FileRegistry
	Links      *activity.Links
	Dispatcher dispatch.Dispatcher

	// Workload overrides Dispatcher.GetWorkload as the job source when
	// non-nil.
	Workload WorkloadSource

	// MaxJobs caps how many jobs are drained from the workload; < 0 means
	// all of them.
	MaxJobs int64

	RunID   string
	Logger  logging.Logger
	Metrics metrics.Collector
}

// Executor is the run controller. It is single-use: construct, Run once,
// read the report.
type Executor struct {
	kernel     simkernel.Kernel
	grid       *model.Grid
	registry   *fileregistry.FileRegistry
	dispatcher dispatch.Dispatcher
	workload   WorkloadSource
	builder    *activity.Builder
	logger     logging.Logger
	metrics    metrics.Collector
	maxJobs    int64
	runID      string

	workers map[model.HostID]chan *job.Job
	events  chan activity.Event
	built   chan buildResult

	jobs    map[int64]*job.Job
	pending []*job.Job

	// Per-job countdown bookkeeping. Events can arrive before the worker's
	// build result does, so expected counts start unknown (-1) and
	// completion is re-checked whenever either side updates.
	expectedEnds      map[int64]int
	seenEnds          map[int64]int
	expectedTransfers map[int64]int
	seenTransfers     map[int64]int
	transferStarted   map[int64]bool
	transferDone      map[int64]bool

	inflight int
	failed   int
	fatalErr error
}

type buildResult struct {
	job   *job.Job
	built *activity.BuiltJob
	err   error
}

// New validates opts and builds an Executor.
func New(opts Options) (*Executor, error) {
	if opts.Kernel == nil || opts.Grid == nil || opts.Registry == nil || opts.Dispatcher == nil {
		return nil, errors.New("executor: Kernel, Grid, Registry, and Dispatcher are all required")
	}
	links := opts.Links
	if links == nil {
		links = activity.NewLinks()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	maxJobs := opts.MaxJobs
	if maxJobs == 0 {
		maxJobs = -1
	}

	return &Executor{
		kernel:            opts.Kernel,
		grid:              opts.Grid,
		registry:          opts.Registry,
		dispatcher:        opts.Dispatcher,
		workload:          opts.Workload,
		builder:           activity.NewBuilder(opts.Kernel, opts.Grid, opts.Registry, links, logger),
		logger:            logger,
		metrics:           opts.Metrics,
		maxJobs:           maxJobs,
		runID:             opts.RunID,
		workers:           make(map[model.HostID]chan *job.Job),
		jobs:              make(map[int64]*job.Job),
		expectedEnds:      make(map[int64]int),
		seenEnds:          make(map[int64]int),
		expectedTransfers: make(map[int64]int),
		seenTransfers:     make(map[int64]int),
		transferStarted:   make(map[int64]bool),
		transferDone:      make(map[int64]bool),
	}, nil
}

// Run executes the whole simulation and returns the final report. The
// returned error is non-nil only for fatal conditions (corrupt workload or
// platform, context cancellation); per-job placement failures are recorded
// in the report instead.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	batch, err := e.drainWorkload()
	if err != nil {
		return nil, err
	}

	e.events = make(chan activity.Event, 4*len(batch)+64)
	e.built = make(chan buildResult, len(batch)+1)

	e.dispatcher.ProvideTopology(e.grid)
	e.dispatcher.OnSimulationStart()

	kctx, cancel := context.WithCancel(ctx)
	defer cancel()
	kernelDone := make(chan error, 1)
	go func() { kernelDone <- e.kernel.Run(kctx) }()

	workersDone := e.startHostWorkers(len(batch))

	now := e.kernel.Now()
	for _, j := range batch {
		j.Timestamps.Enqueue = now
		e.jobs[j.ID] = j
	}
	for _, j := range batch {
		e.attemptAssign(j)
	}

	for e.inflight > 0 || len(e.pending) > 0 {
		if e.fatalErr != nil {
			break
		}
		if e.inflight == 0 {
			// Nothing in flight can free resources, so one more pass either
			// places a pending job or proves the remainder unplaceable.
			before := len(e.pending)
			e.retryPending()
			if e.inflight == 0 && len(e.pending) == before {
				e.failPending()
				break
			}
			continue
		}

		select {
		case ev := <-e.events:
			e.handleEvent(ev)
		case br := <-e.built:
			e.handleBuilt(br)
		case <-ctx.Done():
			e.shutdown(workersDone, kernelDone)
			return e.buildReport(), ctx.Err()
		}
	}

	e.dispatcher.OnSimulationEnd()
	e.shutdown(workersDone, kernelDone)

	report := e.buildReport()
	e.logger.Info("simulation complete",
		"run_id", e.runID, "simulated_end", report.SimulatedEnd,
		"finished", report.Finished, "failed", report.Failed, "unplaced", report.Unplaced)
	return report, e.fatalErr
}

func (e *Executor) drainWorkload() ([]*job.Job, error) {
	var batch []*job.Job
	if e.workload != nil {
		jobs, err := e.workload.GetJobs(e.maxJobs)
		if err != nil {
			return nil, fmt.Errorf("executor: workload ingestion: %w", err)
		}
		batch = jobs
	} else {
		n := -1
		if e.maxJobs >= 0 {
			n = int(e.maxJobs)
		}
		batch = e.dispatcher.GetWorkload(n)
	}

	// Stable order: priority descending, then job id ascending. FIFO within
	// one priority class is preserved for the whole run because retries walk
	// the pending list in place.
	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].Priority != batch[j].Priority {
			return batch[i].Priority > batch[j].Priority
		}
		return batch[i].ID < batch[j].ID
	})
	return batch, nil
}

// attemptAssign runs one placement attempt for j and commits the outcome:
// reservation plus host-queue post for an assignment, the pending list for
// a deferral, terminal bookkeeping for a failure.
func (e *Executor) attemptAssign(j *job.Job) {
	started := time.Now()
	result := e.dispatcher.AssignJob(j)
	siteName := e.placementSiteName(result)
	if e.metrics != nil {
		e.metrics.RecordPlacementDuration(siteName, time.Since(started))
	}

	switch result.Status {
	case job.StatusAssigned:
		e.commitAssignment(result, siteName)
	case job.StatusPending:
		e.logger.Debug("job pending", "job_id", j.ID, "retries", j.Retries)
		if e.metrics != nil {
			e.metrics.RecordPending(siteName)
		}
		e.pending = append(e.pending, result)
	case job.StatusFailed:
		e.logger.Warn("job failed placement", "job_id", j.ID)
		if e.metrics != nil {
			e.metrics.RecordFailed(siteName)
		}
		e.failed++
	default:
		e.logger.Error("dispatcher returned unexpected status", "job_id", j.ID, "status", result.Status.String())
		result.Status = job.StatusFailed
		e.failed++
	}
}

func (e *Executor) commitAssignment(j *job.Job, siteName string) {
	site, host, worker, ok := e.resolvePlacement(j)
	if !ok {
		// The policy named topology the resource model does not have.
		// Terminal for this job, not for the run.
		topoErr := dispatcherrors.NewTopologyError(
			fmt.Sprintf("job %d placement references missing topology", j.ID), siteName)
		e.logger.Warn("placement references missing topology", "job_id", j.ID, "error", topoErr)
		j.Status = job.StatusFailed
		j.Placement = nil
		if e.metrics != nil {
			e.metrics.RecordFailed(siteName)
		}
		e.failed++
		return
	}

	if err := e.grid.Reserve(j.ID, j.Placement.Host, j.CoresRequested, j.Placement.Disk, j.TotalBytes()); err != nil {
		// The policy's view raced a concurrent completion, or it ignored
		// feasibility. Demoted, not failed: a later release may fit it.
		e.logger.Debug("reservation refused, job demoted to pending", "job_id", j.ID, "error", err)
		j.Status = job.StatusPending
		j.Placement = nil
		if e.metrics != nil {
			e.metrics.RecordPending(siteName)
		}
		e.pending = append(e.pending, j)
		return
	}

	j.Timestamps.Assign = e.kernel.Now()
	if e.metrics != nil {
		e.metrics.RecordAssigned(site.Name)
	}
	logging.LogPlacement(e.logger, strconv.FormatInt(j.ID, 10), site.Name, host.Name).Info("job assigned")

	e.inflight++
	e.expectedEnds[j.ID] = -1
	worker <- j
}

// resolvePlacement checks an assignment against the arenas: the site must
// exist, the host must belong to it, and the disk (when present) must
// belong to the host.
func (e *Executor) resolvePlacement(j *job.Job) (*model.Site, *model.Host, chan *job.Job, bool) {
	if j.Placement == nil {
		return nil, nil, nil, false
	}
	site := e.grid.Site(j.Placement.Site)
	host := e.grid.Host(j.Placement.Host)
	if site == nil || host == nil || host.SiteID() != j.Placement.Site {
		return nil, nil, nil, false
	}
	if j.Placement.Disk != model.Invalid && e.grid.Disk(j.Placement.Disk) == nil {
		return nil, nil, nil, false
	}
	worker, ok := e.workers[j.Placement.Host]
	if !ok {
		return nil, nil, nil, false
	}
	return site, host, worker, true
}

// retryPending re-attempts assignment for every pending job, preserving
// their relative order.
func (e *Executor) retryPending() {
	if len(e.pending) == 0 {
		return
	}
	waiting := e.pending
	e.pending = nil
	for _, j := range waiting {
		j.Retries++
		e.attemptAssign(j)
	}
}

// failPending marks every still-pending job failed once nothing in flight
// can ever free resources for them. Without this the run would wait on a
// completion that cannot come.
func (e *Executor) failPending() {
	for _, j := range e.pending {
		e.logger.Warn("job unplaceable, no capacity will free up", "job_id", j.ID, "retries", j.Retries)
		j.Status = job.StatusFailed
		if e.metrics != nil {
			e.metrics.RecordFailed("")
		}
		e.failed++
	}
	e.pending = nil
}

func (e *Executor) handleEvent(ev activity.Event) {
	j := ev.Job
	switch ev.Kind {
	case activity.EventTransferStart:
		if !e.transferStarted[j.ID] {
			e.transferStarted[j.ID] = true
			e.dispatcher.OnJobTransferStart(j)
		}
		e.dispatcher.OnFileTransferStart(ev.Filename, ev.SrcSite, ev.DstSite)

	case activity.EventTransferEnd:
		e.noteStorageFailure(j, ev)
		e.dispatcher.OnFileTransferEnd(ev.Filename, ev.SrcSite, ev.DstSite)
		e.seenTransfers[j.ID]++
		e.checkTransfersDone(j, ev.Activity.End())
		e.countEnd(j)

	case activity.EventReadStart:
		e.dispatcher.OnFileReadStart(j, ev.Filename)

	case activity.EventReadEnd:
		j.TotalReadTime += ev.Activity.Duration()
		e.dispatcher.OnFileReadEnd(j, ev.Filename)
		e.countEnd(j)

	case activity.EventExecStart:
		j.Status = job.StatusRunning
		j.Timestamps.ExecStart = ev.Activity.Start()
		e.dispatcher.OnJobExecutionStart(j)

	case activity.EventExecEnd:
		j.Timestamps.ExecDone = ev.Activity.End()
		j.Status = job.StatusFinished
		e.releaseResources(j)
		e.dispatcher.OnJobExecutionEnd(j)
		e.countEnd(j)
		// Freed cores and disk space may unblock pending jobs.
		e.retryPending()

	case activity.EventWriteStart:
		e.dispatcher.OnFileWriteStart(j, ev.Filename)

	case activity.EventWriteEnd:
		e.noteStorageFailure(j, ev)
		j.TotalWriteTime += ev.Activity.Duration()
		e.dispatcher.OnFileWriteEnd(j, ev.Filename)
		e.countEnd(j)
	}
}

// noteStorageFailure escalates a failed registry commit carried on a
// transfer-end or write-end event. The bytes passed every feasibility check
// before execution began, so arriving at a full site means the workload and
// platform documents disagree: fatal for the run.
func (e *Executor) noteStorageFailure(j *job.Job, ev activity.Event) {
	if ev.Err == nil || e.fatalErr != nil {
		return
	}
	classified := classifyFatal(j, ev.Err)
	e.logger.Error("storage commit failed at activity completion",
		"job_id", j.ID, "activity", ev.Activity.Name(), "error", classified)
	e.fatalErr = classified
}

// classifyFatal maps a fatal per-file failure into the structured error
// taxonomy, tagging it with the job it surfaced on.
func classifyFatal(j *job.Job, err error) *dispatcherrors.DispatchError {
	var (
		oos      *fileregistry.OutOfStorageError
		notFound *activity.NotFoundError
		code     dispatcherrors.ErrorCode
	)
	switch {
	case errors.As(err, &oos):
		code = dispatcherrors.ErrorCodeOutOfStorage
	case errors.As(err, &notFound):
		code = dispatcherrors.ErrorCodeFileMissing
	default:
		code = dispatcherrors.ErrorCodeFileMissing
	}
	classified := dispatcherrors.NewDispatchErrorWithCause(code, err.Error(), err)
	classified.JobID = strconv.FormatInt(j.ID, 10)
	return classified
}

func (e *Executor) handleBuilt(br buildResult) {
	j := br.job
	if br.err != nil {
		// A missing input file means the workload and platform documents
		// disagree. Fatal for the run once in-flight work drains.
		classified := classifyFatal(j, br.err)
		e.logger.Error("activity graph build failed", "job_id", j.ID, "error", classified)
		e.fatalErr = classified
		j.Status = job.StatusFailed
		e.releaseResources(j)
		if e.metrics != nil {
			e.metrics.RecordFailed(e.placementSiteName(j))
		}
		e.failed++
		e.inflight--
		delete(e.expectedEnds, j.ID)
		delete(e.seenEnds, j.ID)
		return
	}

	e.expectedEnds[j.ID] = br.built.EndEvents()
	e.expectedTransfers[j.ID] = len(br.built.Transfers)
	e.checkTransfersDone(j, e.kernel.Now())
	e.checkRetired(j)
}

// checkTransfersDone fires the per-job transfer-complete hook once every
// input transfer has finished. Safe to call from both the event and the
// build-result paths; it fires at most once per job and only for jobs that
// had at least one transfer.
func (e *Executor) checkTransfersDone(j *job.Job, at float64) {
	expected, known := e.expectedTransfers[j.ID]
	if !known || expected == 0 || e.transferDone[j.ID] {
		return
	}
	if e.seenTransfers[j.ID] >= expected {
		e.transferDone[j.ID] = true
		j.Timestamps.TransferDone = at
		e.dispatcher.OnJobTransferEnd(j)
	}
}

// countEnd advances a job's end-event countdown and, once the expected
// total is known and reached, retires the job from the in-flight set.
func (e *Executor) countEnd(j *job.Job) {
	if _, known := e.expectedEnds[j.ID]; !known {
		return
	}
	e.seenEnds[j.ID]++
	e.checkRetired(j)
}

// checkRetired retires a job once its end-event countdown is complete. The
// expected total is unknown (-1) until the host worker's build result
// lands, so this is re-checked from both sides.
func (e *Executor) checkRetired(j *job.Job) {
	expected, known := e.expectedEnds[j.ID]
	if !known {
		return
	}
	seen := e.seenEnds[j.ID]
	if expected >= 0 && seen >= expected {
		if j.Status == job.StatusFinished && e.metrics != nil {
			e.metrics.RecordFinished(e.placementSiteName(j))
		}
		e.inflight--
		delete(e.expectedEnds, j.ID)
		delete(e.seenEnds, j.ID)
		delete(e.expectedTransfers, j.ID)
		delete(e.seenTransfers, j.ID)
	}
}

func (e *Executor) releaseResources(j *job.Job) {
	if j.Placement == nil {
		return
	}
	e.grid.Release(j.ID, j.Placement.Host, j.CoresRequested, j.Placement.Disk, j.TotalBytes())
}

func (e *Executor) placementSiteName(j *job.Job) string {
	if j.Placement == nil {
		return ""
	}
	if site := e.grid.Site(j.Placement.Site); site != nil {
		return site.Name
	}
	return ""
}
