// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"sync"

	"github.com/jontk/cgsim-dispatcher/pkg/activity"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
)

// startHostWorkers launches one long-lived worker goroutine per compute
// host. A worker blocks on its queue until the executor posts an assigned
// job, builds the job's activity graph, and reports the build result back.
// Workers never wait on activity completion themselves; completions flow
// to the executor as events.
//
// Queues and the build-result channel are sized so a worker can always
// finish a job without blocking, which keeps the executor's assignment
// loop free of send/receive cycles with its own workers.
func (e *Executor) startHostWorkers(queueCap int) *sync.WaitGroup {
	if queueCap < 1 {
		queueCap = 1
	}

	notify := func(ev activity.Event) { e.events <- ev }

	var wg sync.WaitGroup
	for _, siteID := range e.grid.SortedSiteIDs() {
		site := e.grid.Site(siteID)
		for _, hostID := range site.Hosts() {
			queue := make(chan *job.Job, queueCap)
			e.workers[hostID] = queue

			wg.Add(1)
			go func(queue chan *job.Job) {
				defer wg.Done()
				for j := range queue {
					built, err := e.builder.Build(j, notify)
					e.built <- buildResult{job: j, built: built, err: err}
				}
			}(queue)
		}
	}
	return &wg
}

// shutdown closes every worker queue, waits for the workers to drain,
// stops the kernel, and waits for its run loop to return. Stray events
// from activities still completing are discarded while waiting, so a
// blocked kernel callback can never wedge the teardown.
func (e *Executor) shutdown(workers *sync.WaitGroup, kernelDone <-chan error) {
	for _, queue := range e.workers {
		close(queue)
	}
	workers.Wait()
	e.kernel.Stop()
	for {
		select {
		case <-e.events:
		case <-e.built:
		case <-kernelDone:
			return
		}
	}
}
