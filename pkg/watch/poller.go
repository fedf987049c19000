// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package watch provides polling-based monitoring of a running
// simulation: per-job status-transition events from any job snapshot
// source, and aggregate progress events from a dispatch metrics collector.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/metrics"
)

// DefaultPollInterval is the default polling interval for watch operations.
const DefaultPollInterval = 5 * time.Second

// JobEventType identifies what kind of transition a JobEvent reports.
type JobEventType string

const (
	// JobEventAdded fires the first time a job appears in the snapshot.
	JobEventAdded JobEventType = "added"

	// JobEventStatusChanged fires when a known job's status differs from
	// the previously observed one.
	JobEventStatusChanged JobEventType = "status-changed"
)

// JobEvent is one observed job transition.
type JobEvent struct {
	Type      JobEventType
	JobID     int64
	Previous  job.Status
	Current   job.Status
	Timestamp time.Time
}

// ListFunc returns a point-in-time snapshot of jobs. Implementations must
// return data that is safe to read after the call returns.
type ListFunc func(ctx context.Context) ([]*job.Job, error)

// JobPoller emits JobEvents by polling a snapshot source and diffing
// observed statuses.
type JobPoller struct {
	listFunc     ListFunc
	pollInterval time.Duration
	bufferSize   int
	mu           sync.RWMutex
	jobStates    map[int64]job.Status
}

// NewJobPoller creates a new job poller.
func NewJobPoller(listFunc ListFunc) *JobPoller {
	return &JobPoller{
		listFunc:     listFunc,
		pollInterval: DefaultPollInterval,
		bufferSize:   100,
		jobStates:    make(map[int64]job.Status),
	}
}

// WithPollInterval sets a custom poll interval.
func (p *JobPoller) WithPollInterval(interval time.Duration) *JobPoller {
	p.pollInterval = interval
	return p
}

// WithBufferSize sets a custom buffer size for the event channel.
func (p *JobPoller) WithBufferSize(size int) *JobPoller {
	p.bufferSize = size
	return p
}

// Watch starts watching for job state changes. The returned channel closes
// when ctx is cancelled.
func (p *JobPoller) Watch(ctx context.Context) (<-chan JobEvent, error) {
	if p.listFunc == nil {
		return nil, fmt.Errorf("watch: job poller requires a list function")
	}

	events := make(chan JobEvent, p.bufferSize)
	go func() {
		defer close(events)

		// Poll once immediately so callers see the initial population
		// without waiting a full interval.
		p.poll(ctx, events)

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx, events)
			}
		}
	}()
	return events, nil
}

func (p *JobPoller) poll(ctx context.Context, events chan<- JobEvent) {
	jobs, err := p.listFunc(ctx)
	if err != nil {
		return
	}
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, j := range jobs {
		if j == nil {
			continue
		}
		previous, seen := p.jobStates[j.ID]
		current := j.Status
		if !seen {
			p.jobStates[j.ID] = current
			emit(events, JobEvent{Type: JobEventAdded, JobID: j.ID, Current: current, Timestamp: now})
			continue
		}
		if previous != current {
			p.jobStates[j.ID] = current
			emit(events, JobEvent{
				Type: JobEventStatusChanged, JobID: j.ID,
				Previous: previous, Current: current, Timestamp: now,
			})
		}
	}
}

// emit drops events when the consumer has fallen behind rather than
// stalling the poll loop.
func emit(events chan<- JobEvent, ev JobEvent) {
	select {
	case events <- ev:
	default:
	}
}

// ProgressEvent is an aggregate-counter snapshot emitted whenever any of
// the totals move.
type ProgressEvent struct {
	Stats     *metrics.Stats
	Timestamp time.Time
}

// ProgressPoller emits ProgressEvents by polling a dispatch metrics
// collector, which is safe to read concurrently with a live run.
type ProgressPoller struct {
	collector    metrics.Collector
	pollInterval time.Duration
	bufferSize   int
}

// NewProgressPoller creates a poller over collector.
func NewProgressPoller(collector metrics.Collector) *ProgressPoller {
	return &ProgressPoller{
		collector:    collector,
		pollInterval: DefaultPollInterval,
		bufferSize:   16,
	}
}

// WithPollInterval sets a custom poll interval.
func (p *ProgressPoller) WithPollInterval(interval time.Duration) *ProgressPoller {
	p.pollInterval = interval
	return p
}

// Watch starts polling. The returned channel closes when ctx is cancelled.
func (p *ProgressPoller) Watch(ctx context.Context) (<-chan ProgressEvent, error) {
	if p.collector == nil {
		return nil, fmt.Errorf("watch: progress poller requires a collector")
	}

	events := make(chan ProgressEvent, p.bufferSize)
	go func() {
		defer close(events)
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		var last *metrics.Stats
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := p.collector.GetStats()
				if !totalsChanged(last, stats) {
					continue
				}
				last = stats
				select {
				case events <- ProgressEvent{Stats: stats, Timestamp: time.Now()}:
				default:
				}
			}
		}
	}()
	return events, nil
}

func totalsChanged(prev, next *metrics.Stats) bool {
	if next == nil {
		return false
	}
	if prev == nil {
		return true
	}
	return prev.TotalAssigned != next.TotalAssigned ||
		prev.TotalPending != next.TotalPending ||
		prev.TotalFailed != next.TotalFailed ||
		prev.TotalFinished != next.TotalFinished
}
