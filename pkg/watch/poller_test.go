// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/metrics"
)

// snapshotSource hands the poller a mutable job list behind a mutex.
type snapshotSource struct {
	mu   sync.Mutex
	jobs []*job.Job
}

func (s *snapshotSource) list(context.Context) ([]*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*job.Job, len(s.jobs))
	for i, j := range s.jobs {
		copied := *j
		out[i] = &copied
	}
	return out, nil
}

func (s *snapshotSource) setStatus(id int64, status job.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			j.Status = status
		}
	}
}

func nextEvent(t *testing.T, events <-chan JobEvent) JobEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return JobEvent{}
	}
}

func TestJobPollerEmitsAddedThenChanges(t *testing.T) {
	source := &snapshotSource{jobs: []*job.Job{job.New(1, 1, 0, 0)}}
	poller := NewJobPoller(source.list).WithPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := poller.Watch(ctx)
	require.NoError(t, err)

	added := nextEvent(t, events)
	assert.Equal(t, JobEventAdded, added.Type)
	assert.Equal(t, int64(1), added.JobID)
	assert.Equal(t, job.StatusCreated, added.Current)

	source.setStatus(1, job.StatusAssigned)
	changed := nextEvent(t, events)
	assert.Equal(t, JobEventStatusChanged, changed.Type)
	assert.Equal(t, job.StatusCreated, changed.Previous)
	assert.Equal(t, job.StatusAssigned, changed.Current)
}

func TestJobPollerNoEventWithoutChange(t *testing.T) {
	source := &snapshotSource{jobs: []*job.Job{job.New(1, 1, 0, 0)}}
	poller := NewJobPoller(source.list).WithPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := poller.Watch(ctx)
	require.NoError(t, err)
	nextEvent(t, events) // initial added

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJobPollerChannelClosesOnCancel(t *testing.T) {
	source := &snapshotSource{}
	poller := NewJobPoller(source.list).WithPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := poller.Watch(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close")
	}
}

func TestJobPollerRequiresListFunc(t *testing.T) {
	_, err := NewJobPoller(nil).Watch(context.Background())
	assert.Error(t, err)
}

func TestProgressPollerEmitsOnTotalsChange(t *testing.T) {
	collector := metrics.NewInMemoryCollector()
	poller := NewProgressPoller(collector).WithPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := poller.Watch(ctx)
	require.NoError(t, err)

	collector.RecordAssigned("SITE-A")
	select {
	case ev := <-events:
		assert.EqualValues(t, 1, ev.Stats.TotalAssigned)
	case <-time.After(5 * time.Second):
		t.Fatal("no progress event")
	}
}

func TestProgressPollerRequiresCollector(t *testing.T) {
	_, err := NewProgressPoller(nil).Watch(context.Background())
	assert.Error(t, err)
}
