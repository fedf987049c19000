// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCollector_RecordAndGetStats(t *testing.T) {
	c := NewInMemoryCollector()

	c.RecordAssigned("site-a")
	c.RecordAssigned("site-a")
	c.RecordPending("site-b")
	c.RecordFailed("site-a")
	c.RecordFinished("site-a")

	stats := c.GetStats()
	assert.EqualValues(t, 2, stats.TotalAssigned)
	assert.EqualValues(t, 1, stats.TotalPending)
	assert.EqualValues(t, 1, stats.TotalFailed)
	assert.EqualValues(t, 1, stats.TotalFinished)

	require.Contains(t, stats.BySite, "site-a")
	assert.EqualValues(t, 2, stats.BySite["site-a"].Assigned)
	assert.EqualValues(t, 1, stats.BySite["site-a"].Failed)
	assert.EqualValues(t, 1, stats.BySite["site-a"].Finished)

	require.Contains(t, stats.BySite, "site-b")
	assert.EqualValues(t, 1, stats.BySite["site-b"].Pending)
}

func TestInMemoryCollector_PlacementDuration(t *testing.T) {
	c := NewInMemoryCollector()

	c.RecordPlacementDuration("site-a", 10*time.Millisecond)
	c.RecordPlacementDuration("site-a", 20*time.Millisecond)

	stats := c.GetStats()
	assert.EqualValues(t, 2, stats.PlacementDuration.Count)
	assert.Equal(t, 10*time.Millisecond, stats.PlacementDuration.Min)
	assert.Equal(t, 20*time.Millisecond, stats.PlacementDuration.Max)
	assert.Equal(t, 15*time.Millisecond, stats.PlacementDuration.Average)

	require.Contains(t, stats.PlacementDurationBySite, "site-a")
	assert.EqualValues(t, 2, stats.PlacementDurationBySite["site-a"].Count)
}

func TestInMemoryCollector_Reset(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordAssigned("site-a")
	c.Reset()

	stats := c.GetStats()
	assert.EqualValues(t, 0, stats.TotalAssigned)
	assert.Empty(t, stats.BySite)
}

func TestInMemoryCollector_ConcurrentAccess(t *testing.T) {
	c := NewInMemoryCollector()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordAssigned("site-a")
			c.RecordPlacementDuration("site-a", time.Millisecond)
		}()
	}
	wg.Wait()

	stats := c.GetStats()
	assert.EqualValues(t, 50, stats.TotalAssigned)
	assert.EqualValues(t, 50, stats.PlacementDuration.Count)
}

func TestNoOpCollector(t *testing.T) {
	c := NoOpCollector{}
	c.RecordAssigned("x")
	c.RecordPending("x")
	c.RecordFailed("x")
	c.RecordFinished("x")
	c.RecordPlacementDuration("x", time.Millisecond)
	c.Reset()

	assert.Equal(t, &Stats{}, c.GetStats())
}

func TestDefaultCollector(t *testing.T) {
	original := GetDefaultCollector()
	defer SetDefaultCollector(original)

	collector := NewInMemoryCollector()
	SetDefaultCollector(collector)
	assert.Equal(t, collector, GetDefaultCollector())

	SetDefaultCollector(nil)
	assert.IsType(t, &NoOpCollector{}, GetDefaultCollector())
}
