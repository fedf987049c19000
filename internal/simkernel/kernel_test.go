// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package simkernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runKernel(t *testing.T, k Kernel) func() {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- k.Run(context.Background()) }()
	return func() {
		k.Stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("kernel did not stop")
		}
	}
}

func wait(t *testing.T, a *Activity) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("activity %s did not complete", a.Name())
	}
}

func TestExecDuration(t *testing.T) {
	k := New()
	stop := runKernel(t, k)
	defer stop()

	exec := k.Exec("exec:j1", 1e10, 1e9)
	wait(t, exec)

	assert.Equal(t, 0.0, exec.Start())
	assert.Equal(t, 10.0, exec.End())
	assert.Equal(t, 10.0, exec.Duration())
}

func TestZeroWorkCompletesImmediately(t *testing.T) {
	k := New()
	stop := runKernel(t, k)
	defer stop()

	exec := k.Exec("exec:empty", 0, 1e9)
	wait(t, exec)
	assert.Equal(t, 0.0, exec.End())
}

func TestPredecessorOrdering(t *testing.T) {
	k := New()
	stop := runKernel(t, k)
	defer stop()

	transfer := k.Transfer("transfer:f", 1e9, 1e8) // 10s
	read := k.Read("read:f", 5e8, 1e8, transfer)   // 5s after transfer
	exec := k.Exec("exec:j", 1e9, 1e9, read)       // 1s after read
	write := k.Write("write:o", 1e8, 1e8, exec)    // 1s after exec

	wait(t, write)

	assert.Equal(t, 10.0, transfer.End())
	assert.Equal(t, 10.0, read.Start())
	assert.Equal(t, 15.0, read.End())
	assert.Equal(t, 15.0, exec.Start())
	assert.Equal(t, 16.0, exec.End())
	assert.Equal(t, 17.0, write.End())
}

func TestExecWaitsForAllReads(t *testing.T) {
	k := New()
	stop := runKernel(t, k)
	defer stop()

	fast := k.Read("read:fast", 1e8, 1e8) // 1s
	slow := k.Read("read:slow", 5e8, 1e8) // 5s
	exec := k.Exec("exec:j", 0, 1e9, fast, slow)

	wait(t, exec)
	assert.Equal(t, 5.0, exec.Start())
}

func TestOnCompletionAfterDoneFiresInline(t *testing.T) {
	k := New()
	stop := runKernel(t, k)
	defer stop()

	exec := k.Exec("exec:j", 0, 1e9)
	wait(t, exec)

	fired := false
	exec.OnCompletion(func(*Activity) { fired = true })
	assert.True(t, fired)
}

func TestOnStartAfterBegunFiresInline(t *testing.T) {
	k := New()
	stop := runKernel(t, k)
	defer stop()

	exec := k.Exec("exec:j", 0, 1e9)
	wait(t, exec)

	fired := false
	exec.OnStart(func(*Activity) { fired = true })
	assert.True(t, fired)
}

func TestWaitAny(t *testing.T) {
	k := New()
	stop := runKernel(t, k)
	defer stop()

	fast := k.Exec("exec:fast", 1e9, 1e9)  // 1s
	slow := k.Exec("exec:slow", 1e10, 1e9) // 10s

	set := NewActivitySet(fast, slow)
	first, err := set.WaitAny(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exec:fast", first.Name())
	assert.Equal(t, 1, set.Len())

	second, err := set.WaitAny(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exec:slow", second.Name())
	assert.True(t, set.Empty())

	_, err = set.WaitAny(context.Background())
	assert.ErrorIs(t, err, ErrNoActivities)
}

func TestWaitAnyCancellation(t *testing.T) {
	k := New()
	// Kernel deliberately not running: nothing will ever complete.
	set := NewActivitySet(k.Exec("exec:stuck", 1e9, 1e9))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := set.WaitAny(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, set.Len())
}
