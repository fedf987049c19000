// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffPolicy_ShouldRetry(t *testing.T) {
	p := NewExponentialBackoffPolicy().WithMaxRetries(2)
	ctx := context.Background()

	assert.True(t, p.ShouldRetry(ctx, errors.New("x"), 0))
	assert.True(t, p.ShouldRetry(ctx, errors.New("x"), 1))
	assert.False(t, p.ShouldRetry(ctx, errors.New("x"), 2))
	assert.False(t, p.ShouldRetry(ctx, nil, 0))
}

func TestExponentialBackoffPolicy_ShouldRetry_ContextDone(t *testing.T) {
	p := NewExponentialBackoffPolicy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.ShouldRetry(ctx, errors.New("x"), 0))
}

func TestExponentialBackoffPolicy_WaitTime(t *testing.T) {
	p := NewExponentialBackoffPolicy().
		WithMinWaitTime(10 * time.Millisecond).
		WithMaxWaitTime(100 * time.Millisecond).
		WithBackoffFactor(2).
		WithJitter(false)

	assert.Equal(t, 10*time.Millisecond, p.WaitTime(0))
	assert.Equal(t, 20*time.Millisecond, p.WaitTime(2))
	assert.Equal(t, 100*time.Millisecond, p.WaitTime(10))
}

func TestFixedDelayPolicy(t *testing.T) {
	p := NewFixedDelayPolicy(2, 5*time.Millisecond)
	ctx := context.Background()

	assert.True(t, p.ShouldRetry(ctx, errors.New("x"), 0))
	assert.False(t, p.ShouldRetry(ctx, errors.New("x"), 2))
	assert.Equal(t, 5*time.Millisecond, p.WaitTime(0))
	assert.Equal(t, 2, p.MaxRetries())
}

func TestSingleRetryPolicy(t *testing.T) {
	p := NewSingleRetryPolicy(time.Millisecond)
	ctx := context.Background()

	assert.True(t, p.ShouldRetry(ctx, errors.New("x"), 0))
	assert.False(t, p.ShouldRetry(ctx, errors.New("x"), 1))
	assert.Equal(t, 1, p.MaxRetries())
}

func TestNoRetryPolicy(t *testing.T) {
	p := NewNoRetryPolicy()
	assert.False(t, p.ShouldRetry(context.Background(), errors.New("x"), 0))
	assert.Equal(t, time.Duration(0), p.WaitTime(0))
	assert.Equal(t, 0, p.MaxRetries())
}

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), NewNoRetryPolicy(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	policy := NewFixedDelayPolicy(5, time.Millisecond)
	err := Do(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	policy := NewSingleRetryPolicy(time.Millisecond)
	err := Do(context.Background(), policy, func() error {
		calls++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, NewFixedDelayPolicy(5, time.Millisecond), func() error {
		return errors.New("fails")
	})
	assert.Error(t, err)
}
