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

func TestExponentialBackoffGrows(t *testing.T) {
	b := &ExponentialBackoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  4,
	}

	first, ok := b.NextDelay(0)
	require.True(t, ok)
	second, ok := b.NextDelay(1)
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, first)
	assert.Equal(t, 200*time.Millisecond, second)

	_, ok = b.NextDelay(4)
	assert.False(t, ok)
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	b := &ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     2 * time.Second,
		Multiplier:   10.0,
		MaxAttempts:  5,
	}
	delay, ok := b.NextDelay(3)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)
}

func TestLinearBackoff(t *testing.T) {
	b := &LinearBackoff{
		InitialDelay: 100 * time.Millisecond,
		Increment:    50 * time.Millisecond,
		MaxDelay:     time.Second,
		MaxAttempts:  3,
	}
	first, _ := b.NextDelay(0)
	second, _ := b.NextDelay(1)
	assert.Equal(t, 100*time.Millisecond, first)
	assert.Equal(t, 150*time.Millisecond, second)
}

func TestConstantBackoffRetryOnce(t *testing.T) {
	b := NewConstantBackoff(10*time.Millisecond, 1)

	delay, ok := b.NextDelay(0)
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, delay)

	_, ok = b.NextDelay(1)
	assert.False(t, ok)
}

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), NewConstantBackoff(time.Millisecond, 5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("down")
	calls := 0
	err := Do(context.Background(), NewConstantBackoff(time.Millisecond, 2), func() error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls) // initial attempt plus two retries
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, NewConstantBackoff(time.Hour, 1), func() error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), NewConstantBackoff(time.Millisecond, 3), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
