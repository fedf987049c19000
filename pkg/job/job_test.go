// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJobDefaults(t *testing.T) {
	j := New(42, 4, 1e10, 3)
	assert.Equal(t, int64(42), j.ID)
	assert.Equal(t, StatusCreated, j.Status)
	assert.Nil(t, j.Placement)
	assert.NotNil(t, j.InputFiles)
	assert.NotNil(t, j.OutputFiles)
}

func TestByteTotals(t *testing.T) {
	j := New(1, 1, 0, 0)
	j.InputFiles["a"] = &InputFile{Size: 100}
	j.InputFiles["b"] = &InputFile{Size: 250}
	j.OutputFiles["c"] = 650

	assert.Equal(t, int64(350), j.TotalInputBytes())
	assert.Equal(t, int64(650), j.TotalOutputBytes())
	assert.Equal(t, int64(1000), j.TotalBytes())
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusCreated:  "created",
		StatusPending:  "pending",
		StatusAssigned: "assigned",
		StatusRunning:  "running",
		StatusFinished: "finished",
		StatusFailed:   "failed",
		Status(99):     "unknown",
	}
	for status, want := range tests {
		assert.Equal(t, want, status.String())
	}
}
