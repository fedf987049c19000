// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package job defines the workload unit the dispatcher places and drives
// through its activity pipeline. Job is created once by
// workload ingestion. A placement policy's AssignJob sets its Status and
// Placement; the executor advances all other state.
package job

import "github.com/jontk/cgsim-dispatcher/pkg/model"

// Status is the job lifecycle:
//
//	created -> (assign_job) -> assigned -> running -> finished
//	        -> pending -> (retried) -> assigned -> ...
//	        -> failed (terminal)
type Status int

const (
	StatusCreated Status = iota
	StatusPending
	StatusAssigned
	StatusRunning
	StatusFinished
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusPending:
		return "pending"
	case StatusAssigned:
		return "assigned"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InputFile is one entry of a job's input-file map: its size and the set
// of sites it is known to exist at prior to placement.
type InputFile struct {
	Size      int64
	Locations map[string]struct{} // site name -> present
}

// Placement is the (Site, Host, Disk) triple a placement decision commits
// a job to. The pending/failed arms of a decision are represented by
// Job.Status instead of a variant type, which keeps the common case a
// plain struct.
type Placement struct {
	Site model.SiteID
	Host model.HostID
	Disk model.DiskID
}

// Timestamps records the simulated instants at which a job crossed each
// milestone in its pipeline, for reporting and for cpu_consumption_time
// -style derived metrics.
type Timestamps struct {
	Enqueue      float64
	Assign       float64
	TransferDone float64
	ExecStart    float64
	ExecDone     float64
}

// Job is the workload unit: immutable request
// attributes plus the mutable state the executor and activity callbacks
// advance it through.
type Job struct {
	ID                 int64
	CoresRequested     int
	FlopsHint          float64
	CPUConsumptionTime float64
	Priority           int

	InputFiles  map[string]*InputFile // filename -> file
	OutputFiles map[string]int64      // filename -> size

	Status     Status
	Placement  *Placement // non-nil only once Status == StatusAssigned or later
	Retries    int
	Timestamps Timestamps

	TotalReadTime  float64
	TotalWriteTime float64
}

// New builds a Job in StatusCreated with empty file maps ready to be
// populated by workload ingestion.
func New(id int64, cores int, flopsHint float64, priority int) *Job {
	return &Job{
		ID:             id,
		CoresRequested: cores,
		FlopsHint:      flopsHint,
		Priority:       priority,
		InputFiles:     make(map[string]*InputFile),
		OutputFiles:    make(map[string]int64),
		Status:         StatusCreated,
	}
}

// TotalInputBytes sums the sizes of every input file, used by the external
// policy's feature vector.
func (j *Job) TotalInputBytes() int64 {
	var total int64
	for _, f := range j.InputFiles {
		total += f.Size
	}
	return total
}

// TotalOutputBytes sums the sizes of every output file.
func (j *Job) TotalOutputBytes() int64 {
	var total int64
	for _, size := range j.OutputFiles {
		total += size
	}
	return total
}

// TotalBytes is the combined input+output footprint a placement must find
// free disk space for.
func (j *Job) TotalBytes() int64 {
	return j.TotalInputBytes() + j.TotalOutputBytes()
}
