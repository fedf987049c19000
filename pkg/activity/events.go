// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"github.com/jontk/cgsim-dispatcher/internal/simkernel"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
)

// EventKind identifies which lifecycle edge of a job's activity graph an
// Event reports.
type EventKind int

const (
	EventTransferStart EventKind = iota
	EventTransferEnd
	EventReadStart
	EventReadEnd
	EventExecStart
	EventExecEnd
	EventWriteStart
	EventWriteEnd
)

func (k EventKind) String() string {
	switch k {
	case EventTransferStart:
		return "transfer-start"
	case EventTransferEnd:
		return "transfer-end"
	case EventReadStart:
		return "read-start"
	case EventReadEnd:
		return "read-end"
	case EventExecStart:
		return "exec-start"
	case EventExecEnd:
		return "exec-end"
	case EventWriteStart:
		return "write-start"
	case EventWriteEnd:
		return "write-end"
	default:
		return "unknown"
	}
}

// Event is a single activity lifecycle notification. Rather than mutating
// job or resource state from inside kernel completion callbacks, the
// builder posts Events to the executor, whose select loop performs every
// state change in one place. Filename and the site fields are populated
// only for the event kinds they apply to.
type Event struct {
	Kind     EventKind
	Job      *job.Job
	Activity *simkernel.Activity

	Filename string
	SrcSite  string
	DstSite  string

	// Err carries a failure recorded on the activity by a completion
	// observer — a storage commit that no longer fit, for instance. Only
	// set on end events.
	Err error
}
