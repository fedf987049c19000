// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"github.com/jontk/cgsim-dispatcher/pkg/activity"
	"github.com/jontk/cgsim-dispatcher/pkg/fileregistry"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
)

// WorkloadSource supplies the ordered job sequence a run executes. n < 0
// means all remaining jobs. Implementations live outside the core (the
// reference CSV loader is pkg/workload); the executor only consumes the
// interface.
type WorkloadSource interface {
	GetJobs(n int64) ([]*job.Job, error)
}

// TopologySource materializes the platform a run executes against: the
// grid arenas, the file registry seeded with each site's initial files,
// and the inter-site link bandwidths. The reference JSON loader is
// pkg/topology.
type TopologySource interface {
	BuildGrid(gridName string) (*model.Grid, *fileregistry.FileRegistry, *activity.Links, error)
}
