// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package fileregistry

import (
	"fmt"

	"github.com/jontk/cgsim-dispatcher/internal/simkernel"
)

// ReadActivity schedules a disk read of filename at site, returning the
// kernel Activity handle. It does not mutate the registry: reads don't
// change which sites hold which files.
func (r *FileRegistry) ReadActivity(k simkernel.Kernel, filename, site string, readBandwidthBps float64, preds ...*simkernel.Activity) (*simkernel.Activity, error) {
	size, err := r.SizeOf(filename)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("read:%s@%s", filename, site)
	return k.Read(name, float64(size), readBandwidthBps, preds...), nil
}

// WriteActivity schedules a disk write of a new output file at site. On
// completion the file is registered at site via Create, so subsequent
// jobs' Locate calls see it — without this, a job's own output files
// would be invisible to later placements and the site/file bijection
// would not hold. A Create failure at completion time (the site filled up
// while the write was in flight) is recorded on the activity via Fail for
// the consumer of the completion to surface.
func (r *FileRegistry) WriteActivity(k simkernel.Kernel, filename string, size int64, site string, writeBandwidthBps float64, preds ...*simkernel.Activity) *simkernel.Activity {
	name := fmt.Sprintf("write:%s@%s", filename, site)
	act := k.Write(name, float64(size), writeBandwidthBps, preds...)
	act.OnCompletion(func(a *simkernel.Activity) {
		if err := r.Create(filename, size, site); err != nil {
			a.Fail(err)
		}
	})
	return act
}

// TransferActivity schedules an inter-site transfer of filename from src
// to dst. On completion the file is registered at dst via Create. If dst
// already has the file, TransferActivity schedules a zero-byte kernel
// transfer instead, which completes once its predecessors do and registers
// nothing.
func (r *FileRegistry) TransferActivity(k simkernel.Kernel, filename, src, dst string, bandwidthBps float64, preds ...*simkernel.Activity) (*simkernel.Activity, error) {
	if r.ExistsAt(filename, dst) {
		noop := k.Transfer(fmt.Sprintf("transfer:%s@%s->%s(noop)", filename, src, dst), 0, 0, preds...)
		return noop, nil
	}

	size, err := r.SizeOf(filename)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("transfer:%s@%s->%s", filename, src, dst)
	act := k.Transfer(name, float64(size), bandwidthBps, preds...)
	act.OnCompletion(func(a *simkernel.Activity) {
		if err := r.Create(filename, size, dst); err != nil {
			a.Fail(err)
		}
	})
	return act, nil
}
