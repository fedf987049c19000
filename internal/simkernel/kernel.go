// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package simkernel

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
)

// Kernel is the interface the dispatch/execution core consumes in place
// of a real discrete-event simulation kernel. Transfer/Read/Exec/Write
// each return an asynchronous Activity handle whose completion is delivered
// via callback once any predecessor activities have finished and the
// simulated work duration has elapsed.
type Kernel interface {
	// Now returns the current simulated time, in seconds.
	Now() float64

	// Transfer schedules a file transfer of the given byte count at the
	// given bandwidth (bytes/sec), starting only after all preds complete.
	Transfer(name string, bytes, bandwidthBps float64, preds ...*Activity) *Activity

	// Read schedules a disk read, same timing model as Transfer.
	Read(name string, bytes, bandwidthBps float64, preds ...*Activity) *Activity

	// Exec schedules a compute activity of the given FLOP count at the
	// given FLOPS rate, starting only after all preds complete.
	Exec(name string, flops, flopsPerSec float64, preds ...*Activity) *Activity

	// Write schedules a disk write, same timing model as Transfer.
	Write(name string, bytes, bandwidthBps float64, preds ...*Activity) *Activity

	// Run executes queued events in simulated-time order, blocking the
	// calling goroutine. It waits while the queue is empty and returns once
	// Stop has been called and the queue has drained. Only one EventFunc
	// executes at a time, preserving cooperative serialization. ctx
	// cancellation is observed between events; an in-flight activity is
	// never cancelled.
	Run(ctx context.Context) error

	// Stop requests the running Run loop to return once its event queue
	// drains, without scheduling anything further.
	Stop()
}

// EventFunc is a unit of work the kernel executes at a simulated instant.
type EventFunc func()

type event struct {
	at  float64
	seq uint64
	fn  EventFunc
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at == h[j].at {
		return h[i].seq < h[j].seq
	}
	return h[i].at < h[j].at
}
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// clockKernel is the reference Kernel: a single min-heap of scheduled
// events processed in simulated-time order, guarded by a mutex/condvar so
// goroutines (host workers, the executor) may push new events at any true
// wall-clock instant while exactly one EventFunc runs at a time.
type clockKernel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     float64
	events  eventHeap
	seq     uint64
	stopped bool
}

// New constructs a fresh Kernel with its clock at zero.
func New() Kernel {
	k := &clockKernel{}
	k.cond = sync.NewCond(&k.mu)
	return k
}

func (k *clockKernel) Now() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now
}

func (k *clockKernel) at(t float64, fn EventFunc) {
	k.mu.Lock()
	e := &event{at: t, seq: k.seq, fn: fn}
	k.seq++
	heap.Push(&k.events, e)
	k.mu.Unlock()
	k.cond.Broadcast()
}

func (k *clockKernel) after(d float64, fn EventFunc) {
	if d < 0 {
		d = 0
	}
	k.at(k.Now()+d, fn)
}

func duration(work, rate float64) float64 {
	if rate <= 0 || work <= 0 {
		return 0
	}
	return work / rate
}

// schedule builds an Activity that starts once every pred has completed
// (immediately, if there are none) and runs for the given duration.
func (k *clockKernel) schedule(kind Kind, name string, duration float64, preds []*Activity) *Activity {
	act := newActivity(kind, name)

	start := func() {
		st := k.Now()
		act.begin(st)
		k.after(duration, func() {
			act.complete(st, st+duration)
		})
	}

	if len(preds) == 0 {
		k.after(0, start)
		return act
	}

	remaining := int64(len(preds))
	for _, p := range preds {
		p.OnCompletion(func(*Activity) {
			if atomic.AddInt64(&remaining, -1) == 0 {
				start()
			}
		})
	}
	return act
}

func (k *clockKernel) Transfer(name string, bytes, bandwidthBps float64, preds ...*Activity) *Activity {
	return k.schedule(KindTransfer, name, duration(bytes, bandwidthBps), preds)
}

func (k *clockKernel) Read(name string, bytes, bandwidthBps float64, preds ...*Activity) *Activity {
	return k.schedule(KindRead, name, duration(bytes, bandwidthBps), preds)
}

func (k *clockKernel) Exec(name string, flops, flopsPerSec float64, preds ...*Activity) *Activity {
	return k.schedule(KindExec, name, duration(flops, flopsPerSec), preds)
}

func (k *clockKernel) Write(name string, bytes, bandwidthBps float64, preds ...*Activity) *Activity {
	return k.schedule(KindWrite, name, duration(bytes, bandwidthBps), preds)
}

func (k *clockKernel) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		k.mu.Lock()
		for len(k.events) == 0 && !k.stopped {
			k.cond.Wait()
		}
		if len(k.events) == 0 {
			k.mu.Unlock()
			return nil
		}
		e := heap.Pop(&k.events).(*event)
		k.now = e.at
		k.mu.Unlock()

		e.fn()
	}
}

func (k *clockKernel) Stop() {
	k.mu.Lock()
	k.stopped = true
	k.mu.Unlock()
	k.cond.Broadcast()
}
