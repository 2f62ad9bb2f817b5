// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sched defines the scheduling-backend external collaborator
// named by spec §6 (set_task_ready, sched, set_need_resched,
// pcpu_resched) and a reference implementation of the global real-time
// ready structure described in spec §9 design note 1: the priority
// bucket coordinates (by/bx/bity/bitx) exist so that "is anything of
// priority <= p ready" and "find the highest-priority ready task" are
// O(1)/O(bucket count) instead of a scan.
package sched

import "math/bits"

// Backend is the scheduler hand-off contract consumed by pkg/task. A
// real scheduler backend is out of this module's scope (spec §1); tests
// and cmd/minosd use a recording or no-op implementation.
type Backend interface {
	// SetTaskReady informs the scheduler backend that a task is
	// runnable. ref carries the task's priority-bucket coordinates;
	// pkg/task calls this only for real-time tasks.
	SetTaskReady(ref TaskRef)

	// Sched requests that the current CPU reconsider the running task
	// at the next safe point.
	Sched()

	// SetNeedResched raises the resched flag without forcing an
	// immediate reschedule.
	SetNeedResched()

	// PCPUResched sends a fire-and-forget reschedule IPI to cpu.
	PCPUResched(cpu int)
}

// TaskRef is the minimal view of a task the scheduler backend needs: its
// priority-bucket coordinates, for the real-time ready structure.
type TaskRef struct {
	By, Bx     int
	Bity, Bitx uint64
}

// BucketReadyQueue is a reference implementation of the kernel-wide
// real-time ready structure: a two-level bitmap indexed by the By/Bx
// coordinates precomputed for every priority <= PRIO_LOWEST (spec §3).
// MarkReady/Highest are both O(1) in the number of buckets.
type BucketReadyQueue struct {
	// top has one bit per "by" bucket that has at least one ready
	// priority in it.
	top uint64

	// rows[by] has one bit per "bx" (a ready priority within bucket by).
	rows [64]uint64
}

// NewBucketReadyQueue returns an empty ready queue.
func NewBucketReadyQueue() *BucketReadyQueue {
	return &BucketReadyQueue{}
}

// MarkReady marks the priority described by ref as ready. Callers must
// hold the kernel-wide lock (spec §5).
func (q *BucketReadyQueue) MarkReady(ref TaskRef) {
	q.rows[ref.By] |= ref.Bitx
	q.top |= ref.Bity
}

// ClearReady clears the priority described by ref.
func (q *BucketReadyQueue) ClearReady(ref TaskRef) {
	q.rows[ref.By] &^= ref.Bitx
	if q.rows[ref.By] == 0 {
		q.top &^= ref.Bity
	}
}

// Empty reports whether no real-time priority is currently ready.
func (q *BucketReadyQueue) Empty() bool { return q.top == 0 }

// Highest returns the (by, bx) coordinates of the highest-priority
// (lowest-numbered) ready task, and ok=false if the queue is empty. "by"
// and "bx" recombine into a priority as (by<<3)|bx, matching
// task.By/task.Bx.
func (q *BucketReadyQueue) Highest() (by, bx int, ok bool) {
	if q.top == 0 {
		return 0, 0, false
	}
	by = bits.TrailingZeros64(q.top)
	bx = bits.TrailingZeros64(q.rows[by])
	return by, bx, true
}
