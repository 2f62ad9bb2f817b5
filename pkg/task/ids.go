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

package task

import (
	"sync"

	"github.com/script-brew/minos/pkg/bitmap"
	"github.com/script-brew/minos/pkg/kerr"
)

// Reserved is the sentinel installed in IdentityAllocator's table for a
// priority-reserved identity whose Task object has not yet been
// installed. It is distinguished from a free slot (nil) and a valid
// task by pointer identity only, exactly as the C source's
// OS_TASK_RESERVED macro is a distinguished non-null pointer value
// (spec §3).
var Reserved = &Task{}

// IdentityAllocator is component C1: it assigns and releases task
// identifiers in a fixed-capacity identity space, with priority-reserved
// slots below RealtimeBase and a dense scan region at or above it.
//
// mu is the identity-allocator spinlock of spec §4.1/§5: every exported
// method here is its own critical section. A real-time Alloc sets the
// bit and installs Reserved in the same section, and Release clears the
// bit and the table slot together; a dense-region Alloc sets only the
// bit, and its table slot reads nil until the caller's Install.
type IdentityAllocator struct {
	mu    sync.Mutex
	bits  *bitmap.Bitmap
	table []*Task
	base  int // RealtimeBase: OS_REALTIME_TASK
}

// NewIdentityAllocator returns an allocator with nTasks identities, the
// first `realtimeBase` of which are reserved for priority-as-identity
// tasks.
func NewIdentityAllocator(nTasks, realtimeBase int) *IdentityAllocator {
	return &IdentityAllocator{
		bits:  bitmap.New(nTasks),
		table: make([]*Task, nTasks),
		base:  realtimeBase,
	}
}

// Alloc implements alloc_pid (spec §4.1). cpuHasIdle reports whether the
// target CPU already has an idle task, checked by the caller (component
// C8/C5) under its own per-CPU bookkeeping; prioIdle/lowestPrio are the
// kernel's configured sentinels.
func (a *IdentityAllocator) Alloc(prio, lowestPrio, prioIdle int, cpuHasIdle bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if prio > lowestPrio {
		if prio == prioIdle && cpuHasIdle {
			return -1, kerr.NoIdentity
		}
		pid, ok := a.bits.AllocNextZero(a.base)
		if !ok {
			return -1, kerr.NoIdentity
		}
		return pid, nil
	}

	// Real-time / reserved: priority doubles as identity.
	if a.bits.TestAndSet(prio) {
		return -1, kerr.NoIdentity
	}
	a.table[prio] = Reserved
	return prio, nil
}

// Release implements release_pid (spec §4.1). Out-of-range pids are
// silently ignored; spec §9 resolves the C source's off-by-one (`pid >
// OS_NR_TASKS`) in favor of `>=`.
func (a *IdentityAllocator) Release(pid int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pid < 0 || pid >= len(a.table) {
		return
	}
	a.bits.Clear(pid)
	a.table[pid] = nil
}

// Install records t as the live task for pid, replacing whatever sentinel
// or prior value occupied the slot. Called once a Task object has been
// constructed for an identity already claimed by Alloc.
func (a *IdentityAllocator) Install(pid int, t *Task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pid < 0 || pid >= len(a.table) {
		return
	}
	a.table[pid] = t
}

// PIDToTask implements pid_to_task (spec §4.1): bounds-checked lookup
// that may return Reserved. Callers must treat any non-nil, non-Reserved
// result as a valid task.
func (a *IdentityAllocator) PIDToTask(pid int) *Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pid < 0 || pid >= len(a.table) {
		return nil
	}
	return a.table[pid]
}

// Stats reports current occupancy, for tests asserting the round-trip
// and capacity invariants of spec §8 without reaching into private
// state.
func (a *IdentityAllocator) Stats() bitmap.Stats {
	return a.bits.Snapshot()
}
