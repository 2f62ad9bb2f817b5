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

// Package task is the core of the module: task identity allocation, the
// task record itself, its constructor, placement into per-CPU ready
// structures, the timeout-driven wake path, cross-CPU event delivery, and
// the idle-task bootstrap (spec.md components C1-C9).
package task

import (
	"sync"

	"github.com/script-brew/minos/pkg/arch"
	"github.com/script-brew/minos/pkg/timerwheel"
)

// StatBits is the task lifecycle state bitset (spec §3).
type StatBits uint32

// Lifecycle state bits. RDY, RUNNING, SUSPEND and PendAny are
// mutually-non-contradictory subsets, as spec §3 requires; nothing
// enforces exclusivity here, matching the C source's plain bitset.
const (
	StatRDY StatBits = 1 << iota
	StatRUNNING
	StatSUSPEND
	StatPendAny
)

// Has reports whether s has all bits in mask set.
func (s StatBits) Has(mask StatBits) bool { return s&mask == mask }

// Any reports whether s has any bit in mask set.
func (s StatBits) Any(mask StatBits) bool { return s&mask != 0 }

// PendStat tags why a PENDING task woke.
type PendStat int

const (
	// PendNone means the task has not woken from a pend.
	PendNone PendStat = iota
	// PendTO means the task woke because its timeout elapsed.
	PendTO
)

// Flags is the bitset over {IDLE, VCPU, PERCPU, user-defined} (spec §3).
type Flags uint32

const (
	// FlagIdle marks a CPU's idle task.
	FlagIdle Flags = 1 << iota
	// FlagVCPU marks a task backing a guest virtual CPU.
	FlagVCPU
	// FlagPerCPU is reserved for callers; the core itself derives
	// per-CPU-ness from Prio == cfg.PrioPCPU, not from this bit.
	FlagPerCPU
	// FlagUserBase is the first bit available to caller-defined flags.
	FlagUserBase
)

// Affinity is a task's requested placement: a real CPU index, or one of
// the "any"/"current-at-creation" sentinels (spec §3).
type Affinity int32

const (
	// AffinityAny resolves to CPU 0 (spec §4.3 step 6).
	AffinityAny Affinity = -1
	// AffinityPerCPU resolves to the creating CPU (spec §4.3 step 6).
	AffinityPerCPU Affinity = -2
)

// CPU returns the Affinity selecting a specific real CPU index.
func CPU(n int) Affinity { return Affinity(n) }

// IsReal reports whether a names a concrete CPU index rather than a
// sentinel.
func (a Affinity) IsReal() bool { return a >= 0 }

// EventHandle is the opaque handle of the object a task is blocked on
// (spec §3's wait_event); the object itself (mutex, semaphore, message
// queue, ...) is an external collaborator out of this core's scope.
type EventHandle interface{}

// TaskInfo is the small header conceptually co-located at a task's
// stack_origin, carrying a back-reference to the owning task and its
// affinity (spec §3, design note "Back-pointers via stack header"). It
// is never written into the stack's raw memory (that would hide a live
// *Task pointer from the garbage collector); instead Kernel keeps it in
// a map keyed by the stack address it would have occupied, which gives
// the same O(1) "current task from a stack address" lookup without an
// unsafe write. See Kernel.TaskInfoAt.
type TaskInfo struct {
	Task     *Task
	Affinity int
}

// StackInfo describes a task's owned stack region (spec §3).
type StackInfo struct {
	// Origin is the address TaskInfo would occupy: stack top minus the
	// header size.
	Origin uintptr
	// Base is the address the stack starts from (the initial stack
	// pointer handed to the architecture backend). As in the C source it
	// equals Origin: the header sits directly above the usable stack
	// space, which grows down from Base within the same allocation.
	Base uintptr
	// Size is the allocation's size in bytes, page-aligned.
	Size int

	mem []byte // backing memory from pkg/pagealloc, nil for the boot stack
}

// Task is the kernel's schedulable entity (spec §3, component C3).
type Task struct {
	PID      int
	Prio     int
	Affinity int // resolved real CPU index
	Flags    Flags
	Stat     StatBits
	PendStat PendStat

	// Delay is the remaining ticks for a sleep/wait-with-timeout; 0
	// means no timeout armed.
	Delay int

	// Msg and FlagsRdy carry data delivered by a successful wake.
	Msg      interface{}
	FlagsRdy uint32

	WaitEvent EventHandle

	Stack StackInfo

	// By, Bx, Bity, Bitx are precomputed priority-bucket coordinates,
	// valid only when Prio <= the kernel's LowestPrio (spec §3, design
	// note 1).
	By, Bx     int
	Bity, Bitx uint64

	// Lock is the per-task spinlock (spec §5). The timeout and IPI wake
	// paths take it alone and release it before they take the per-CPU
	// or kernel-wide lock to mark the task ready.
	Lock sync.Mutex

	DelayTimer *timerwheel.Timer
	RunTime    int

	// Name is a fixed-width, truncating copy of the task's name, kept
	// as bytes rather than a Go string to mirror the co-located,
	// fixed-layout character of the original record.
	Name []byte

	// Arg is the value handed to the task's entry point.
	Arg interface{}

	// Frame is the task's architecture-backend register frame, built
	// by arch_init_task.
	Frame arch.Frame

	// DelReq is a flag higher layers may set to request destruction at
	// a safe point; this core does not act on it (spec §5,
	// "Cancellation").
	DelReq bool
}

// IsRealtime reports whether t occupies the priority-as-identity range
// (pid == prio), given the kernel's configured lowest real-time
// priority.
func (t *Task) IsRealtime(lowestPrio int) bool { return t.Prio <= lowestPrio }

// IsPending reports whether t is blocked on an event (with or without a
// timeout): SUSPEND set together with PendAny.
func (t *Task) IsPending() bool {
	return t.Stat.Has(StatSUSPEND) && t.Stat.Has(StatPendAny)
}

// IsPerCPU reports whether t is an ordinary per-CPU task, given the
// kernel's configured PRIO_PCPU sentinel.
func (t *Task) IsPerCPU(prioPCPU int) bool { return t.Prio == prioPCPU }
