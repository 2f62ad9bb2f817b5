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

// Package percpu implements the per-CPU run structure named by spec §3:
// task_list (every task homed here), ready_list (runnable here, now), and
// new_list (homed here but created from another CPU, awaiting local
// pickup), plus the run-queue lock that guards all three.
package percpu

import (
	"container/list"
	"sync"

	"github.com/script-brew/minos/pkg/atomicbitops"
)

// CPU is one core's run structure, generic over the task pointer type T
// so that this package never needs to import pkg/task (which itself
// depends on percpu.CPU for placement).
//
// Lock is the per-CPU run-queue lock of spec §5, the second-outermost in
// the lock hierarchy (inside the kernel-wide lock, outside the identity
// and per-task leaf locks). It is taken to mutate TaskList, ReadyList or
// NewList, including by the timeout and IPI wake paths, which take it
// only after releasing the per-task lock.
type CPU[T any] struct {
	Lock sync.Mutex

	// TaskList holds every task homed on this CPU, in creation order.
	TaskList list.List

	// ReadyList holds tasks homed here that are runnable now.
	ReadyList list.List

	// NewList holds tasks homed here but constructed on another CPU,
	// awaiting this CPU's next scheduling opportunity to be spliced
	// into ReadyList.
	NewList list.List

	// NrPCPUTask counts PRIO_PCPU tasks homed on this CPU.
	NrPCPUTask atomicbitops.Int32

	// IdleTask is this CPU's singular idle task, installed by
	// CreateIdleTask. Guarded by Lock.
	IdleTask T
}

// New returns a freshly initialized CPU run structure.
func New[T any]() *CPU[T] {
	cpu := &CPU[T]{}
	cpu.TaskList.Init()
	cpu.ReadyList.Init()
	cpu.NewList.Init()
	return cpu
}

// SpliceNewIntoReady moves every element of NewList onto the back of
// ReadyList, the "the remote CPU will splice new_list into its ready_list
// on its next scheduling opportunity" step of spec §4.4. Callers must
// hold Lock.
func (c *CPU[T]) SpliceNewIntoReady() {
	for e := c.NewList.Front(); e != nil; {
		next := e.Next()
		c.NewList.Remove(e)
		c.ReadyList.PushBack(e.Value)
		e = next
	}
}
