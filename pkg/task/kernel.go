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

	"github.com/script-brew/minos/pkg/arch"
	"github.com/script-brew/minos/pkg/atomicbitops"
	"github.com/script-brew/minos/pkg/config"
	"github.com/script-brew/minos/pkg/pagealloc"
	"github.com/script-brew/minos/pkg/percpu"
	"github.com/script-brew/minos/pkg/sched"
	"github.com/script-brew/minos/pkg/timerwheel"
)

// VModule is a per-task plug-in state hook, the task_vmodules_init
// external collaborator named by spec §6.
type VModule func(t *Task) error

// CreateHook is the do_hooks(task, nil, HOOK_CREATE_TASK) dispatcher
// named by spec §6, run once a task (including an idle task) is fully
// constructed.
type CreateHook func(t *Task)

// Kernel owns every piece of shared state the core needs: the identity
// allocator and event pool (leaf locks), the kernel-wide real-time ready
// structure, and one run structure per CPU. Its zero value is not usable;
// construct with EarlyInit.
type Kernel struct {
	Config *config.Config

	IDs    *IdentityAllocator
	Events *EventPool

	// KernelLock guards Ready, the kernel-wide lock of spec §5 (the
	// outermost in the lock hierarchy).
	KernelLock sync.Mutex
	Ready      *sched.BucketReadyQueue

	CPUs []*percpu.CPU[*Task]

	Sched  sched.Backend
	Arch   arch.Backend
	Pages  pagealloc.Allocator
	Timers *timerwheel.WheelSet

	VModules    []VModule
	CreateHooks []CreateHook

	// TaskNr is os_task_nr: a lock-free counter equal to the number of
	// identity table entries holding an installed task, neither nil nor
	// Reserved (spec §3).
	TaskNr atomicbitops.Int32

	// OSRunning is os_is_running(): false during early boot, while
	// real-time tasks may already be created and marked ready but
	// there is no scheduler loop yet for sched() to preempt into. Set
	// once scheduling has actually started (spec §4.4).
	OSRunning atomicbitops.Bool

	// currentTasks/nextTasks are __current_tasks[]/__next_tasks[],
	// seeded by EarlyInit so that preempt_disable/enable-style queries
	// have an answer from the first instruction onward (spec §4.7).
	cpuMu        sync.Mutex
	currentTasks []*Task
	nextTasks    []*Task

	// idleTasks is the statically-sized idle task array of spec §9
	// ("Static idle tasks must be statically allocated, not heap...
	// encode as a fixed array sized by NR_CPUS"): allocated once by
	// EarlyInit and never resized.
	idleTasks []Task

	// taskInfoIndex realizes the TaskInfo back-pointer (spec §3, design
	// note) as a Kernel-owned map instead of a raw pointer written into
	// stack memory, so the garbage collector always sees a live
	// reference to every installed Task.
	tiMu          sync.Mutex
	taskInfoIndex map[uintptr]*TaskInfo
}

// Deps bundles the external collaborators a Kernel needs (spec §6,
// "Consumed").
type Deps struct {
	Sched  sched.Backend
	Arch   arch.Backend
	Pages  pagealloc.Allocator
	Timers *timerwheel.WheelSet
}

// EarlyInit implements tasks_early_init (spec §4.7): it must run before
// any other pkg/task entry point. It allocates the fixed-size idle task
// array and seeds the per-CPU current/next task pointers so that any
// caller reading "the current task on CPU N" gets a well-defined answer
// immediately.
func EarlyInit(cfg *config.Config, deps Deps) *Kernel {
	k := &Kernel{
		Config:        cfg,
		IDs:           NewIdentityAllocator(cfg.NTasks, cfg.RealtimeBase),
		Events:        NewEventPool(cfg.NRTaskEvent),
		Ready:         sched.NewBucketReadyQueue(),
		CPUs:          make([]*percpu.CPU[*Task], cfg.NRCPUs),
		Sched:         deps.Sched,
		Arch:          deps.Arch,
		Pages:         deps.Pages,
		Timers:        deps.Timers,
		currentTasks:  make([]*Task, cfg.NRCPUs),
		nextTasks:     make([]*Task, cfg.NRCPUs),
		idleTasks:     make([]Task, cfg.NRCPUs),
		taskInfoIndex: make(map[uintptr]*TaskInfo),
	}
	for i := range k.CPUs {
		k.CPUs[i] = percpu.New[*Task]()
		k.currentTasks[i] = &k.idleTasks[i]
		k.nextTasks[i] = &k.idleTasks[i]
	}
	return k
}

// CurrentTask returns the task __current_tasks[cpu] names.
func (k *Kernel) CurrentTask(cpu int) *Task {
	k.cpuMu.Lock()
	defer k.cpuMu.Unlock()
	return k.currentTasks[cpu]
}

// SetCurrentTask updates __current_tasks[cpu].
func (k *Kernel) SetCurrentTask(cpu int, t *Task) {
	k.cpuMu.Lock()
	defer k.cpuMu.Unlock()
	k.currentTasks[cpu] = t
}

// TaskInfoAt returns the TaskInfo that would be found at addr, the
// back-pointer lookup spec §9's design note describes.
func (k *Kernel) TaskInfoAt(addr uintptr) (*TaskInfo, bool) {
	k.tiMu.Lock()
	defer k.tiMu.Unlock()
	ti, ok := k.taskInfoIndex[addr]
	return ti, ok
}

func (k *Kernel) registerTaskInfo(addr uintptr, ti *TaskInfo) {
	k.tiMu.Lock()
	defer k.tiMu.Unlock()
	k.taskInfoIndex[addr] = ti
}

func (k *Kernel) unregisterTaskInfo(addr uintptr) {
	k.tiMu.Lock()
	defer k.tiMu.Unlock()
	delete(k.taskInfoIndex, addr)
}

// runVModules invokes task_vmodules_init for t.
func (k *Kernel) runVModules(t *Task) error {
	for _, vm := range k.VModules {
		if err := vm(t); err != nil {
			return err
		}
	}
	return nil
}

// runCreateHooks invokes do_hooks(task, nil, HOOK_CREATE_TASK) for t.
func (k *Kernel) runCreateHooks(t *Task) {
	for _, h := range k.CreateHooks {
		h(t)
	}
}

// taskRef converts t's priority-bucket coordinates into the sched.TaskRef
// the scheduler backend consumes.
func taskRef(t *Task) sched.TaskRef {
	return sched.TaskRef{By: t.By, Bx: t.Bx, Bity: t.Bity, Bitx: t.Bitx}
}
