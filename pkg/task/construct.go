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
	"unsafe"

	"github.com/script-brew/minos/pkg/arch"
	"github.com/script-brew/minos/pkg/kerr"
	"github.com/script-brew/minos/pkg/klog"
	"github.com/script-brew/minos/pkg/pagealloc"
	"github.com/script-brew/minos/pkg/timerwheel"
)

// taskInfoSize is sizeof(struct task_info): the header spec §3/§9
// conceptually reserves at the top of a task's stack.
var taskInfoSize = unsafe.Sizeof(TaskInfo{})

// resolveAffinity implements spec §4.3 step 6.
func resolveAffinity(aff Affinity, currentCPU int) int {
	switch aff {
	case AffinityAny:
		return 0
	case AffinityPerCPU:
		return currentCPU
	default:
		return int(aff)
	}
}

// initTask implements task_init (spec §4.3): populates a Task's fields
// given an already-claimed pid and already-allocated (possibly nil)
// stack memory.
func (k *Kernel) initTask(t *Task, name string, stackMem []byte, arg interface{}, prio, pid, affinity int, flags Flags) {
	if len(stackMem) > 0 {
		top := uintptr(unsafe.Pointer(&stackMem[len(stackMem)-1])) + 1
		origin := top - taskInfoSize
		t.Stack = StackInfo{Origin: origin, Base: origin, Size: len(stackMem), mem: stackMem}
		k.registerTaskInfo(origin, &TaskInfo{Task: t, Affinity: affinity})
	}

	t.Arg = arg
	t.Flags = flags
	t.PID = pid
	t.Prio = prio

	if prio <= k.Config.LowestPrio {
		t.By = prio >> 3
		t.Bx = prio & 0x07
		t.Bity = uint64(1) << uint(t.By)
		t.Bitx = uint64(1) << uint(t.Bx)
	}

	t.PendStat = PendNone
	if flags&FlagVCPU != 0 {
		t.Stat = StatSUSPEND
	} else {
		t.Stat = StatRDY
	}

	t.Affinity = affinity
	t.DelReq = false
	t.RunTime = k.Config.RunTimeTicks

	if prio == k.Config.PrioIdle {
		t.Flags |= FlagIdle
	}

	t.DelayTimer = timerwheel.NewTimer(k.Timers.Wheel(affinity), func() {
		TaskTimeoutHandler(k, t)
	})

	t.Name = make([]byte, k.Config.TaskNameSize)
	n := len(name)
	if n > k.Config.TaskNameSize {
		n = k.Config.TaskNameSize
	}
	copy(t.Name, name[:n])
}

// unwindCreate releases everything CreateTask had claimed so far, in
// strict reverse order of acquisition (spec §4.8).
func (k *Kernel) unwindCreate(pid int, mem []byte) {
	if len(mem) > 0 {
		if t := k.IDs.PIDToTask(pid); t != nil && t != Reserved {
			k.unregisterTaskInfo(t.Stack.Origin)
		}
	}
	k.TaskNr.Add(-1)
	if mem != nil {
		k.Pages.FreePages(mem)
	}
	k.IDs.Release(pid)
}

// CreateTask implements create_task (spec §4.3), steps 1-8. currentCPU
// is the CPU executing the creation (there is no smp_processor_id() in
// user-space Go, so it is passed explicitly); entry/arg describe the
// task's initial execution.
func (k *Kernel) CreateTask(currentCPU int, name string, entry arch.EntryFunc, arg interface{}, prio int, aff Affinity, flags Flags) (int, error) {
	// Step 1: validate affinity.
	if aff.IsReal() {
		if int(aff) < 0 || int(aff) >= len(k.CPUs) {
			return -1, kerr.InvalidArgument
		}
	} else if aff != AffinityAny && aff != AffinityPerCPU {
		return -1, kerr.InvalidArgument
	}

	cpuHasIdle := false
	if aff.IsReal() {
		k.CPUs[int(aff)].Lock.Lock()
		cpuHasIdle = k.CPUs[int(aff)].IdleTask != nil
		k.CPUs[int(aff)].Lock.Unlock()
	}

	// Step 2.
	pid, err := k.IDs.Alloc(prio, k.Config.LowestPrio, k.Config.PrioIdle, cpuHasIdle)
	if err != nil {
		return -1, kerr.NoIdentity
	}

	// Step 3.
	t := &Task{}

	// Step 4.
	stackSize := pagealloc.BAlign(k.Config.TaskStackSize, k.Config.PageSize)
	mem, err := k.Pages.AllocPages(stackSize)
	if err != nil {
		k.IDs.Release(pid)
		return -1, kerr.OutOfMemory
	}

	// Step 5.
	k.IDs.Install(pid, t)
	k.TaskNr.Add(1)

	// Step 6.
	resolved := resolveAffinity(aff, currentCPU)

	// Step 7: init_task, task_vmodules_init, create hooks, then
	// arch_init_task -- the same order __create_task/task_create_hook/
	// arch_init_task run in the C source.
	k.initTask(t, name, mem, arg, prio, pid, resolved, flags)

	if err := k.runVModules(t); err != nil {
		k.unwindCreate(pid, mem)
		return -1, err
	}

	k.runCreateHooks(t)

	frame, err := k.Arch.InitTask(t.Stack.Origin, entry, arg)
	if err != nil {
		k.unwindCreate(pid, mem)
		return -1, err
	}
	t.Frame = frame

	// Step 8.
	k.placeAndActivate(currentCPU, t)

	klog.Debugf("created task %q pid=%d prio=%d cpu=%d", name, pid, prio, resolved)
	return pid, nil
}

// CreatePerCPUTask implements create_percpu_task (spec §4.4): it calls
// CreateTask(..., PRIO_PCPU, cpu, flags) for every online CPU.
// currentCPU is the creator's own CPU, used for the ready-vs-new-list
// placement decision inside each CreateTask call.
func (k *Kernel) CreatePerCPUTask(currentCPU int, name string, entry arch.EntryFunc, arg interface{}, flags Flags) []error {
	var errs []error
	for cpu := range k.CPUs {
		if _, err := k.CreateTask(currentCPU, name, entry, arg, k.Config.PrioPCPU, CPU(cpu), flags); err != nil {
			klog.Warningf("create_percpu_task %q failed on cpu%d: %v", name, cpu, err)
			errs = append(errs, err)
		}
	}
	return errs
}

// CreateRealtimeTask implements create_realtime_task (spec §4.4):
// priority-as-identity tasks are pinned to CPU 0 by convention.
func (k *Kernel) CreateRealtimeTask(currentCPU int, name string, entry arch.EntryFunc, arg interface{}, prio int, flags Flags) (int, error) {
	return k.CreateTask(currentCPU, name, entry, arg, prio, CPU(0), flags)
}

// CreateVCPUTask implements create_vcpu_task (spec §4.4): it forces
// PRIO_PCPU and masks flags down to just VCPU.
func (k *Kernel) CreateVCPUTask(currentCPU int, name string, entry arch.EntryFunc, arg interface{}, aff int, flags Flags) (int, error) {
	return k.CreateTask(currentCPU, name, entry, arg, k.Config.PrioPCPU, CPU(aff), flags&FlagVCPU)
}
