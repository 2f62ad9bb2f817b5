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

// placeAndActivate implements the placement-and-activation half of
// create_task (spec §4.4, component C5): t is homed on its resolved
// affinity CPU's task_list, then activated unless it was constructed
// suspended (a VCPU task awaiting its first resume).
//
// Real-time tasks bypass per-CPU ready_list entirely: their readiness
// lives in the kernel-wide bucket structure under KernelLock, and
// home-CPU placement is irrelevant to how they're woken up. They only
// get an immediate Sched() if the OS is already running; pcpu_resched
// is never issued for a real-time task, regardless of which CPU
// created it (task.c, create_task).
//
// Ordinary tasks are local (currentCPU == t.Affinity) or remote. Local
// ones go straight onto ready_list with a plain resched request;
// remote ones go onto the home CPU's new_list and the home CPU is sent
// a reschedule IPI, which splices new_list into ready_list on its own
// next scheduling opportunity.
func (k *Kernel) placeAndActivate(currentCPU int, t *Task) {
	cpu := t.Affinity
	pc := k.CPUs[cpu]

	pc.Lock.Lock()
	pc.TaskList.PushBack(t)
	if t.IsPerCPU(k.Config.PrioPCPU) {
		pc.NrPCPUTask.Add(1)
	}
	pc.Lock.Unlock()

	if t.Stat.Has(StatSUSPEND) {
		// Constructed suspended (VCPU task): no ready-queue activation
		// until something resumes it.
		return
	}

	if t.IsRealtime(k.Config.LowestPrio) {
		k.KernelLock.Lock()
		k.Ready.MarkReady(taskRef(t))
		k.KernelLock.Unlock()
		k.Sched.SetTaskReady(taskRef(t))
		if k.OSRunning.Load() {
			k.Sched.Sched()
		}
		return
	}

	pc.Lock.Lock()
	if cpu == currentCPU {
		pc.ReadyList.PushBack(t)
		pc.Lock.Unlock()
		k.Sched.SetNeedResched()
		return
	}
	pc.NewList.PushBack(t)
	pc.Lock.Unlock()
	k.Sched.PCPUResched(cpu)
}

// activateReady implements set_task_ready (spec §6) for a task already
// resident in its home CPU's task_list: the wake path shared by the
// timeout handler (C6) and the IPI event handler (C7), both of which
// run on the task's own home CPU, so there is no local/remote
// distinction left to make here.
func (k *Kernel) activateReady(t *Task) {
	if t.IsRealtime(k.Config.LowestPrio) {
		k.KernelLock.Lock()
		k.Ready.MarkReady(taskRef(t))
		k.KernelLock.Unlock()
		k.Sched.SetTaskReady(taskRef(t))
		k.Sched.Sched()
		return
	}

	pc := k.CPUs[t.Affinity]
	pc.Lock.Lock()
	pc.ReadyList.PushBack(t)
	pc.Lock.Unlock()
	k.Sched.SetNeedResched()
}
