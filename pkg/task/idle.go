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
	"github.com/script-brew/minos/pkg/kerr"
	"github.com/script-brew/minos/pkg/klog"
)

// CreateIdleTask implements create_idle_task (spec §4.7, component C8):
// it must run exactly once per CPU, on that CPU, before the scheduler
// on that CPU ever runs. Unlike CreateTask, the idle task is not
// heap-backed: it occupies Kernel's statically-sized idle task array
// and never allocates a stack of its own (it continues running on
// whatever stack called EarlyInit and then this function).
//
// A second call for a CPU that already has an idle task returns
// kerr.Fatal: there is no recovery from this at boot, matching the
// original's decision to treat it as unrecoverable rather than an
// ordinary error.
func CreateIdleTask(k *Kernel, cpu int, name string) error {
	pc := k.CPUs[cpu]

	pc.Lock.Lock()
	hasIdle := pc.IdleTask != nil
	pc.Lock.Unlock()

	pid, err := k.IDs.Alloc(k.Config.PrioIdle, k.Config.LowestPrio, k.Config.PrioIdle, hasIdle)
	if err != nil {
		return kerr.Fatal
	}

	t := &k.idleTasks[cpu]
	k.IDs.Install(pid, t)
	k.TaskNr.Add(1)

	k.initTask(t, name, nil, nil, k.Config.PrioIdle, pid, cpu, FlagIdle)
	t.Stat = StatRUNNING

	k.runCreateHooks(t)

	pc.Lock.Lock()
	pc.IdleTask = t
	pc.TaskList.PushBack(t)
	pc.Lock.Unlock()

	k.SetCurrentTask(cpu, t)

	klog.Infof("idle task %q installed on cpu%d pid=%d", name, cpu, pid)
	return nil
}
