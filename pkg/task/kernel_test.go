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

import "testing"

func TestEarlyInitSeedsCurrentTasks(t *testing.T) {
	k, _ := newTestKernel(4)

	for cpu := 0; cpu < 4; cpu++ {
		got := k.CurrentTask(cpu)
		if got == nil {
			t.Fatalf("cpu%d has a nil current task right after EarlyInit", cpu)
		}
		if got != &k.idleTasks[cpu] {
			t.Fatalf("cpu%d current task is not its static idle slot", cpu)
		}
	}
}

func TestTaskNrMatchesLiveCount(t *testing.T) {
	k, _ := newTestKernel(2)

	if n := k.TaskNr.Load(); n != 0 {
		t.Fatalf("fresh kernel TaskNr = %d, want 0", n)
	}

	for i, prio := range []int{3, 4, 5} {
		if _, err := k.CreateRealtimeTask(0, "t", noopEntry, nil, prio, 0); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	if n := k.TaskNr.Load(); n != 3 {
		t.Fatalf("TaskNr = %d, want 3 after three successful creates", n)
	}
}

func TestCreatePerCPUTaskTwoCPUs(t *testing.T) {
	k, _ := newTestKernel(2)

	if errs := k.CreatePerCPUTask(0, "worker", noopEntry, nil, 0); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n := k.TaskNr.Load(); n != 2 {
		t.Fatalf("TaskNr = %d, want 2 (one per cpu)", n)
	}
}

func TestTaskInfoRegisteredAtStackOrigin(t *testing.T) {
	k, _ := newTestKernel(1)

	pid, err := k.CreateRealtimeTask(0, "backed", noopEntry, nil, 3, 0)
	if err != nil {
		t.Fatalf("CreateRealtimeTask: %v", err)
	}
	tk := k.IDs.PIDToTask(pid)

	ti, ok := k.TaskInfoAt(tk.Stack.Origin)
	if !ok {
		t.Fatalf("no TaskInfo registered at stack origin %#x", tk.Stack.Origin)
	}
	if ti.Task != tk {
		t.Fatalf("TaskInfo.Task = %v, want %v", ti.Task, tk)
	}
	if ti.Affinity != tk.Affinity {
		t.Fatalf("TaskInfo.Affinity = %d, want %d", ti.Affinity, tk.Affinity)
	}
}

func TestCreateHooksAndVModulesRunOnce(t *testing.T) {
	k, _ := newTestKernel(1)

	var vmodCalls, hookCalls int
	k.VModules = append(k.VModules, func(tk *Task) error {
		vmodCalls++
		return nil
	})
	k.CreateHooks = append(k.CreateHooks, func(tk *Task) {
		hookCalls++
	})

	if _, err := k.CreateRealtimeTask(0, "hooked", noopEntry, nil, 3, 0); err != nil {
		t.Fatalf("CreateRealtimeTask: %v", err)
	}
	if vmodCalls != 1 {
		t.Fatalf("vmodule called %d times, want 1", vmodCalls)
	}
	if hookCalls != 1 {
		t.Fatalf("create hook called %d times, want 1", hookCalls)
	}
}

func TestVModuleFailureUnwindsCreate(t *testing.T) {
	k, _ := newTestKernel(1)
	before := k.TaskNr.Load()

	k.VModules = append(k.VModules, func(tk *Task) error {
		return errAllocFailed
	})

	pid, err := k.CreateRealtimeTask(0, "rejected", noopEntry, nil, 6, 0)
	if err == nil {
		t.Fatalf("expected vmodule failure to propagate")
	}
	if pid != -1 {
		t.Fatalf("pid = %d, want -1 on vmodule failure", pid)
	}
	if after := k.TaskNr.Load(); after != before {
		t.Fatalf("TaskNr leaked across vmodule failure: before=%d after=%d", before, after)
	}
	if got := k.IDs.PIDToTask(6); got != nil {
		t.Fatalf("pid 6 not released after vmodule failure, got %v", got)
	}
}
