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

func TestRealtimeTaskNotScheduledBeforeOSRunning(t *testing.T) {
	k, rs := newTestKernel(4)

	// currentCPU == the real-time task's home cpu (0): under the old,
	// buggy cpu == currentCPU gate this would have called Sched()
	// regardless of whether the OS had actually started scheduling.
	if _, err := k.CreateRealtimeTask(0, "rt-early", noopEntry, nil, 5, 0); err != nil {
		t.Fatalf("CreateRealtimeTask: %v", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.schedCalls != 0 {
		t.Fatalf("Sched() called %d times before OSRunning, want 0", rs.schedCalls)
	}
	if len(rs.readyRefs) != 1 {
		t.Fatalf("SetTaskReady called %d times, want 1", len(rs.readyRefs))
	}
}

func TestRealtimeTaskScheduledOnceOSRunning(t *testing.T) {
	k, rs := newTestKernel(4)
	k.OSRunning.Store(true)

	if _, err := k.CreateRealtimeTask(0, "rt-running", noopEntry, nil, 5, 0); err != nil {
		t.Fatalf("CreateRealtimeTask: %v", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.schedCalls != 1 {
		t.Fatalf("Sched() called %d times with OSRunning, want 1", rs.schedCalls)
	}
}

func TestRealtimeTaskNeverTriggersPCPUResched(t *testing.T) {
	k, rs := newTestKernel(4)
	k.OSRunning.Store(true)

	// CreateRealtimeTask always pins to cpu 0, so creating it from cpu 1
	// deliberately mismatches home cpu and currentCPU -- the case the
	// ordinary-task branch would route through PCPUResched, but
	// real-time tasks never do.
	if _, err := k.CreateRealtimeTask(1, "rt-remote", noopEntry, nil, 6, 0); err != nil {
		t.Fatalf("CreateRealtimeTask: %v", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.pcpuResched) != 0 {
		t.Fatalf("PCPUResched called for a real-time task: %v", rs.pcpuResched)
	}
	if rs.schedCalls != 1 {
		t.Fatalf("Sched() called %d times, want 1", rs.schedCalls)
	}
}
