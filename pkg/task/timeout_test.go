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

func TestTimeoutWakeClearsSuspendAndPendAny(t *testing.T) {
	k, rs := newTestKernel(2)

	tk := &Task{Prio: k.Config.PrioPCPU, Affinity: 0, Stat: StatSUSPEND | StatPendAny}

	TaskTimeoutHandler(k, tk)

	if tk.PendStat != PendTO {
		t.Fatalf("PendStat = %v, want PendTO", tk.PendStat)
	}
	if tk.Stat.Any(StatSUSPEND | StatPendAny) {
		t.Fatalf("SUSPEND/PendAny still set: %#x", uint32(tk.Stat))
	}
	if !tk.Stat.Has(StatRDY) {
		t.Fatalf("RDY not set after timeout wake: %#x", uint32(tk.Stat))
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.needResched != 1 {
		t.Fatalf("SetNeedResched called %d times, want 1", rs.needResched)
	}
}

func TestTimeoutPlainSleepWakesWithoutPendTO(t *testing.T) {
	k, _ := newTestKernel(1)

	tk := &Task{Prio: k.Config.PrioPCPU, Affinity: 0, Stat: StatSUSPEND}

	TaskTimeoutHandler(k, tk)

	if tk.PendStat != PendNone {
		t.Fatalf("PendStat = %v, want PendNone for a plain sleep", tk.PendStat)
	}
	if !tk.Stat.Has(StatRDY) || tk.Stat.Has(StatSUSPEND) {
		t.Fatalf("stat after plain-sleep wake = %#x", uint32(tk.Stat))
	}
}

func TestTimeoutEventRace(t *testing.T) {
	k, rs := newTestKernel(1)

	// The event handler already woke the task (RDY, no SUSPEND) before
	// the timer fired: the timer lost the race and must be a no-op.
	tk := &Task{Prio: k.Config.PrioPCPU, Affinity: 0, Stat: StatRDY}

	TaskTimeoutHandler(k, tk)

	if tk.Stat != StatRDY {
		t.Fatalf("stat mutated by a lost-race timeout: %#x", uint32(tk.Stat))
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.needResched != 0 || rs.schedCalls != 0 {
		t.Fatalf("lost-race timeout triggered a resched: needResched=%d schedCalls=%d", rs.needResched, rs.schedCalls)
	}
}

func TestTimeoutWakeOnRealtimeTaskMarksBucketReady(t *testing.T) {
	k, rs := newTestKernel(1)

	tk := &Task{Prio: 3, Affinity: 0, Stat: StatSUSPEND | StatPendAny, By: 0, Bx: 3, Bity: 1, Bitx: 1 << 3}

	TaskTimeoutHandler(k, tk)

	if k.Ready.Empty() {
		t.Fatalf("kernel-wide ready bucket not marked for a woken real-time task")
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.schedCalls != 1 {
		t.Fatalf("Sched() called %d times, want 1", rs.schedCalls)
	}
}
