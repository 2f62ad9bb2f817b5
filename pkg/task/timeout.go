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

import "github.com/script-brew/minos/pkg/klog"

// TaskTimeoutHandler implements task_timeout_handler (spec §4.5,
// component C6): fired by t's DelayTimer, in timer context on t's own
// home CPU. It is the only place PendTO is ever set.
func TaskTimeoutHandler(k *Kernel, t *Task) {
	t.Lock.Lock()
	switch {
	case t.Stat.Has(StatSUSPEND) && t.Stat.Has(StatPendAny):
		// Waiting on an event with a timeout, and the event lost the
		// race: wake as a timeout.
		t.PendStat = PendTO
		t.Stat &^= StatSUSPEND | StatPendAny
		t.Stat |= StatRDY

	case t.Stat.Has(StatSUSPEND):
		// A plain timed sleep, no event pending.
		t.PendStat = PendNone
		t.Stat &^= StatSUSPEND
		t.Stat |= StatRDY

	default:
		// The event handler already woke this task before the timer
		// fired; the timer lost the race. Nothing to do but log it, the
		// same defensive branch task_timeout_handler takes.
		klog.Warningf("timeout fired for pid=%d outside SUSPEND, stat=%#x", t.PID, uint32(t.Stat))
		t.Lock.Unlock()
		return
	}
	t.Lock.Unlock()

	k.activateReady(t)
}
