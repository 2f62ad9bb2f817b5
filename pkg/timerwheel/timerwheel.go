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

// Package timerwheel implements the init_timer_on_cpu external collaborator
// named by spec §6/§4.5: a per-CPU timer that fires task_timeout_handler in
// "timer context on the task's home CPU" (§4.5). Pending timers on a CPU
// are kept ordered by absolute deadline tick in a btree so that advancing
// the clock ("a tick arrives") only visits timers that are actually due.
package timerwheel

import (
	"sync"

	"github.com/google/btree"
)

// entry is the btree.Item stored per armed timer.
type entry struct {
	deadline int64
	seq      uint64
	fn       func()
}

func (e entry) Less(than btree.Item) bool {
	o := than.(entry)
	if e.deadline != o.deadline {
		return e.deadline < o.deadline
	}
	return e.seq < o.seq
}

// Wheel holds the pending timers for a single CPU. Every method is
// safe to call concurrently; Tick is meant to be driven by that CPU's own
// timer interrupt (or, in tests, explicitly).
type Wheel struct {
	mu   sync.Mutex
	tree *btree.BTree
	now  int64
	seq  uint64
}

// NewWheel returns an empty Wheel.
func NewWheel() *Wheel {
	return &Wheel{tree: btree.New(8)}
}

// Now returns the wheel's current logical tick.
func (w *Wheel) Now() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

// arm schedules fn to run `ticks` ticks from now and returns a handle the
// Timer can use to cancel it.
func (w *Wheel) arm(ticks int, fn func()) entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	e := entry{deadline: w.now + int64(ticks), seq: w.seq, fn: fn}
	w.tree.ReplaceOrInsert(e)
	return e
}

// cancel removes a previously armed entry, if it is still pending.
func (w *Wheel) cancel(e entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tree.Delete(e)
}

// Tick advances the wheel's clock by one tick and synchronously invokes
// every timer that is now due, in deadline (then arm) order. It returns
// the number of timers fired.
func (w *Wheel) Tick() int {
	w.mu.Lock()
	w.now++
	pivot := entry{deadline: w.now + 1}
	var due []entry
	w.tree.AscendLessThan(pivot, func(i btree.Item) bool {
		due = append(due, i.(entry))
		return true
	})
	for _, e := range due {
		w.tree.Delete(e)
	}
	w.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
	return len(due)
}

// Timer is a single task's delay_timer: bound to one CPU's Wheel at
// construction (init_timer_on_cpu), restartable across successive
// sleeps/waits the way a real task reuses its one delay_timer.
type Timer struct {
	wheel *Wheel
	fn    func()

	mu     sync.Mutex
	armed  bool
	handle entry
}

// NewTimer binds fn to wheel, mirroring init_timer_on_cpu(&task->delay_timer,
// aff) followed by setting .function/.data in task_init.
func NewTimer(wheel *Wheel, fn func()) *Timer {
	return &Timer{wheel: wheel, fn: fn}
}

// Start arms the timer for `ticks` ticks from the wheel's current time,
// replacing any previously pending arm.
func (t *Timer) Start(ticks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		t.wheel.cancel(t.handle)
	}
	t.handle = t.wheel.arm(ticks, t.fn)
	t.armed = true
}

// Stop cancels a pending arm, if any.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		t.wheel.cancel(t.handle)
		t.armed = false
	}
}

// WheelSet holds one Wheel per CPU.
type WheelSet struct {
	wheels []*Wheel
}

// NewWheelSet returns a WheelSet with nrCPUs independent wheels.
func NewWheelSet(nrCPUs int) *WheelSet {
	ws := &WheelSet{wheels: make([]*Wheel, nrCPUs)}
	for i := range ws.wheels {
		ws.wheels[i] = NewWheel()
	}
	return ws
}

// Wheel returns the Wheel for cpu.
func (ws *WheelSet) Wheel(cpu int) *Wheel { return ws.wheels[cpu] }

// Tick advances cpu's wheel by one tick.
func (ws *WheelSet) Tick(cpu int) int { return ws.wheels[cpu].Tick() }
