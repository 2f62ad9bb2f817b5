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
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/script-brew/minos/pkg/bitmap"
)

// EventAction identifies what a cross-CPU event delivery asks the
// destination CPU to do to the target task (spec §3).
type EventAction int

const (
	// EventReady copies Msg, clears Mask from the task's Stat, and
	// clears WaitEvent.
	EventReady EventAction = iota
	// FlagReady copies FlagsRdy and ANDs Mask into the task's Stat
	// ("bits to retain").
	FlagReady
)

// Event is the fixed-slot cross-CPU event descriptor of spec §3,
// component C2. The pool holding these is a fixed arena: no Event is
// ever heap-allocated past pool construction, so delivery remains usable
// from interrupt context.
type Event struct {
	ID     int
	Action EventAction
	Task   *Task
	Msg    interface{}
	Mask   StatBits
	Flags  uint32
}

// EventPool is component C2: NR_TASK_EVENT fixed slots, lent and
// reclaimed under a single pool lock (here, bitmap's own mutex).
type EventPool struct {
	bits   *bitmap.Bitmap
	events []Event
}

// NewEventPool returns a pool with n slots, each carrying its own index
// as ID (mirroring task_events_init's module_initcall loop).
func NewEventPool(n int) *EventPool {
	p := &EventPool{
		bits:   bitmap.New(n),
		events: make([]Event, n),
	}
	for i := range p.events {
		p.events[i].ID = i
	}
	return p
}

// Alloc implements alloc_task_event (spec §4.2): claims the first free
// slot, or returns (nil, false) if the pool is exhausted. Exhaustion is a
// transient, expected condition (spec §4.8); callers in interrupt
// context must treat a false result as "drop and let a subsequent
// delivery or the task's own timeout resolve it" rather than retry
// inline.
func (p *EventPool) Alloc() (*Event, bool) {
	id, ok := p.bits.AllocNextZero(0)
	if !ok {
		return nil, false
	}
	ev := &p.events[id]
	*ev = Event{ID: id}
	return ev, true
}

// Release implements release_task_event (spec §4.2). The open question
// in spec §9 ("BUG - do not free in interrupt") is resolved here by
// construction: Release only ever clears a bit under bitmap's own short,
// non-blocking, non-allocating mutex, so it is safe to call from the
// tail of an IPI handler, which is exactly where task_ipi_event_handler
// calls it.
func (p *EventPool) Release(e *Event) {
	if e == nil {
		return
	}
	p.bits.Clear(e.ID)
}

// Stats reports current occupancy for tests.
func (p *EventPool) Stats() bitmap.Stats { return p.bits.Snapshot() }

// WaitForEvent is a convenience wrapper, outside the §4.6 interrupt-safe
// critical path, for callers that can tolerate blocking with backoff
// instead of hand-rolling a spin loop around Alloc when the pool is
// transiently exhausted (spec §4.8: "the kernel must degrade
// gracefully").
func (p *EventPool) WaitForEvent(ctx context.Context) (*Event, error) {
	var ev *Event
	op := func() error {
		e, ok := p.Alloc()
		if !ok {
			return errEventPoolBusy
		}
		ev = e
		return nil
	}
	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return ev, nil
}

var errEventPoolBusy = &transientError{"event pool exhausted"}

type transientError struct{ msg string }

func (e *transientError) Error() string { return e.msg }
