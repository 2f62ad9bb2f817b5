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

// Package atomicbitops provides fixed-width integer and boolean types that
// must be accessed atomically. The core kernel uses these for counters and
// flags that are read and written from multiple CPUs without a lock of their
// own (os_task_nr, per-CPU task counts, resched flags).
package atomicbitops

import "sync/atomic"

// Int32 is an int32 that must be accessed atomically.
type Int32 struct {
	v int32
}

// FromInt32 returns an Int32 initialized to v.
func FromInt32(v int32) Int32 {
	return Int32{v: v}
}

// Load returns the current value.
func (i *Int32) Load() int32 { return atomic.LoadInt32(&i.v) }

// Store sets the value.
func (i *Int32) Store(v int32) { atomic.StoreInt32(&i.v, v) }

// Add adds delta and returns the new value.
func (i *Int32) Add(delta int32) int32 { return atomic.AddInt32(&i.v, delta) }

// Uint32 is a uint32 that must be accessed atomically.
type Uint32 struct {
	v uint32
}

// FromUint32 returns a Uint32 initialized to v.
func FromUint32(v uint32) Uint32 {
	return Uint32{v: v}
}

// Load returns the current value.
func (u *Uint32) Load() uint32 { return atomic.LoadUint32(&u.v) }

// Store sets the value.
func (u *Uint32) Store(v uint32) { atomic.StoreUint32(&u.v, v) }

// Add adds delta and returns the new value.
func (u *Uint32) Add(delta uint32) uint32 { return atomic.AddUint32(&u.v, delta) }

// Bool is a bool that must be accessed atomically.
type Bool struct {
	v int32
}

// FromBool returns a Bool initialized to v.
func FromBool(v bool) Bool {
	return Bool{v: boolToInt32(v)}
}

// Load returns the current value.
func (b *Bool) Load() bool { return atomic.LoadInt32(&b.v) != 0 }

// Store sets the value.
func (b *Bool) Store(v bool) { atomic.StoreInt32(&b.v, boolToInt32(v)) }

func boolToInt32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
