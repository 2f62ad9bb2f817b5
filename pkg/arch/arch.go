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

// Package arch defines the architecture backend external collaborator
// named by spec §6 (arch_init_task). Laying down a real initial register
// frame is instruction-set-specific and explicitly out of scope (spec
// §1); this package is the seam pkg/task calls through, plus a reference
// implementation good enough to exercise and test that seam.
package arch

// EntryFunc is a task's entry point.
type EntryFunc func(arg interface{})

// Frame is an opaque initial register frame. The core never inspects its
// contents; only the architecture backend and the (out of scope)
// scheduling backend do.
type Frame struct {
	Entry EntryFunc
	Arg   interface{}
	SP    uintptr
}

// Backend lays down the initial register frame for a new task on its
// stack, the arch_init_task(task, entry, arg) contract of spec §6.
type Backend interface {
	InitTask(stackTop uintptr, entry EntryFunc, arg interface{}) (Frame, error)
}

// Generic is a reference Backend that just records entry/arg/SP in a
// Frame. It performs no real register-frame construction: that is the
// instruction-level work spec §1 places out of scope for this core.
type Generic struct{}

// InitTask implements Backend.
func (Generic) InitTask(stackTop uintptr, entry EntryFunc, arg interface{}) (Frame, error) {
	return Frame{Entry: entry, Arg: arg, SP: stackTop}, nil
}
