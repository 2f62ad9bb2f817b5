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
	"sync"

	"github.com/script-brew/minos/pkg/arch"
	"github.com/script-brew/minos/pkg/config"
	"github.com/script-brew/minos/pkg/pagealloc"
	"github.com/script-brew/minos/pkg/sched"
	"github.com/script-brew/minos/pkg/timerwheel"
)

// recordingSched is a sched.Backend that just counts calls, for tests
// that assert activation routed down the expected path without needing
// a real scheduling loop.
type recordingSched struct {
	mu          sync.Mutex
	readyRefs   []sched.TaskRef
	schedCalls  int
	needResched int
	pcpuResched []int
}

func newRecordingSched() *recordingSched { return &recordingSched{} }

func (r *recordingSched) SetTaskReady(ref sched.TaskRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readyRefs = append(r.readyRefs, ref)
}

func (r *recordingSched) Sched() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedCalls++
}

func (r *recordingSched) SetNeedResched() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.needResched++
}

func (r *recordingSched) PCPUResched(cpu int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcpuResched = append(r.pcpuResched, cpu)
}

// fakePages is a pagealloc.Allocator backed by plain heap slices, so
// tests don't need the mmap syscall path to exercise pkg/task.
type fakePages struct{}

func (fakePages) AllocPages(size int) ([]byte, error) { return make([]byte, size), nil }
func (fakePages) FreePages(mem []byte) error          { return nil }

// failingPages always fails AllocPages, for exercising CreateTask's
// unwind-on-stack-failure path.
type failingPages struct{}

func (failingPages) AllocPages(size int) ([]byte, error) { return nil, errAllocFailed }
func (failingPages) FreePages(mem []byte) error          { return nil }

var errAllocFailed = &transientError{"fakePages: out of memory"}

func newTestKernel(nrCPUs int) (*Kernel, *recordingSched) {
	return newTestKernelWithPages(nrCPUs, fakePages{})
}

func newTestKernelWithPages(nrCPUs int, pages pagealloc.Allocator) (*Kernel, *recordingSched) {
	cfg := config.Default()
	cfg.NRCPUs = nrCPUs
	rs := newRecordingSched()
	k := EarlyInit(cfg, Deps{
		Sched:  rs,
		Arch:   arch.Generic{},
		Pages:  pages,
		Timers: timerwheel.NewWheelSet(nrCPUs),
	})
	return k, rs
}
