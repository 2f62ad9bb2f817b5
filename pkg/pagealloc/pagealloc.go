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

// Package pagealloc implements the page allocator external collaborator
// named by spec §6 (__get_free_pages, get_free_page, free). It is outside
// the task/dispatch core's own scope, but the core needs a real
// implementation to allocate task stacks, so this package provides one
// backed by an anonymous mmap.
package pagealloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Allocator lends and reclaims page-aligned memory for task stacks.
type Allocator interface {
	// AllocPages returns size bytes of zeroed, page-aligned memory, or
	// an error if none is available.
	AllocPages(size int) ([]byte, error)

	// FreePages releases memory previously returned by AllocPages.
	FreePages(mem []byte) error
}

// BAlign rounds size up to the next multiple of pageSize, mirroring the
// BALIGN(stk_size, PAGE_SIZE) call in §4.3 step 4.
func BAlign(size, pageSize int) int {
	if pageSize <= 0 {
		return size
	}
	return (size + pageSize - 1) &^ (pageSize - 1)
}

// MmapAllocator allocates stacks with a real anonymous mmap, so that a
// stack's address range behaves like real memory (guard-page friendly,
// returned to the OS on free) rather than being backed by the Go heap.
type MmapAllocator struct {
	PageSize int
}

// NewMmapAllocator returns an Allocator backed by anonymous mmap.
func NewMmapAllocator(pageSize int) *MmapAllocator {
	return &MmapAllocator{PageSize: pageSize}
}

// AllocPages implements Allocator.
func (a *MmapAllocator) AllocPages(size int) ([]byte, error) {
	aligned := BAlign(size, a.PageSize)
	if aligned <= 0 {
		return nil, fmt.Errorf("pagealloc: invalid size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, aligned, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("pagealloc: mmap %d bytes: %w", aligned, err)
	}
	return mem, nil
}

// FreePages implements Allocator.
func (a *MmapAllocator) FreePages(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("pagealloc: munmap: %w", err)
	}
	return nil
}
