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
	"testing"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// TestConcurrentCreatesStayCoherent hammers CreateTask from many
// goroutines at once (bounded by a semaphore, the way a real multi-CPU
// boot would bound concurrent creates to NRCPUs-worth of work) and
// checks that the identity table and os_task_nr end up mutually
// consistent: every allocated pid got exactly one live task, and
// TaskNr equals the number of successful creates.
func TestConcurrentCreatesStayCoherent(t *testing.T) {
	const nrCPUs = 4
	const perCPU = 16

	k, _ := newTestKernel(nrCPUs)
	sem := semaphore.NewWeighted(nrCPUs)

	var g errgroup.Group
	pids := make(chan int, nrCPUs*perCPU)
	for cpu := 0; cpu < nrCPUs; cpu++ {
		for i := 0; i < perCPU; i++ {
			cpu, i := cpu, i
			g.Go(func() error {
				ctx := context.Background()
				if err := sem.Acquire(ctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)

				pid, err := k.CreateTask(cpu, "stress", noopEntry, i, k.Config.PrioPCPU, CPU(cpu), 0)
				if err != nil {
					return err
				}
				pids <- pid
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent creates: %v", err)
	}
	close(pids)

	seen := make(map[int]bool)
	for pid := range pids {
		if seen[pid] {
			t.Fatalf("pid %d handed out twice", pid)
		}
		seen[pid] = true
		tk := k.IDs.PIDToTask(pid)
		if tk == nil || tk == Reserved {
			t.Fatalf("pid %d not installed as a live task: %v", pid, tk)
		}
	}

	if want, got := len(seen), int(k.TaskNr.Load()); want != got {
		t.Fatalf("TaskNr = %d, want %d successful creates", got, want)
	}
}
