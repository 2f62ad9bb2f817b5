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

// Command minosd boots the task/dispatch core standalone, for manual
// inspection of its startup sequence outside of a test binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/script-brew/minos/pkg/arch"
	"github.com/script-brew/minos/pkg/config"
	"github.com/script-brew/minos/pkg/klog"
	"github.com/script-brew/minos/pkg/pagealloc"
	"github.com/script-brew/minos/pkg/sched"
	"github.com/script-brew/minos/pkg/task"
	"github.com/script-brew/minos/pkg/timerwheel"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&bootCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// bootCmd runs EarlyInit, brings up one idle task per CPU, then fans a
// per-CPU worker out across every CPU concurrently -- the same sequence
// a real boot path runs before handing control to the scheduler.
type bootCmd struct {
	cfgPath string
	nrCPUs  int
}

func (*bootCmd) Name() string     { return "boot" }
func (*bootCmd) Synopsis() string { return "bring up the task core and exit" }
func (*bootCmd) Usage() string {
	return "boot [-config path] [-cpus n]:\n  run EarlyInit, idle-task bootstrap and per-CPU task creation, then exit.\n"
}

func (c *bootCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.cfgPath, "config", "", "path to a TOML config overriding the defaults")
	f.IntVar(&c.nrCPUs, "cpus", 0, "override nr_cpus from config (0 keeps the config value)")
}

func (c *bootCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.cfgPath)
	if err != nil {
		klog.Logger.Errorf("boot: %v", err)
		return subcommands.ExitFailure
	}
	if c.nrCPUs > 0 {
		cfg.NRCPUs = c.nrCPUs
	}

	k := task.EarlyInit(cfg, task.Deps{
		Sched:  noopSchedBackend{},
		Arch:   arch.Generic{},
		Pages:  pagealloc.NewMmapAllocator(cfg.PageSize),
		Timers: timerwheel.NewWheelSet(cfg.NRCPUs),
	})

	for cpu := 0; cpu < cfg.NRCPUs; cpu++ {
		if err := task.CreateIdleTask(k, cpu, fmt.Sprintf("idle/%d", cpu)); err != nil {
			klog.Logger.Errorf("boot: idle task on cpu%d: %v", cpu, err)
			return subcommands.ExitFailure
		}
	}
	klog.Infof("idle tasks installed on %d cpus", cfg.NRCPUs)

	// Idle tasks are up on every CPU, so the scheduler loop each one
	// runs is now meaningful: from here on, placing a real-time task
	// can safely trigger an immediate Sched() (spec §4.4).
	k.OSRunning.Store(true)

	g, _ := errgroup.WithContext(ctx)
	for cpu := 0; cpu < cfg.NRCPUs; cpu++ {
		cpu := cpu
		g.Go(func() error {
			_, err := k.CreateTask(cpu, fmt.Sprintf("worker/%d", cpu), workerEntry, nil, cfg.PrioPCPU, task.CPU(cpu), 0)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		klog.Logger.Errorf("boot: per-cpu worker fan-out: %v", err)
		return subcommands.ExitFailure
	}

	klog.Infof("task core up: %d live tasks", k.TaskNr.Load())
	return subcommands.ExitSuccess
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func workerEntry(interface{}) {}

// noopSchedBackend discards every scheduling hand-off: minosd boot only
// demonstrates construction and placement, not an actual run loop.
type noopSchedBackend struct{}

func (noopSchedBackend) SetTaskReady(sched.TaskRef) {}
func (noopSchedBackend) Sched()                     {}
func (noopSchedBackend) SetNeedResched()            {}
func (noopSchedBackend) PCPUResched(int)            {}
