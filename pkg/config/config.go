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

// Package config holds the core's compile-time parameters (spec §6) as a
// loadable, validated value instead of preprocessor constants.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the core's set of compile-time parameters.
type Config struct {
	// NTasks is OS_NR_TASKS: the size of the dense identity space.
	NTasks int `toml:"n_tasks"`

	// RealtimeBase is OS_REALTIME_TASK: the first dense identity. Bits
	// below it are reserved for priority-as-identity tasks.
	RealtimeBase int `toml:"realtime_base"`

	// LowestPrio is OS_LOWEST_PRIO: priorities <= LowestPrio are
	// real-time/reserved and equal their own pid.
	LowestPrio int `toml:"lowest_prio"`

	// PrioIdle is OS_PRIO_IDLE.
	PrioIdle int `toml:"prio_idle"`

	// PrioPCPU is OS_PRIO_PCPU.
	PrioPCPU int `toml:"prio_pcpu"`

	// NRCPUs is NR_CPUS.
	NRCPUs int `toml:"nr_cpus"`

	// NRTaskEvent is NR_TASK_EVENT, fixed at 32 by spec §3.
	NRTaskEvent int `toml:"nr_task_event"`

	// TaskStackSize is TASK_STACK_SIZE in bytes.
	TaskStackSize int `toml:"task_stack_size"`

	// PageSize is PAGE_SIZE in bytes.
	PageSize int `toml:"page_size"`

	// TaskNameSize is TASK_NAME_SIZE in bytes.
	TaskNameSize int `toml:"task_name_size"`

	// RunTimeTicks is CONFIG_TASK_RUN_TIME.
	RunTimeTicks int `toml:"run_time_ticks"`
}

// Default returns the reference configuration used by tests and by
// cmd/minosd when no TOML file is given.
func Default() *Config {
	return &Config{
		NTasks:        1024,
		RealtimeBase:  256,
		LowestPrio:    254,
		PrioIdle:      255,
		PrioPCPU:      0xff00,
		NRCPUs:        4,
		NRTaskEvent:   32,
		TaskStackSize: 32 * 1024,
		PageSize:      4096,
		TaskNameSize:  32,
		RunTimeTicks:  10,
	}
}

// Load reads a TOML file at path over a copy of Default(), so a file only
// needs to override the parameters it cares about.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants spec §3/§4 assume about the parameters.
func (c *Config) Validate() error {
	switch {
	case c.NTasks <= 0:
		return fmt.Errorf("config: n_tasks must be positive")
	case c.RealtimeBase < 0 || c.RealtimeBase > c.NTasks:
		return fmt.Errorf("config: realtime_base out of range")
	case c.LowestPrio < 0 || c.LowestPrio >= c.RealtimeBase:
		return fmt.Errorf("config: lowest_prio must be below realtime_base")
	case c.PrioIdle <= c.LowestPrio:
		return fmt.Errorf("config: prio_idle must exceed lowest_prio")
	case c.NRCPUs <= 0:
		return fmt.Errorf("config: nr_cpus must be positive")
	case c.NRTaskEvent != 32:
		return fmt.Errorf("config: nr_task_event must be 32 per spec")
	case c.TaskStackSize <= 0 || c.PageSize <= 0:
		return fmt.Errorf("config: task_stack_size and page_size must be positive")
	case c.TaskNameSize <= 0:
		return fmt.Errorf("config: task_name_size must be positive")
	}
	return nil
}
