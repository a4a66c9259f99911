// Package metrics samples per-PID resource usage and turns threshold
// breaches into recycle triggers (spec.md §4.2).
package metrics

import (
	gopsutil_process "github.com/shirou/gopsutil/v3/process"
)

// Sample is one point-in-time reading for a PID.
type Sample struct {
	RSS        uint64
	CPUPercent float64
}

// Sampler asks the OS-specific backend for a PID's RSS and CPU percent.
// gopsutil's process.Process already dispatches to /proc on Linux, ps on
// macOS, and the platform performance counters on Windows with
// argv-only invocation — no shell interpolation ever touches a PID
// (spec.md §4.2).
type Sampler struct{}

func NewSampler() *Sampler { return &Sampler{} }

// Sample reads one instance's current RSS and CPU percent. Each call opens
// a fresh gopsutil handle, so CPUPercent is gopsutil's average over the
// process's whole lifetime, not the usage since the previous sample, and
// the first reading for a PID is not 0. A PID that cannot be resolved
// (process exited, sampler unavailable) returns a zeroed Sample and the
// error, which the monitor logs on every cycle it occurs; no randomized
// value is ever substituted (spec.md §4.2).
func (s *Sampler) Sample(pid int32) (Sample, error) {
	p, err := gopsutil_process.NewProcess(pid)
	if err != nil {
		return Sample{}, err
	}

	var sample Sample
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		sample.RSS = mem.RSS
	}
	if cpuPct, err := p.CPUPercent(); err == nil {
		sample.CPUPercent = cpuPct
	}
	return sample, nil
}
