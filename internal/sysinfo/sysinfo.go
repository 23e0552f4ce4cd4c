// Package sysinfo collects host metrics for the system view.
package sysinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/kverlaine/opsdeck/internal/gateway"
)

// Snapshot is one full reading of host metrics.
type Snapshot struct {
	Hostname      string     `json:"hostname"`
	Platform      string     `json:"platform"`
	KernelVersion string     `json:"kernel_version"`
	UptimeSec     uint64     `json:"uptime_sec"`
	CPUPercent    float64    `json:"cpu_percent"`
	CPUCount      int        `json:"cpu_count"`
	Load1         float64    `json:"load1"`
	Load5         float64    `json:"load5"`
	Load15        float64    `json:"load15"`
	MemTotal      uint64     `json:"mem_total"`
	MemUsed       uint64     `json:"mem_used"`
	MemPercent    float64    `json:"mem_percent"`
	Disks         []DiskStat `json:"disks"`
}

// DiskStat is usage for one mounted filesystem.
type DiskStat struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// Collector reads host metrics via gopsutil.
type Collector struct {
	// Paths are the mount points reported in the snapshot.
	Paths []string
	// CPUSample is how long the CPU percentage is sampled for. Kept short:
	// the snapshot call sits inside the snapshot soft-timeout budget.
	CPUSample time.Duration
}

// NewCollector creates a Collector with default mount points.
func NewCollector() *Collector {
	return &Collector{
		Paths:     []string{"/"},
		CPUSample: 500 * time.Millisecond,
	}
}

// Collect reads a full Snapshot. Individual probe failures fail the whole
// snapshot; callers degrade to cached data.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("host info: %w", err)
	}

	percents, err := cpu.PercentWithContext(ctx, c.CPUSample, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu counts: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load average: %w", err)
	}

	snap := &Snapshot{
		Hostname:      info.Hostname,
		Platform:      fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion),
		KernelVersion: info.KernelVersion,
		UptimeSec:     info.Uptime,
		CPUPercent:    cpuPct,
		CPUCount:      counts,
		Load1:         avg.Load1,
		Load5:         avg.Load5,
		Load15:        avg.Load15,
		MemTotal:      vm.Total,
		MemUsed:       vm.Used,
		MemPercent:    vm.UsedPercent,
	}

	for _, path := range c.Paths {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("disk usage %s: %w", path, err)
		}
		snap.Disks = append(snap.Disks, DiskStat{
			Path:        path,
			Total:       usage.Total,
			Used:        usage.Used,
			UsedPercent: usage.UsedPercent,
		})
	}

	return snap, nil
}

// RegisterHandlers binds the system commands onto the local gateway.
func RegisterHandlers(g *gateway.Local, c *Collector) {
	g.Register("system.snapshot", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return c.Collect(ctx)
	})
}
