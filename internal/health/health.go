// Package health reports host metrics and dependency readiness.
package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats is a snapshot of host utilisation in percent.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	GoVersion     string  `json:"go_version"`
	Goroutines    int     `json:"goroutines"`
}

type Collector interface {
	Collect(ctx context.Context) (SystemStats, error)
}

// HostCollector reads host metrics through gopsutil.
type HostCollector struct {
	// CPUInterval is the CPU sampling window. Zero compares against the
	// previous call.
	CPUInterval time.Duration
	DiskPath    string
}

func NewHostCollector() *HostCollector {
	return &HostCollector{CPUInterval: time.Second, DiskPath: "/"}
}

func (c *HostCollector) Collect(ctx context.Context) (SystemStats, error) {
	const op = "health.HostCollector.Collect"

	cpus, err := cpu.PercentWithContext(ctx, c.CPUInterval, false)
	if err != nil {
		return SystemStats{}, fmt.Errorf("%s: cpu: %w", op, err)
	}
	if len(cpus) == 0 {
		return SystemStats{}, fmt.Errorf("%s: cpu: no samples", op)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemStats{}, fmt.Errorf("%s: memory: %w", op, err)
	}

	path := c.DiskPath
	if path == "" {
		path = "/"
	}
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return SystemStats{}, fmt.Errorf("%s: disk: %w", op, err)
	}

	return SystemStats{
		CPUPercent:    cpus[0],
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
	}, nil
}

// Pinger is anything whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrNotReady is returned when a readiness check fails.
var ErrNotReady = errors.New("not ready")

// Readiness pings every named dependency with a per-check timeout.
type Readiness struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewReadiness(timeout time.Duration) *Readiness {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Readiness{checks: make(map[string]Pinger), timeout: timeout}
}

// Add registers a dependency. It is not safe to call concurrently with Check.
func (r *Readiness) Add(name string, p Pinger) {
	r.checks[name] = p
}

// Check returns the status of each dependency ("ok" or the error text) and
// ErrNotReady if any of them failed.
func (r *Readiness) Check(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(r.checks))
	var failed bool
	for name, p := range r.checks {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := p.Ping(cctx)
		cancel()
		if err != nil {
			out[name] = err.Error()
			failed = true
			continue
		}
		out[name] = "ok"
	}
	if failed {
		return out, ErrNotReady
	}
	return out, nil
}
