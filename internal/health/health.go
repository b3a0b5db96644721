// Package health reports host resource usage for the dashboard's
// system panel.
package health

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one reading of host metrics.
type Snapshot struct {
	CPUPercent  float64   `json:"cpu_percent"`
	MemUsedMB   float64   `json:"mem_used_mb"`
	MemTotalMB  float64   `json:"mem_total_mb"`
	MemPercent  float64   `json:"mem_percent"`
	DiskPercent float64   `json:"disk_percent"`
	LoadAvg1    float64   `json:"load_avg_1"`
	LoadAvg5    float64   `json:"load_avg_5"`
	LoadAvg15   float64   `json:"load_avg_15"`
	NumCPU      int       `json:"num_cpu"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Collector refreshes a host metrics snapshot on a fixed interval.
type Collector struct {
	mu       sync.RWMutex
	snapshot Snapshot
	interval time.Duration
	stopCh   chan struct{}
	running  bool
}

func NewCollector(interval time.Duration) *Collector {
	if interval < time.Second {
		interval = time.Second
	}
	return &Collector{
		interval: interval,
		stopCh:   make(chan struct{}),
		snapshot: Snapshot{NumCPU: runtime.NumCPU()},
	}
}

// Start takes an initial reading and begins periodic collection.
func (c *Collector) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.collect()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	c.mu.Lock()
	if c.running {
		c.running = false
		close(c.stopCh)
	}
	c.mu.Unlock()
}

// Get returns the latest snapshot.
func (c *Collector) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Collector) collect() {
	snap := Snapshot{
		NumCPU:    runtime.NumCPU(),
		UpdatedAt: time.Now(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemTotalMB = float64(vm.Total) / 1024 / 1024
		snap.MemUsedMB = float64(vm.Used) / 1024 / 1024
		snap.MemPercent = vm.UsedPercent
	}
	if usage, err := disk.Usage("/"); err == nil {
		snap.DiskPercent = usage.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		snap.LoadAvg1 = avg.Load1
		snap.LoadAvg5 = avg.Load5
		snap.LoadAvg15 = avg.Load15
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
}
