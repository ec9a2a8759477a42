package core

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

// processStats reports resource usage for the status endpoint. Fields that
// cannot be read on this platform are left out.
func processStats() map[string]any {
	stats := map[string]any{"goroutines": runtime.NumGoroutine()}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			stats["rss_mb"] = info.RSS / 1024 / 1024
		}
		if cpu, err := p.CPUPercent(); err == nil {
			stats["cpu_percent"] = cpu
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats["host_memory_percent"] = vm.UsedPercent
	}
	return stats
}
