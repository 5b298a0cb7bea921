package monitoring

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage is a snapshot of process and host resources, logged
// periodically and served on the health endpoint.
type ResourceUsage struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	NumGoroutines int     `json:"num_goroutines"`
	DiskFreeGB    float64 `json:"disk_free_gb"`
	DiskUsedPct   float64 `json:"disk_used_percent"`
}

// StartMonitoring logs resource usage every interval. downloadsPath is the
// mount whose free space gets reported, since exports can fill a disk fast.
func StartMonitoring(interval time.Duration, downloadsPath string) {
	go func() {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			log.Printf("Error getting process: %v", err)
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			usage, err := getResourceUsage(proc, downloadsPath)
			if err != nil {
				log.Printf("Error getting resource usage: %v", err)
				continue
			}
			log.Printf("Resource Usage - CPU: %.2f%%, Memory: %.2f/%.2f MB (%.2f%%), Goroutines: %d, Disk free: %.2f GB",
				usage.CPUPercent,
				usage.MemoryUsedMB,
				usage.MemoryTotalMB,
				usage.MemoryPercent,
				usage.NumGoroutines,
				usage.DiskFreeGB)
		}
	}()
}

// Snapshot returns current resource usage for the health endpoint.
func Snapshot(downloadsPath string) (ResourceUsage, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("error getting process: %v", err)
	}
	return getResourceUsage(proc, downloadsPath)
}

func getResourceUsage(proc *process.Process, downloadsPath string) (ResourceUsage, error) {
	var usage ResourceUsage

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return usage, fmt.Errorf("error getting CPU usage: %v", err)
	}
	usage.CPUPercent = cpuPercent

	virtualMem, err := mem.VirtualMemory()
	if err != nil {
		return usage, fmt.Errorf("error getting memory info: %v", err)
	}
	procMem, err := proc.MemoryInfo()
	if err != nil {
		return usage, fmt.Errorf("error getting process memory: %v", err)
	}

	usage.MemoryUsedMB = float64(procMem.RSS) / 1024 / 1024
	usage.MemoryTotalMB = float64(virtualMem.Total) / 1024 / 1024
	usage.MemoryPercent = float64(procMem.RSS) / float64(virtualMem.Total) * 100
	usage.NumGoroutines = runtime.NumGoroutine()

	if du, err := disk.Usage(downloadsPath); err == nil {
		usage.DiskFreeGB = float64(du.Free) / 1024 / 1024 / 1024
		usage.DiskUsedPct = du.UsedPercent
	}

	return usage, nil
}
