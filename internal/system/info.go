// Package system reports host resources relevant to the montage pipeline:
// free space under the data directory and memory pressure.
package system

import (
	"context"
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// StorageInfo describes the filesystem holding the data directory
type StorageInfo struct {
	Path          string  `json:"path"`
	FreeBytes     uint64  `json:"freeBytes"`
	TotalBytes    uint64  `json:"totalBytes"`
	UsedPercent   float64 `json:"usedPercent"`
	Free          string  `json:"free"`
	MemoryPercent float64 `json:"memoryPercent"`
	CPUCores      int     `json:"cpuCores"`
}

// GetStorageInfo collects disk usage for path and host memory usage. Memory
// stats are best effort since some sandboxes hide them.
func GetStorageInfo(ctx context.Context, path string) (*StorageInfo, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read disk usage for %s: %w", path, err)
	}

	info := &StorageInfo{
		Path:        path,
		FreeBytes:   usage.Free,
		TotalBytes:  usage.Total,
		UsedPercent: usage.UsedPercent,
		Free:        humanize.IBytes(usage.Free),
		CPUCores:    runtime.NumCPU(),
	}

	if memStats, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryPercent = memStats.UsedPercent
	}

	return info, nil
}
