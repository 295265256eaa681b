package core

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	statusOK       = "ok"
	statusDown     = "down"
	statusDisabled = "disabled"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// SystemStatus is the /healthz payload.
type SystemStatus struct {
	Storage struct {
		Driver string `json:"driver"`
		Status string `json:"status"`
	} `json:"storage"`
	Redis struct {
		Status string `json:"status"`
	} `json:"redis"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// Healthy reports whether the storage backend answered. Redis is optional.
func (s SystemStatus) Healthy() bool {
	return s.Storage.Status == statusOK
}

// CollectSystemStatus probes storage and redis and gathers process stats.
func CollectSystemStatus(ctx context.Context, driver string, storage pinger, views ViewCounter, startedAt time.Time) SystemStatus {
	var st SystemStatus

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st.Storage.Driver = driver
	st.Storage.Status = statusOK
	if storage == nil || storage.Ping(ctx) != nil {
		st.Storage.Status = statusDown
	}

	switch {
	case views == nil || !views.Enabled():
		st.Redis.Status = statusDisabled
	case views.Ping(ctx) != nil:
		st.Redis.Status = statusDown
	default:
		st.Redis.Status = statusOK
	}

	// Memory (best-effort from /proc/meminfo)
	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}

	return st
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal * 1024
		if memAvailable <= memTotal {
			used = (memTotal - memAvailable) * 1024
		}
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
