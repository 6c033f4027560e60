package utils

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"
)

var (
	lastCPUTime   time.Time
	lastCPUUsage  float64
	cpuUsageMutex sync.Mutex
)

const cpuUsageSampleRate = 500 * time.Millisecond

// SystemStats holds current system and application statistics.
type SystemStats struct {
	NumCPU      int     `json:"num_cpu"`
	GoRoutines  int     `json:"go_routines"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryAlloc uint64  `json:"memory_alloc"`
	MemorySys   uint64  `json:"memory_sys"`

	// Recognition loop statistics
	LoopRunning  bool `json:"loop_running"`
	CooldownSize int  `json:"cooldown_size"`

	Timestamp time.Time `json:"timestamp"`
}

// GetCPUUsage returns the current system CPU usage percentage. Samples
// are cached briefly so frequent polling stays cheap.
func GetCPUUsage() float64 {
	cpuUsageMutex.Lock()
	defer cpuUsageMutex.Unlock()

	if time.Since(lastCPUTime) < cpuUsageSampleRate {
		return lastCPUUsage
	}

	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		log.Debugf("Failed to read CPU usage: %v", err)
		return lastCPUUsage
	}

	lastCPUUsage = percentages[0]
	lastCPUTime = time.Now()
	return lastCPUUsage
}

// CollectSystemStats gathers current runtime and system statistics.
func CollectSystemStats(loopRunning bool, cooldownSize int) SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemStats{
		NumCPU:       runtime.NumCPU(),
		GoRoutines:   runtime.NumGoroutine(),
		CPUUsage:     GetCPUUsage(),
		MemoryAlloc:  memStats.Alloc,
		MemorySys:    memStats.Sys,
		LoopRunning:  loopRunning,
		CooldownSize: cooldownSize,
		Timestamp:    time.Now(),
	}
}
