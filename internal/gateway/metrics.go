package gateway

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SystemMetrics is the /api/system payload.
type SystemMetrics struct {
	CPULoad1    float64      `json:"cpu_load_1"`
	CPULoad5    float64      `json:"cpu_load_5"`
	CPULoad15   float64      `json:"cpu_load_15"`
	CPUPercent  float64      `json:"cpu_percent"`
	CPUCores    int          `json:"cpu_cores"`
	MemUsedMB   float64      `json:"mem_used_mb"`
	MemTotalMB  float64      `json:"mem_total_mb"`
	MemPercent  float64      `json:"mem_percent"`
	HeapAllocMB float64      `json:"heap_alloc_mb"`
	SysMB       float64      `json:"sys_mb"`
	GCRuns      uint32       `json:"gc_runs"`
	Goroutines  int          `json:"goroutines"`
	UptimeSec   int64        `json:"uptime_sec"`
	WSClients   int          `json:"ws_clients"`
	Broadcast   LatencyStats `json:"broadcast_latency"`
	TS          string       `json:"ts"`
}

type cpuSample struct {
	idle  uint64
	total uint64
}

var (
	cpuMu   sync.Mutex
	prevCPU cpuSample
)

func readCPUSample() cpuSample {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuSample{}
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var s cpuSample
		for i := 1; i < len(fields); i++ {
			v, _ := strconv.ParseUint(fields[i], 10, 64)
			s.total += v
			if i == 4 {
				s.idle = v
			}
		}
		return s
	}
	return cpuSample{}
}

// cpuPercent returns busy CPU since the previous call; 0 on the first call
// or where /proc is unavailable.
func cpuPercent() float64 {
	cur := readCPUSample()
	cpuMu.Lock()
	defer cpuMu.Unlock()
	var pct float64
	if prevCPU.total > 0 && cur.total > prevCPU.total {
		dTotal := float64(cur.total - prevCPU.total)
		dIdle := float64(cur.idle - prevCPU.idle)
		pct = (1.0 - dIdle/dTotal) * 100.0
	}
	prevCPU = cur
	return pct
}

func readLoadAvg() (l1, l5, l15 float64) {
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0
	}
	fields := strings.Fields(string(b))
	if len(fields) < 3 {
		return 0, 0, 0
	}
	l1, _ = strconv.ParseFloat(fields[0], 64)
	l5, _ = strconv.ParseFloat(fields[1], 64)
	l15, _ = strconv.ParseFloat(fields[2], 64)
	return l1, l5, l15
}

// readMemInfo returns total and available memory in kB.
func readMemInfo() (total, available uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable:":
			available, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	return total, available
}

// CollectMetrics gathers process and host usage plus hub state. hub may be nil.
func CollectMetrics(start time.Time, hub *Hub) SystemMetrics {
	m := SystemMetrics{
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  int64(time.Since(start).Seconds()),
		TS:         time.Now().UTC().Format(time.RFC3339Nano),
		CPUCores:   runtime.NumCPU(),
		CPUPercent: cpuPercent(),
	}
	m.CPULoad1, m.CPULoad5, m.CPULoad15 = readLoadAvg()

	if total, available := readMemInfo(); total > 0 {
		used := total - available
		m.MemTotalMB = float64(total) / 1024
		m.MemUsedMB = float64(used) / 1024
		m.MemPercent = float64(used) / float64(total) * 100
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024
	m.SysMB = float64(ms.Sys) / 1024 / 1024
	m.GCRuns = ms.NumGC

	if hub != nil {
		m.WSClients = hub.ClientCount()
		m.Broadcast = hub.Latency.Stats()
	}
	return m
}
