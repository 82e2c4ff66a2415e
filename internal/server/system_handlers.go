package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

var startTime = time.Now()

// SystemHandlers contains handlers for system monitoring endpoints
type SystemHandlers struct {
	log zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log: log.With().Str("component", "system_handlers").Logger(),
	}
}

// SystemStatus represents the current process status
type SystemStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	MemoryMB      float64 `json:"memory_mb"`
	CPUPercent    float64 `json:"cpu_percent"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"go_version"`
}

// HandleStatus returns process health metrics
// GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := SystemStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read process info")
	} else {
		if mem, err := proc.MemoryInfo(); err == nil {
			status.MemoryMB = float64(mem.RSS) / 1024 / 1024
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			status.CPUPercent = cpu
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}
