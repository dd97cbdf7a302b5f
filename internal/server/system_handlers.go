package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/allocator/internal/version"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	// Overridable in tests
	systemStats func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("service", "system").Logger(),
		startupTime: time.Now(),
	}
	h.systemStats = h.getSystemStats
	return h
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	GoVersion     string  `json:"go_version"`
}

// HandleSystemStatus returns process and host status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.systemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		Version:       version.Version,
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		GoVersion:     runtime.Version(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// getSystemStats calculates CPU and RAM usage percentages.
// CPU is sampled over 100ms so the endpoint stays fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
