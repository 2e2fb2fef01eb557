package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// healthHandler reports process liveness and basic host resource usage.
type healthHandler struct {
	startedAt time.Time
	log       zerolog.Logger
}

func newHealthHandler(log zerolog.Logger) *healthHandler {
	return &healthHandler{
		startedAt: time.Now().UTC(),
		log:       log.With().Str("handler", "health").Logger(),
	}
}

// HandleHealth returns service status plus host CPU and memory usage.
// Resource metrics are best-effort: a gopsutil failure leaves the field
// absent rather than failing the health check.
func (h *healthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "ok",
		"started_at":     h.startedAt,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		response["cpu_percent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory_percent"] = vm.UsedPercent
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			response["process_rss_bytes"] = info.RSS
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode health response")
	}
}
