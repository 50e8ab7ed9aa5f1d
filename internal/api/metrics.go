package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Bridge        BridgeMetrics  `json:"bridge"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BridgeMetrics contains polling bridge statistics.
type BridgeMetrics struct {
	MQTT            string `json:"mqtt"`
	Printer         string `json:"printer"`
	Cycles          uint64 `json:"cycles"`
	SkippedCycles   uint64 `json:"skipped_cycles"`
	Publishes       uint64 `json:"publishes"`
	PublishFailures uint64 `json:"publish_failures"`
	FetchFailures   uint64 `json:"fetch_failures"`
	LastCycle       string `json:"last_cycle,omitempty"`
}

// handleMetrics returns bridge counters and runtime stats.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	bm := s.bridge.GetMetrics()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Bridge: BridgeMetrics{
			MQTT:            bm.State,
			Printer:         bm.Printer,
			Cycles:          bm.Cycles,
			SkippedCycles:   bm.SkippedCycles,
			Publishes:       bm.Publishes,
			PublishFailures: bm.PublishFailures,
			FetchFailures:   bm.FetchFailures,
		},
	}
	if !bm.LastCycle.IsZero() {
		metrics.Bridge.LastCycle = bm.LastCycle.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, metrics)
}
