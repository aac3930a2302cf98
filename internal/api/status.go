package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/node"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	NodeID          string       `json:"node_id"`
	Version         string       `json:"version"`
	Session         string       `json:"session"`
	DroppedMessages uint64       `json:"dropped_messages"`
	LastCycle       *CycleReport `json:"last_cycle,omitempty"`
}

// CycleReport is the JSON form of a node.Report.
type CycleReport struct {
	ID           string  `json:"id"`
	StartedAt    string  `json:"started_at"`
	DurationMS   int64   `json:"duration_ms"`
	Reconnected  bool    `json:"reconnected"`
	ReconnectErr *string `json:"reconnect_error,omitempty"`
	Readings     int     `json:"readings"`
	Published    int     `json:"published"`
	Failed       int     `json:"failed"`
	SourceErrors int     `json:"source_errors"`
}

func newCycleReport(r node.Report) *CycleReport {
	out := &CycleReport{
		ID:           r.ID,
		StartedAt:    r.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:   r.Duration.Milliseconds(),
		Reconnected:  r.Reconnected,
		Readings:     r.Readings,
		Published:    r.Published,
		Failed:       r.Failed,
		SourceErrors: r.SourceErrors,
	}
	if r.ReconnectErr != nil {
		msg := r.ReconnectErr.Error()
		out.ReconnectErr = &msg
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		NodeID:          s.nodeID,
		Version:         s.version,
		Session:         s.session.State().String(),
		DroppedMessages: s.session.Dropped(),
	}
	if report, ok := s.cycles.LastReport(); ok {
		resp.LastCycle = newCycleReport(report)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, RuntimeMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
		MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
		NumGC:         memStats.NumGC,
	})
}
