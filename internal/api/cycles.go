package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-node/internal/journal"
)

// JournalCycle is the JSON form of a journal.Cycle.
type JournalCycle struct {
	ID           string  `json:"id"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   *string `json:"finished_at,omitempty"`
	SessionState string  `json:"session_state"`
	Reconnected  bool    `json:"reconnected"`
	Readings     int     `json:"readings"`
	Published    int     `json:"published"`
	Error        string  `json:"error,omitempty"`
}

// JournalEntry is the JSON form of a journal.Entry.
type JournalEntry struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Location   string  `json:"location"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Topic      string  `json:"topic"`
	Published  bool    `json:"published"`
	Error      string  `json:"error,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

// handleListCycles returns recent cycles, newest first.
// Query: ?limit=N (journal default and cap apply).
func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	cycles, err := s.journal.RecentCycles(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing cycles failed", "error", err)
		writeInternalError(w, "failed to list cycles")
		return
	}

	out := make([]JournalCycle, 0, len(cycles))
	for _, c := range cycles {
		jc := JournalCycle{
			ID:           c.ID,
			StartedAt:    c.StartedAt.UTC().Format(time.RFC3339),
			SessionState: c.SessionState,
			Reconnected:  c.Reconnected,
			Readings:     c.Readings,
			Published:    c.Published,
			Error:        c.Error,
		}
		if !c.FinishedAt.IsZero() {
			finished := c.FinishedAt.UTC().Format(time.RFC3339)
			jc.FinishedAt = &finished
		}
		out = append(out, jc)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": out,
		"count":  len(out),
	})
}

// handleGetCycle returns the readings journalled for one cycle.
func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is disabled")
		return
	}
	id := chi.URLParam(r, "id")

	entries, err := s.journal.Entries(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrCycleIDRequired) {
			writeBadRequest(w, "cycle id is required")
			return
		}
		s.logger.Error("reading cycle entries failed", "cycle", id, "error", err)
		writeInternalError(w, "failed to read cycle")
		return
	}
	if len(entries) == 0 {
		writeNotFound(w, "no readings recorded for cycle")
		return
	}

	out := make([]JournalEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, JournalEntry{
			ID:         e.Reading.ID,
			Kind:       e.Reading.SensorKind,
			Location:   e.Reading.Location,
			Value:      e.Reading.Value,
			Unit:       e.Reading.Unit,
			Topic:      e.Topic,
			Published:  e.Published,
			Error:      e.Error,
			RecordedAt: e.RecordedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cycle_id": id,
		"readings": out,
	})
}
