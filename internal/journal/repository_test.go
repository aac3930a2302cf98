package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
	_ "github.com/nerrad567/gray-logic-node/migrations"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestRepository opens a migrated database in a temp dir with a
// repository whose clock is pinned to baseTime.
func setupTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	repo.now = func() time.Time { return baseTime }
	return repo
}

func testReading(id string, value float64) sensor.Reading {
	return sensor.Reading{
		SensorKind: "Temperature",
		Location:   "Greenhouse",
		ID:         id,
		Value:      value,
		Unit:       "C",
	}
}

// ============================================================================
// Cycle lifecycle
// ============================================================================

func TestCycleLifecycle(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	if err := repo.StartCycle(ctx, Cycle{ID: "c1", StartedAt: baseTime, SessionState: "connected"}); err != nil {
		t.Fatalf("StartCycle() error = %v", err)
	}

	entries := []Entry{
		{CycleID: "c1", Reading: testReading("ds_28aa", 21.44), Topic: "Sensors/Greenhouse/Temperature", Published: true},
		{CycleID: "c1", Reading: testReading("ds_28bb", 19.5), Topic: "Sensors/Greenhouse/Temperature", Error: "publish timed out"},
	}
	for _, e := range entries {
		if err := repo.RecordReading(ctx, e); err != nil {
			t.Fatalf("RecordReading(%s) error = %v", e.Reading.ID, err)
		}
	}

	finished := Cycle{
		ID:           "c1",
		FinishedAt:   baseTime.Add(3 * time.Second),
		SessionState: "connected",
		Reconnected:  true,
		Readings:     2,
		Published:    1,
	}
	if err := repo.FinishCycle(ctx, finished); err != nil {
		t.Fatalf("FinishCycle() error = %v", err)
	}

	cycles, err := repo.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles() error = %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("RecentCycles() returned %d cycles, want 1", len(cycles))
	}
	got := cycles[0]
	if !got.StartedAt.Equal(baseTime) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, baseTime)
	}
	if !got.FinishedAt.Equal(finished.FinishedAt) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished.FinishedAt)
	}
	if !got.Reconnected || got.Readings != 2 || got.Published != 1 || got.Error != "" {
		t.Errorf("cycle = %+v, want reconnected with 2 readings, 1 published, no error", got)
	}

	stored, err := repo.Entries(ctx, "c1")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Entries() returned %d, want 2", len(stored))
	}
	if stored[0].Reading != entries[0].Reading || !stored[0].Published {
		t.Errorf("Entries()[0] = %+v, want %+v published", stored[0], entries[0])
	}
	if stored[1].Published || stored[1].Error != "publish timed out" {
		t.Errorf("Entries()[1] = %+v, want unpublished with error", stored[1])
	}
	if !stored[1].RecordedAt.Equal(baseTime) {
		t.Errorf("RecordedAt = %v, want %v", stored[1].RecordedAt, baseTime)
	}
}

func TestFinishCycle_NotFound(t *testing.T) {
	repo := setupTestRepository(t)

	err := repo.FinishCycle(context.Background(), Cycle{ID: "missing"})
	if !errors.Is(err, ErrCycleNotFound) {
		t.Errorf("FinishCycle() error = %v, want ErrCycleNotFound", err)
	}
}

func TestRecordReading_UnknownCycle(t *testing.T) {
	repo := setupTestRepository(t)

	err := repo.RecordReading(context.Background(), Entry{
		CycleID: "missing",
		Reading: testReading("ds_28aa", 20),
		Topic:   "t",
	})
	if err == nil {
		t.Error("RecordReading() for unknown cycle should violate the foreign key")
	}
}

func TestMissingCycleID(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"StartCycle", func() error { return repo.StartCycle(ctx, Cycle{}) }},
		{"RecordReading", func() error { return repo.RecordReading(ctx, Entry{}) }},
		{"FinishCycle", func() error { return repo.FinishCycle(ctx, Cycle{}) }},
		{"Entries", func() error { _, err := repo.Entries(ctx, ""); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrCycleIDRequired) {
				t.Errorf("%s() error = %v, want ErrCycleIDRequired", tt.name, err)
			}
		})
	}
}

// ============================================================================
// Queries and pruning
// ============================================================================

func TestRecentCycles_OrderAndLimit(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		c := Cycle{ID: id, StartedAt: baseTime.Add(time.Duration(i) * time.Minute), SessionState: "connected"}
		if err := repo.StartCycle(ctx, c); err != nil {
			t.Fatalf("StartCycle(%s) error = %v", id, err)
		}
	}

	cycles, err := repo.RecentCycles(ctx, 2)
	if err != nil {
		t.Fatalf("RecentCycles() error = %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("RecentCycles(2) returned %d, want 2", len(cycles))
	}
	if cycles[0].ID != "c" || cycles[1].ID != "b" {
		t.Errorf("RecentCycles() order = [%s %s], want [c b]", cycles[0].ID, cycles[1].ID)
	}
	if !cycles[0].FinishedAt.IsZero() {
		t.Errorf("unfinished cycle FinishedAt = %v, want zero", cycles[0].FinishedAt)
	}

	all, err := repo.RecentCycles(ctx, 0)
	if err != nil {
		t.Fatalf("RecentCycles(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("RecentCycles(0) returned %d, want 3 (default limit)", len(all))
	}
}

func TestPrune(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	old := Cycle{ID: "old", StartedAt: baseTime.Add(-48 * time.Hour), SessionState: "connected"}
	recent := Cycle{ID: "recent", StartedAt: baseTime.Add(-time.Hour), SessionState: "connected"}
	for _, c := range []Cycle{old, recent} {
		if err := repo.StartCycle(ctx, c); err != nil {
			t.Fatalf("StartCycle(%s) error = %v", c.ID, err)
		}
		if err := repo.RecordReading(ctx, Entry{CycleID: c.ID, Reading: testReading("ds_28aa", 20), Topic: "t", Published: true}); err != nil {
			t.Fatalf("RecordReading(%s) error = %v", c.ID, err)
		}
	}

	n, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() deleted %d, want 1", n)
	}

	entries, err := repo.Entries(ctx, "old")
	if err != nil {
		t.Fatalf("Entries(old) error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Entries(old) = %d rows, want cascade delete", len(entries))
	}

	cycles, err := repo.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles() error = %v", err)
	}
	if len(cycles) != 1 || cycles[0].ID != "recent" {
		t.Errorf("remaining cycles = %+v, want only recent", cycles)
	}
}

func TestPrune_InvalidRetention(t *testing.T) {
	repo := setupTestRepository(t)

	if _, err := repo.Prune(context.Background(), 0); err == nil {
		t.Error("Prune(0) should return error")
	}
}
