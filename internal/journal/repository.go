package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists cycles and reading entries.
type Repository interface {
	StartCycle(ctx context.Context, c Cycle) error
	RecordReading(ctx context.Context, e Entry) error
	FinishCycle(ctx context.Context, c Cycle) error
	RecentCycles(ctx context.Context, limit int) ([]Cycle, error)
	Entries(ctx context.Context, cycleID string) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository on the cycles and readings tables.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// StartCycle inserts the cycle row.
func (r *SQLiteRepository) StartCycle(ctx context.Context, c Cycle) error {
	if c.ID == "" {
		return ErrCycleIDRequired
	}
	started := c.StartedAt
	if started.IsZero() {
		started = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO cycles (id, started_at, session_state) VALUES (?, ?, ?)",
		c.ID, formatTime(started), c.SessionState,
	)
	if err != nil {
		return fmt.Errorf("inserting cycle: %w", err)
	}
	return nil
}

// RecordReading inserts one reading entry.
func (r *SQLiteRepository) RecordReading(ctx context.Context, e Entry) error {
	if e.CycleID == "" {
		return ErrCycleIDRequired
	}
	recorded := e.RecordedAt
	if recorded.IsZero() {
		recorded = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO readings
		   (cycle_id, sensor_id, sensor_kind, location, value, unit, topic, published, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CycleID,
		e.Reading.ID,
		e.Reading.SensorKind,
		e.Reading.Location,
		e.Reading.Value,
		e.Reading.Unit,
		e.Topic,
		boolToInt(e.Published),
		nullString(e.Error),
		formatTime(recorded),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// FinishCycle stores the cycle outcome.
func (r *SQLiteRepository) FinishCycle(ctx context.Context, c Cycle) error {
	if c.ID == "" {
		return ErrCycleIDRequired
	}
	finished := c.FinishedAt
	if finished.IsZero() {
		finished = r.now()
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE cycles
		 SET finished_at = ?, session_state = ?, reconnected = ?, readings = ?, published = ?, error = ?
		 WHERE id = ?`,
		formatTime(finished),
		c.SessionState,
		boolToInt(c.Reconnected),
		c.Readings,
		c.Published,
		nullString(c.Error),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating cycle: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCycleNotFound, c.ID)
	}
	return nil
}

// RecentCycles returns cycles newest first (default 50, max 500).
func (r *SQLiteRepository) RecentCycles(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, session_state, reconnected, readings, published, error
		 FROM cycles
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]Cycle, 0, limit)
	for rows.Next() {
		var (
			c           Cycle
			started     string
			finished    sql.NullString
			reconnected int
			errText     sql.NullString
		)
		if err := rows.Scan(&c.ID, &started, &finished, &c.SessionState, &reconnected, &c.Readings, &c.Published, &errText); err != nil {
			return nil, fmt.Errorf("scanning cycle: %w", err)
		}
		if c.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			if c.FinishedAt, err = parseTime(finished.String); err != nil {
				return nil, err
			}
		}
		c.Reconnected = reconnected != 0
		c.Error = errText.String
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cycles: %w", err)
	}
	return cycles, nil
}

// Entries returns the readings of one cycle in the order they were recorded.
func (r *SQLiteRepository) Entries(ctx context.Context, cycleID string) ([]Entry, error) {
	if cycleID == "" {
		return nil, ErrCycleIDRequired
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT cycle_id, sensor_id, sensor_kind, location, value, unit, topic, published, error, recorded_at
		 FROM readings
		 WHERE cycle_id = ?
		 ORDER BY id`,
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			published int
			errText   sql.NullString
			recorded  string
		)
		if err := rows.Scan(&e.CycleID, &e.Reading.ID, &e.Reading.SensorKind, &e.Reading.Location,
			&e.Reading.Value, &e.Reading.Unit, &e.Topic, &published, &errText, &recorded); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		e.Published = published != 0
		e.Error = errText.String
		if e.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return entries, nil
}

// Prune deletes cycles that started before now-olderThan. Their readings
// go with them through the foreign key cascade.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTime(r.now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx, "DELETE FROM cycles WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting cycles: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repository = (*SQLiteRepository)(nil)
