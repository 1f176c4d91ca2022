package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/etesami/traffic-accident-observer/pkg/event"
	"github.com/etesami/traffic-accident-observer/pkg/monitoring"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB stores accident events in SQLite.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and migrates it to the latest schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer; sqlite serialises anyway and this avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// MigrateUp applies all pending migrations.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version, 0 when none.
func (db *DB) MigrateVersion() (uint, bool, error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// RecordEvent inserts ev; inserting the same id twice is a no-op.
func (db *DB) RecordEvent(ctx context.Context, ev *event.Event) error {
	var vehicle sql.NullInt64
	if ev.Kind == event.KindCollision {
		vehicle = sql.NullInt64{Int64: int64(ev.VehicleID), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(event_id, kind, source_id, frame_id, pedestrian_id, vehicle_id, x, y, danger_streak, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.SourceID, ev.FrameID, ev.PedestrianID, vehicle,
		ev.X, ev.Y, ev.DangerStreak, ev.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first. An empty sourceID matches every source.
func (db *DB) RecentEvents(ctx context.Context, sourceID string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT event_id, kind, source_id, frame_id, pedestrian_id, vehicle_id, x, y, danger_streak, timestamp_ms
		FROM events
		WHERE (? = '' OR source_id = ?)
		ORDER BY timestamp_ms DESC, frame_id DESC
		LIMIT ?`, sourceID, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			ev      event.Event
			kind    string
			vehicle sql.NullInt64
			tsMs    int64
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.SourceID, &ev.FrameID, &ev.PedestrianID, &vehicle,
			&ev.X, &ev.Y, &ev.DangerStreak, &tsMs); err != nil {
			return nil, err
		}
		ev.Kind = event.Kind(kind)
		ev.VehicleID = int(vehicle.Int64)
		ev.Timestamp = time.UnixMilli(tsMs).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Sink adapts the database to event.Sink.
type Sink struct {
	db *DB
}

func NewSink(db *DB) *Sink { return &Sink{db: db} }

func (s *Sink) Name() string { return "sqlite" }

func (s *Sink) Deliver(ctx context.Context, ev *event.Event) error {
	return s.db.RecordEvent(ctx, ev)
}

// Close leaves the database open; the status API keeps reading from it.
func (s *Sink) Close(context.Context) error { return nil }
