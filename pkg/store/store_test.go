package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/etesami/traffic-accident-observer/pkg/event"
	"github.com/etesami/traffic-accident-observer/pkg/monitoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMigratesToLatest(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// running again is a no-op
	require.NoError(t, db.MigrateUp())
}

func TestRecordAndListEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.UnixMilli(1700000000000).UTC()

	collision := &event.Event{ID: "c1", Kind: event.KindCollision, SourceID: "cam-1", FrameID: 10,
		PedestrianID: 1, VehicleID: 2, X: 5, Y: 50, Timestamp: base}
	danger := &event.Event{ID: "d1", Kind: event.KindDangerZone, SourceID: "cam-1", FrameID: 11,
		PedestrianID: 3, X: 7, Y: 8, DangerStreak: 3, Timestamp: base.Add(time.Second)}
	other := &event.Event{ID: "o1", Kind: event.KindCollision, SourceID: "cam-2", FrameID: 1,
		PedestrianID: 4, VehicleID: 0, Timestamp: base.Add(2 * time.Second)}

	for _, ev := range []*event.Event{collision, danger, other, collision} {
		require.NoError(t, db.RecordEvent(ctx, ev))
	}

	all, err := db.RecentEvents(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "o1", all[0].ID)

	cam1, err := db.RecentEvents(ctx, "cam-1", 10)
	require.NoError(t, err)
	require.Len(t, cam1, 2)
	assert.Equal(t, *danger, cam1[0])
	assert.Equal(t, *collision, cam1[1])

	limited, err := db.RecentEvents(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSinkDelivers(t *testing.T) {
	db := openTestDB(t)
	sink := NewSink(db)

	ev := &event.Event{ID: "x", Kind: event.KindCollision, SourceID: "cam", Timestamp: time.Now()}
	require.NoError(t, sink.Deliver(context.Background(), ev))
	require.NoError(t, sink.Close(context.Background()))

	got, err := db.RecentEvents(context.Background(), "cam", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID)
}

func TestOpenCreatesParentDirs(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "events.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
