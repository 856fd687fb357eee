package repository

import (
	"context"
	"testing"
	"time"

	"gotest.tools/assert"

	"grid-executor/internal/model"
)

func newTestRepository(t *testing.T) EventRepository {
	t.Helper()
	db, err := Open(DriverSQLite, ":memory:")
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewEventRepository(db, DriverSQLite)
	assert.NilError(t, repo.Migrate(context.Background()))
	return repo
}

func TestEventRepository_InsertAndRecent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := &model.JournalEvent{
		Time:    time.UnixMilli(1700000000000),
		Level:   "info",
		Event:   "order_placed",
		Symbol:  "BTCUSDT",
		Message: "[Executor] order accepted",
		Fields:  map[string]interface{}{"order_id": 42, "mode": "simulated"},
	}
	assert.NilError(t, repo.Insert(ctx, first))
	assert.Assert(t, first.ID > 0)

	second := &model.JournalEvent{Level: "error", Event: "order_failed", Message: "rejected"}
	assert.NilError(t, repo.Insert(ctx, second))
	assert.Assert(t, second.ID > first.ID)
	assert.Assert(t, !second.Time.IsZero())

	events, err := repo.Recent(ctx, 10)
	assert.NilError(t, err)
	assert.Equal(t, len(events), 2)
	assert.Equal(t, events[0].Event, "order_failed")
	assert.Equal(t, events[1].Symbol, "BTCUSDT")
	assert.Equal(t, events[1].Time, time.UnixMilli(1700000000000))
	assert.Equal(t, events[1].Fields["mode"], "simulated")
	assert.Equal(t, events[1].Fields["order_id"], float64(42))
	assert.Assert(t, events[0].Fields == nil)
}

func TestEventRepository_RecentLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.NilError(t, repo.Insert(ctx, &model.JournalEvent{Level: "info", Event: "tick", Message: "m"}))
	}
	events, err := repo.Recent(ctx, 3)
	assert.NilError(t, err)
	assert.Equal(t, len(events), 3)
}

func TestEventRepository_MigrateIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	assert.NilError(t, repo.Migrate(context.Background()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.ErrorContains(t, err, "unsupported journal driver")
}
