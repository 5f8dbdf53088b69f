package ftsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ftsync/internal/resource"
	"github.com/hupe1980/ftsync/model"
)

type testChanges struct {
	id                         string
	inserted, modified, delete []model.Row
}

func (c testChanges) TxID() string          { return c.id }
func (c testChanges) New() []model.Row      { return c.inserted }
func (c testChanges) Modified() []model.Row { return c.modified }
func (c testChanges) Deleted() []model.Row  { return c.delete }

func postRow(id int, title string) model.Row {
	return testRow{table: "posts", values: map[string]any{"id": id, "title": title}}
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTracker_SweepsStaleTransactions(t *testing.T) {
	opts := applyOptions([]Option{WithPendingTTL(time.Minute)})
	registry := newRegistry()
	sub := newTestSubscription(t, registry, opts)
	tracker := newTracker(registry, resource.NewController(resource.Config{}), opts)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tracker.now = clock.Now
	ctx := context.Background()

	// 1. A transaction that never finishes.
	require.NoError(t, tracker.BeforeCommit(ctx, testChanges{id: "lost", inserted: []model.Row{postRow(1, "lost")}}))
	assert.Equal(t, 1, tracker.InFlight())

	// 2. Within the TTL it survives other activity.
	clock.Advance(30 * time.Second)
	require.NoError(t, tracker.BeforeCommit(ctx, testChanges{id: "live", inserted: []model.Row{postRow(2, "live")}}))
	assert.Equal(t, 2, tracker.InFlight())

	// 3. Past the TTL it is discarded on the next callback.
	clock.Advance(45 * time.Second)
	tracker.AfterRollback(ctx, "unrelated")
	assert.Equal(t, 1, tracker.InFlight())

	require.NoError(t, tracker.AfterCommit(ctx, "lost"))
	require.NoError(t, tracker.AfterCommit(ctx, "live"))
	assert.Equal(t, 1, sub.Index().DocCount())
	_, ok := sub.Index().Document("2")
	assert.True(t, ok)
}

func TestTracker_TTLDisabled(t *testing.T) {
	opts := applyOptions([]Option{WithPendingTTL(0)})
	registry := newRegistry()
	newTestSubscription(t, registry, opts)
	tracker := newTracker(registry, resource.NewController(resource.Config{}), opts)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tracker.now = clock.Now
	ctx := context.Background()

	require.NoError(t, tracker.BeforeCommit(ctx, testChanges{id: "old", inserted: []model.Row{postRow(1, "x")}}))
	clock.Advance(24 * time.Hour)
	tracker.AfterRollback(ctx, "other")
	assert.Equal(t, 1, tracker.InFlight())
}

func TestTracker_IgnoresUnregisteredTables(t *testing.T) {
	opts := applyOptions(nil)
	tracker := newTracker(newRegistry(), resource.NewController(resource.Config{}), opts)
	ctx := context.Background()

	row := testRow{table: "comments", values: map[string]any{"id": 1}}
	require.NoError(t, tracker.BeforeCommit(ctx, testChanges{id: "c", inserted: []model.Row{row}}))
	assert.Zero(t, tracker.InFlight())
	require.NoError(t, tracker.AfterCommit(ctx, "c"))
}

func TestTracker_Close(t *testing.T) {
	opts := applyOptions(nil)
	registry := newRegistry()
	sub := newTestSubscription(t, registry, opts)
	tracker := newTracker(registry, resource.NewController(resource.Config{}), opts)
	ctx := context.Background()

	require.NoError(t, tracker.BeforeCommit(ctx, testChanges{id: "a", inserted: []model.Row{postRow(1, "x")}}))
	tracker.close()
	assert.Zero(t, tracker.InFlight())

	require.NoError(t, tracker.BeforeCommit(ctx, testChanges{id: "b", inserted: []model.Row{postRow(2, "y")}}))
	require.NoError(t, tracker.AfterCommit(ctx, "b"))
	assert.Zero(t, tracker.InFlight())
	assert.Zero(t, sub.Index().DocCount())
}
