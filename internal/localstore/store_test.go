package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err, "Failed to open test store")
	t.Cleanup(func() { store.Close() })
	return store
}

// TestStore_EnqueueRoundTrip tests that an enqueued write is listed verbatim
// and disappears after dequeue
func TestStore_EnqueueRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	payload := map[string]any{"store_id": "s-12", "amount": 42.5}

	// ACT: enqueue then list
	id, err := store.Enqueue(ctx, "cash_reconciliations", payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	items, err := store.ListQueue(ctx)

	// ASSERT: exactly one matching item
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, "cash_reconciliations", items[0].Collection)
	assert.Equal(t, payload, items[0].Payload)
	assert.False(t, items[0].EnqueuedAt.IsZero())

	// ACT: dequeue
	removed, err := store.Dequeue(ctx, id)
	require.NoError(t, err)
	assert.True(t, removed)

	items, err = store.ListQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_DequeueUnknownIDIsNoop(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "incidents", map[string]any{"title": "spill"})
	require.NoError(t, err)

	removed, err := store.Dequeue(ctx, "does-not-exist")

	require.NoError(t, err)
	assert.False(t, removed)
	n, err := store.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ListQueueOrdersByEnqueueTime(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(-tick) * time.Minute)
	}

	first, err := store.Enqueue(ctx, "incidents", map[string]any{"n": 1.0})
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, "incidents", map[string]any{"n": 2.0})
	require.NoError(t, err)

	items, err := store.ListQueue(ctx)

	require.NoError(t, err)
	require.Len(t, items, 2)
	// second was stamped earlier by the fake clock
	assert.Equal(t, second, items[0].ID)
	assert.Equal(t, first, items[1].ID)
}

func TestStore_IDsAreNeverReused(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ids := []string{"id-a", "id-a", "id-b"}
	store.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := store.Enqueue(ctx, "incidents", map[string]any{})
	require.NoError(t, err)
	_, err = store.Dequeue(ctx, first)
	require.NoError(t, err)

	// ACT: the generator hands out the dequeued id again
	second, err := store.Enqueue(ctx, "incidents", map[string]any{})

	// ASSERT: the reused candidate was skipped
	require.NoError(t, err)
	assert.Equal(t, "id-a", first)
	assert.Equal(t, "id-b", second)
}

func TestStore_IDExhaustionIsStorageError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	store.newID = func() string { return "same" }

	_, err := store.Enqueue(ctx, "incidents", map[string]any{})
	require.NoError(t, err)

	_, err = store.Enqueue(ctx, "incidents", map[string]any{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	n, err := store.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed enqueue must not leave a partial row")
}

func TestStore_EnqueueUnencodablePayload(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Enqueue(context.Background(), "incidents", map[string]any{"bad": make(chan int)})

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "enqueue", storageErr.Op)
}

func TestStore_ClosedDatabaseIsStorageError(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.db.Close())

	_, err := store.Enqueue(context.Background(), "incidents", map[string]any{})

	assert.ErrorIs(t, err, ErrStorage)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agent.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	id, err := store.Enqueue(ctx, "checklists", map[string]any{"kind": "opening"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// ACT: reopen the same file
	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	items, err := reopened.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
}

func TestStore_CachePutGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, ok, err := store.CacheGet(ctx, "stores")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should report absent")

	require.NoError(t, store.CachePut(ctx, "stores", "stores", []string{"s-1"}))
	first, ok, err := store.CacheGet(ctx, "stores")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["s-1"]`, string(first.Value))

	// ACT: overwrite
	store.now = func() time.Time { return first.UpdatedAt.Add(time.Hour) }
	require.NoError(t, store.CachePut(ctx, "stores", "stores", []string{"s-1", "s-2"}))

	second, ok, err := store.CacheGet(ctx, "stores")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["s-1","s-2"]`, string(second.Value))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestStore_ClearAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "incidents", map[string]any{"title": "broken door"})
	require.NoError(t, err)
	require.NoError(t, store.CachePut(ctx, "stores", "stores", []string{"s-1"}))

	require.NoError(t, store.ClearAll(ctx))

	n, err := store.QueueLength(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok, err := store.CacheGet(ctx, "stores")
	require.NoError(t, err)
	assert.False(t, ok)
}
