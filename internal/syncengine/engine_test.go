package syncengine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prudhvinik1/storeledger/internal/connectivity"
	"github.com/prudhvinik1/storeledger/internal/localstore"
	"github.com/prudhvinik1/storeledger/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errRemoteDown = errors.New("remote unavailable")

func newTestEngine(t *testing.T, queue Queue, remote Remote, monitor *connectivity.Monitor) *Engine {
	t.Helper()
	engine, err := New(context.Background(), queue, remote, monitor, logging.Discard(), Options{RemoteTimeout: time.Second})
	require.NoError(t, err)
	return engine
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestEngine_OfflineSubmitsAreAllCounted tests that every offline submit is
// queued and counted exactly once
func TestEngine_OfflineSubmitsAreAllCounted(t *testing.T) {
	store := openStore(t)
	remote := &funcRemote{}
	engine := newTestEngine(t, store, remote, connectivity.New(false))
	ctx := context.Background()

	const submits = 7
	for i := 0; i < submits; i++ {
		res, err := engine.Submit(ctx, "incidents", map[string]any{"n": float64(i)})
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.False(t, res.PersistedRemotely)
		assert.NotEmpty(t, res.QueueID)
	}

	assert.Equal(t, submits, engine.PendingCount())
	n, err := store.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, submits, n)
	assert.Zero(t, remote.calls.Load(), "offline submits must not touch the remote")
}

func TestEngine_ConcurrentOfflineSubmits(t *testing.T) {
	queue := &memQueue{}
	engine := newTestEngine(t, queue, &funcRemote{}, connectivity.New(false))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Submit(context.Background(), "incidents", map[string]any{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, engine.PendingCount())
}

// TestEngine_OnlineSubmitSuccess tests the synchronous success path
func TestEngine_OnlineSubmitSuccess(t *testing.T) {
	queue := &memQueue{}
	remote := &mockRemote{}
	record := map[string]any{"title": "Spill in aisle 4"}
	remote.On("Insert", mock.Anything, "incidents", record).Return(nil).Once()
	engine := newTestEngine(t, queue, remote, connectivity.New(true))

	res, err := engine.Submit(context.Background(), "incidents", record)

	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: true, PersistedRemotely: true}, res)
	assert.Zero(t, engine.PendingCount())
	remote.AssertExpectations(t)
}

// TestEngine_OnlineSubmitFallback tests that a remote failure while online
// queues the write instead of failing
func TestEngine_OnlineSubmitFallback(t *testing.T) {
	queue := &memQueue{}
	remote := &mockRemote{}
	remote.On("Insert", mock.Anything, "incidents", mock.Anything).Return(errRemoteDown).Once()
	engine := newTestEngine(t, queue, remote, connectivity.New(true))

	res, err := engine.Submit(context.Background(), "incidents", map[string]any{"title": "Broken till"})

	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.PersistedRemotely)
	assert.Equal(t, 1, engine.PendingCount())
	assert.Len(t, queue.items, 1)
	remote.AssertNumberOfCalls(t, "Insert", 1)
}

func TestEngine_RemoteTimeoutFallsBackToQueue(t *testing.T) {
	queue := &memQueue{}
	remote := &funcRemote{fn: func(ctx context.Context, _ string, _ map[string]any) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	engine, err := New(context.Background(), queue, remote, connectivity.New(true), logging.Discard(),
		Options{RemoteTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	res, err := engine.Submit(context.Background(), "incidents", map[string]any{})

	require.NoError(t, err)
	assert.False(t, res.PersistedRemotely)
	assert.Equal(t, 1, engine.PendingCount())
}

// TestEngine_StorageErrorSurfaces tests that the one hard failure reaches the caller
func TestEngine_StorageErrorSurfaces(t *testing.T) {
	queue := &memQueue{failEnqueue: true}
	engine := newTestEngine(t, queue, &funcRemote{}, connectivity.New(false))

	res, err := engine.Submit(context.Background(), "incidents", map[string]any{})

	require.Error(t, err)
	assert.ErrorIs(t, err, localstore.ErrStorage)
	assert.False(t, res.Accepted)
	assert.Zero(t, engine.PendingCount())
}

func TestEngine_DrainOfflineIsNoop(t *testing.T) {
	queue := &memQueue{}
	remote := &funcRemote{}
	engine := newTestEngine(t, queue, remote, connectivity.New(false))
	_, err := engine.Submit(context.Background(), "incidents", map[string]any{})
	require.NoError(t, err)

	res, err := engine.Drain(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, SkipOffline, res.Skipped)
	assert.Equal(t, 1, engine.PendingCount())
	assert.Zero(t, remote.calls.Load())
}

// TestEngine_AtMostOneDrain tests that a drain requested while another pass is
// in flight is coalesced
func TestEngine_AtMostOneDrain(t *testing.T) {
	queue := &memQueue{}
	monitor := connectivity.New(false)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	remote := &funcRemote{fn: func(ctx context.Context, _ string, _ map[string]any) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}}
	engine := newTestEngine(t, queue, remote, monitor)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.Submit(ctx, "incidents", map[string]any{"n": i})
		require.NoError(t, err)
	}
	monitor.Report(true)

	// ACT: first pass blocks inside the remote
	firstDone := make(chan DrainResult, 1)
	go func() {
		res, err := engine.Drain(ctx)
		assert.NoError(t, err)
		firstDone <- res
	}()
	<-entered
	assert.Equal(t, StateDraining, engine.State())

	second, err := engine.Drain(ctx)
	third, err2 := engine.Drain(ctx)

	// ASSERT: the extra triggers were no-ops
	require.NoError(t, err)
	require.NoError(t, err2)
	assert.Equal(t, SkipDraining, second.Skipped)
	assert.Equal(t, SkipDraining, third.Skipped)

	close(release)
	first := <-firstDone
	assert.True(t, first.Started)
	assert.Equal(t, 3, first.Succeeded)
	assert.Equal(t, int32(3), remote.calls.Load(), "each item sent exactly once")
	assert.Equal(t, StateIdle, engine.State())
	assert.Zero(t, engine.PendingCount())
}

// TestEngine_PartialFailureIsolation tests that one failing item does not
// block the others, and that a re-drain retries only what is left
func TestEngine_PartialFailureIsolation(t *testing.T) {
	store := openStore(t)
	monitor := connectivity.New(false)
	var failItem2 = true
	remote := &funcRemote{fn: func(ctx context.Context, _ string, record map[string]any) error {
		if record["n"] == 2.0 && failItem2 {
			return errRemoteDown
		}
		return nil
	}}
	engine := newTestEngine(t, store, remote, monitor)
	ctx := context.Background()

	for _, n := range []float64{1, 2, 3} {
		_, err := engine.Submit(ctx, "inventory_issues", map[string]any{"n": n})
		require.NoError(t, err)
	}
	monitor.Report(true)

	// ACT
	res, err := engine.Drain(ctx)

	// ASSERT: items 1 and 3 are gone, item 2 remains
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Started: true, Attempted: 3, Succeeded: 2, Failed: 1}, res)
	items, err := store.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].Payload["n"])
	assert.Equal(t, 1, engine.PendingCount())

	// ACT: re-drain once the remote accepts item 2
	failItem2 = false
	before := remote.calls.Load()
	res, err = engine.Drain(ctx)

	// ASSERT: only the leftover item was retried
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, int32(1), remote.calls.Load()-before)
	received := remote.Received()
	assert.Equal(t, 2.0, received[len(received)-1]["n"])
	assert.Zero(t, engine.PendingCount())
}

// TestEngine_WritesDuringPassWaitForNextPass tests that a pass only covers its
// starting snapshot
func TestEngine_WritesDuringPassWaitForNextPass(t *testing.T) {
	queue := &memQueue{}
	monitor := connectivity.New(false)
	entered := make(chan struct{})
	release := make(chan struct{})
	remote := &funcRemote{fn: func(ctx context.Context, _ string, record map[string]any) error {
		if record["late"] == true {
			return errRemoteDown
		}
		close(entered)
		<-release
		return nil
	}}
	engine := newTestEngine(t, queue, remote, monitor)
	ctx := context.Background()

	_, err := engine.Submit(ctx, "incidents", map[string]any{"late": false})
	require.NoError(t, err)
	monitor.Report(true)

	done := make(chan DrainResult, 1)
	go func() {
		res, _ := engine.Drain(ctx)
		done <- res
	}()
	<-entered

	// ACT: submit while the pass is blocked; the online attempt fails so it is queued
	res, err := engine.Submit(ctx, "incidents", map[string]any{"late": true})
	require.NoError(t, err)
	require.False(t, res.PersistedRemotely)
	assert.Equal(t, 2, engine.PendingCount())

	close(release)
	pass := <-done

	// ASSERT
	assert.Equal(t, 1, pass.Attempted)
	assert.Equal(t, 1, pass.Succeeded)
	assert.Equal(t, 1, engine.PendingCount())
	items, _ := queue.ListQueue(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, true, items[0].Payload["late"])
}

func TestEngine_PendingObserver(t *testing.T) {
	queue := &memQueue{}
	monitor := connectivity.New(false)
	engine := newTestEngine(t, queue, &funcRemote{}, monitor)
	ctx := context.Background()

	var seen []int
	unsubscribe := engine.OnPendingCountChanged(func(n int) { seen = append(seen, n) })

	_, _ = engine.Submit(ctx, "incidents", map[string]any{})
	_, _ = engine.Submit(ctx, "incidents", map[string]any{})
	monitor.Report(true)
	_, err := engine.Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 1, 0}, seen)

	unsubscribe()
	monitor.Report(false)
	_, _ = engine.Submit(ctx, "incidents", map[string]any{})
	assert.Len(t, seen, 4, "unsubscribed observer must not be called")
}

func TestEngine_NewLoadsPendingFromQueue(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := store.Enqueue(ctx, "checklists", map[string]any{"n": float64(i)})
		require.NoError(t, err)
	}

	engine := newTestEngine(t, store, &funcRemote{}, connectivity.New(false))

	assert.Equal(t, 4, engine.PendingCount())
}

func TestEngine_Reset(t *testing.T) {
	queue := &memQueue{}
	engine := newTestEngine(t, queue, &funcRemote{}, connectivity.New(false))
	_, _ = engine.Submit(context.Background(), "incidents", map[string]any{})
	_, _ = engine.Submit(context.Background(), "incidents", map[string]any{})

	discarded, err := engine.Reset(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, discarded)
	assert.Zero(t, engine.PendingCount())
	assert.Empty(t, queue.items)
}

// TestEngine_ResetDuringDrainStopsReplay tests that records discarded by a
// reset are not replayed by the pass that was already running
func TestEngine_ResetDuringDrainStopsReplay(t *testing.T) {
	// ARRANGE: three queued writes, the first replay blocks in the remote
	store := openStore(t)
	monitor := connectivity.New(false)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	remote := &funcRemote{fn: func(ctx context.Context, _ string, _ map[string]any) error {
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
		return nil
	}}
	engine := newTestEngine(t, store, remote, monitor)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.Submit(ctx, "incidents", map[string]any{"n": float64(i)})
		require.NoError(t, err)
	}
	monitor.Report(true)

	var counts []int
	var mu sync.Mutex
	engine.OnPendingCountChanged(func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	})

	done := make(chan DrainResult, 1)
	go func() {
		res, err := engine.Drain(ctx)
		assert.NoError(t, err)
		done <- res
	}()
	<-entered

	// ACT: the manager resets while the first insert is in flight
	discarded, err := engine.Reset(ctx)
	require.NoError(t, err)
	close(release)
	res := <-done

	// ASSERT: only the in-flight insert reached the remote, and nothing counts as sent
	assert.Equal(t, 3, discarded)
	assert.Equal(t, int32(1), remote.calls.Load())
	assert.Equal(t, 1, res.Attempted)
	assert.Zero(t, res.Succeeded)
	assert.Equal(t, 3, res.Discarded)
	assert.Zero(t, engine.PendingCount())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0}, counts, "the count never goes negative or double-decrements")
}

// TestEngine_DequeueOfMissingRowIsNotCounted tests that a replay whose row
// is already gone is neither a success nor a decrement
func TestEngine_DequeueOfMissingRowIsNotCounted(t *testing.T) {
	queue := &memQueue{}
	monitor := connectivity.New(false)
	remote := &funcRemote{}
	engine := newTestEngine(t, queue, remote, monitor)
	ctx := context.Background()

	_, err := engine.Submit(ctx, "incidents", map[string]any{})
	require.NoError(t, err)
	_, err = engine.Submit(ctx, "incidents", map[string]any{})
	require.NoError(t, err)

	// The first row disappears behind the engine's back once it is sent
	remote.fn = func(ctx context.Context, _ string, _ map[string]any) error {
		queue.mu.Lock()
		if len(queue.items) == 2 {
			queue.items = queue.items[1:]
		}
		queue.mu.Unlock()
		return nil
	}
	monitor.Report(true)

	res, err := engine.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Discarded)
	assert.Zero(t, engine.PendingCount())
}

// TestEngine_TriggerDrainAfterRunIsNoop tests that a late connectivity
// notification cannot start a pass once Run has returned
func TestEngine_TriggerDrainAfterRunIsNoop(t *testing.T) {
	queue := &memQueue{}
	monitor := connectivity.New(false)
	remote := &funcRemote{}
	engine := newTestEngine(t, queue, remote, monitor)

	_, err := engine.Submit(context.Background(), "incidents", map[string]any{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, engine.Run(ctx))

	monitor.Report(true)
	engine.TriggerDrain(context.Background())

	assert.Never(t, func() bool { return remote.calls.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 1, engine.PendingCount())
}

// TestEngine_RunDrainsOnReconnect tests that an offline to online transition
// replays the queue
func TestEngine_RunDrainsOnReconnect(t *testing.T) {
	queue := &memQueue{}
	monitor := connectivity.New(false)
	remote := &funcRemote{}
	engine := newTestEngine(t, queue, remote, monitor)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := engine.Submit(ctx, "incidents", map[string]any{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = engine.Run(ctx)
		close(done)
	}()

	// ACT: connectivity returns
	monitor.Report(true)

	// ASSERT
	require.Eventually(t, func() bool { return engine.PendingCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), remote.calls.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "draining", StateDraining.String())
}
