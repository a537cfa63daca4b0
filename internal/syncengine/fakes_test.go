package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prudhvinik1/storeledger/internal/localstore"
	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/stretchr/testify/mock"
)

// memQueue is an in-memory Queue with failure injection.
type memQueue struct {
	mu          sync.Mutex
	items       []models.QueuedWrite
	seq         int
	failEnqueue bool
}

func (q *memQueue) Enqueue(ctx context.Context, collection string, payload map[string]any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failEnqueue {
		return "", &localstore.StorageError{Op: "enqueue", Err: errors.New("disk full")}
	}
	q.seq++
	id := fmt.Sprintf("q-%d", q.seq)
	q.items = append(q.items, models.QueuedWrite{ID: id, Collection: collection, Payload: payload, EnqueuedAt: time.Now()})
	return id, nil
}

func (q *memQueue) ListQueue(ctx context.Context) ([]models.QueuedWrite, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueuedWrite, len(q.items))
	copy(out, q.items)
	return out, nil
}

func (q *memQueue) Dequeue(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (q *memQueue) QueueLength(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *memQueue) ClearAll(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	return nil
}

// funcRemote delegates each insert to fn and records every call.
type funcRemote struct {
	fn    func(ctx context.Context, collection string, record map[string]any) error
	calls atomic.Int32

	mu       sync.Mutex
	received []map[string]any
}

func (r *funcRemote) Insert(ctx context.Context, collection string, record map[string]any) error {
	r.calls.Add(1)
	r.mu.Lock()
	r.received = append(r.received, record)
	r.mu.Unlock()
	if r.fn == nil {
		return nil
	}
	return r.fn(ctx, collection, record)
}

func (r *funcRemote) Received() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, len(r.received))
	copy(out, r.received)
	return out
}

// mockRemote is a testify mock of Remote.
type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Insert(ctx context.Context, collection string, record map[string]any) error {
	args := m.Called(ctx, collection, record)
	return args.Error(0)
}
