// Package syncengine decides, for every submission, whether it can be written
// to the remote store right away or has to wait in the local queue, and
// replays the queue when connectivity returns.
//
// The queue is the source of truth for what is unsent. The pending count is
// derived from it: every queue mutation and the matching count update happen
// under one lock, and the count is re-read from the store after each drain.
package syncengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/sirupsen/logrus"
)

// Queue is the durable local queue the engine owns. Nothing else may write
// to it while the engine is running.
type Queue interface {
	Enqueue(ctx context.Context, collection string, payload map[string]any) (string, error)
	ListQueue(ctx context.Context) ([]models.QueuedWrite, error)
	Dequeue(ctx context.Context, id string) (bool, error)
	QueueLength(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
}

// Remote is the remote structured-data store.
type Remote interface {
	Insert(ctx context.Context, collection string, record map[string]any) error
}

// Connectivity is the engine's view of the Connectivity Monitor.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

type State int32

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Result is returned by Submit. Accepted is always true when err is nil.
type Result struct {
	Accepted          bool   `json:"accepted"`
	PersistedRemotely bool   `json:"persisted_remotely"`
	QueueID           string `json:"queue_id,omitempty"`
}

// Reasons a drain did not start.
const (
	SkipOffline  = "offline"
	SkipDraining = "already draining"
)

type DrainResult struct {
	Started   bool   `json:"started"`
	Skipped   string `json:"skipped,omitempty"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	// Discarded counts items a Reset removed while the pass was running.
	Discarded int `json:"discarded,omitempty"`
}

type Options struct {
	// RemoteTimeout bounds each remote insert. Zero leaves it to the caller's
	// context and the remote client.
	RemoteTimeout time.Duration
}

type Engine struct {
	queue  Queue
	remote Remote
	conn   Connectivity
	log    logrus.FieldLogger
	opts   Options

	state atomic.Int32
	// epoch changes on every Reset; a pass stops replaying once it moves.
	epoch atomic.Uint64

	// queueMu pairs every queue mutation with its pending count update.
	queueMu sync.Mutex

	countMu sync.Mutex
	pending int

	obsMu     sync.Mutex
	observers map[int]func(int)
	nextObs   int
	// notifyMu keeps observer deliveries in the order the count changed.
	notifyMu sync.Mutex

	runMu   sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// New builds the engine and loads the pending count from the queue.
func New(ctx context.Context, queue Queue, remote Remote, conn Connectivity, log logrus.FieldLogger, opts Options) (*Engine, error) {
	n, err := queue.QueueLength(ctx)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		queue:     queue,
		remote:    remote,
		conn:      conn,
		log:       log.WithField("component", "syncengine"),
		opts:      opts,
		pending:   n,
		observers: make(map[int]func(int)),
	}
	e.state.Store(int32(StateIdle))
	return e, nil
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Online() bool {
	return e.conn.Online()
}

func (e *Engine) PendingCount() int {
	e.countMu.Lock()
	defer e.countMu.Unlock()
	return e.pending
}

// OnPendingCountChanged registers fn to be called synchronously with the new
// count after every enqueue and dequeue. fn must not call back into Submit,
// Drain or Reset.
func (e *Engine) OnPendingCountChanged(fn func(pending int)) (unsubscribe func()) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()

	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.obsMu.Lock()
			delete(e.observers, id)
			e.obsMu.Unlock()
		})
	}
}

// Submit writes record to collection, directly when online and through the
// local queue otherwise. A remote failure is never returned: the record is
// queued instead. The only error is a *localstore.StorageError from the
// queue, meaning the record was not saved anywhere.
func (e *Engine) Submit(ctx context.Context, collection string, record map[string]any) (Result, error) {
	fields := logrus.Fields{"collection": collection}

	if e.conn.Online() {
		err := e.insert(ctx, collection, record)
		if err == nil {
			e.log.WithFields(fields).Debug("Submission persisted remotely")
			return Result{Accepted: true, PersistedRemotely: true}, nil
		}
		e.log.WithFields(fields).WithError(err).Warn("Remote write failed, queueing submission")
	}

	// Once we get here the record must be queued even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	e.queueMu.Lock()
	id, err := e.queue.Enqueue(ctx, collection, record)
	if err != nil {
		e.queueMu.Unlock()
		e.log.WithFields(fields).WithError(err).Error("Failed to queue submission")
		return Result{}, err
	}
	pending := e.adjustPending(1)
	e.queueMu.Unlock()

	e.log.WithFields(fields).WithFields(logrus.Fields{"queue_id": id, "pending": pending}).Info("Submission queued")
	return Result{Accepted: true, PersistedRemotely: false, QueueID: id}, nil
}

// Drain replays every write queued at the moment the pass starts. It is a
// no-op when offline or when another pass is running. Items queued during
// the pass are left for the next one. A failed item stays queued and does
// not stop the rest of the pass.
func (e *Engine) Drain(ctx context.Context) (DrainResult, error) {
	if !e.conn.Online() {
		return DrainResult{Skipped: SkipOffline}, nil
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateDraining)) {
		return DrainResult{Skipped: SkipDraining}, nil
	}
	defer e.state.Store(int32(StateIdle))

	res := DrainResult{Started: true}

	e.queueMu.Lock()
	epoch := e.epoch.Load()
	items, err := e.queue.ListQueue(ctx)
	e.queueMu.Unlock()
	if err != nil {
		e.log.WithError(err).Error("Failed to read queue for drain")
		return res, err
	}
	if len(items) == 0 {
		return res, nil
	}

	e.log.WithField("items", len(items)).Info("Drain pass started")

	for i, item := range items {
		if ctx.Err() != nil {
			// Unattempted items simply stay queued for the next pass.
			break
		}
		if e.epoch.Load() != epoch {
			res.Discarded += len(items) - i
			e.log.WithField("discarded", len(items)-i).Warn("Queue reset during drain, pass abandoned")
			break
		}
		res.Attempted++
		fields := logrus.Fields{"collection": item.Collection, "queue_id": item.ID}

		if err := e.insert(ctx, item.Collection, item.Payload); err != nil {
			res.Failed++
			e.log.WithFields(fields).WithError(err).Warn("Replay failed, item stays queued")
			continue
		}

		removed, err := e.dequeue(context.WithoutCancel(ctx), item.ID)
		if err != nil {
			// The remote has the record but the queue still holds it; the next
			// pass will send it again.
			res.Failed++
			e.log.WithFields(fields).WithError(err).Error("Replayed item could not be removed from queue")
			continue
		}
		if !removed {
			// Reset removed the row while its insert was in flight
			res.Discarded++
			continue
		}
		res.Succeeded++
	}

	e.resync(context.WithoutCancel(ctx))

	e.log.WithFields(logrus.Fields{
		"attempted": res.Attempted,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"discarded": res.Discarded,
		"pending":   e.PendingCount(),
	}).Info("Drain pass finished")

	return res, nil
}

// Queued returns the writes currently waiting, for diagnostics.
func (e *Engine) Queued(ctx context.Context) ([]models.QueuedWrite, error) {
	return e.queue.ListQueue(ctx)
}

// Reset discards every queued write and the read cache, and returns how many
// writes were discarded. A pass in progress stops before its next replay; an
// insert already in flight cannot be recalled. Used on logout.
func (e *Engine) Reset(ctx context.Context) (int, error) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	n, err := e.queue.QueueLength(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.queue.ClearAll(ctx); err != nil {
		return 0, err
	}
	e.epoch.Add(1)
	e.setPending(0)
	e.log.WithField("discarded", n).Warn("Local queue and cache cleared")
	return n, nil
}

// Run drains once at startup if online and again on every offline to online
// transition, until ctx is cancelled. It waits for triggered passes to
// finish before returning.
func (e *Engine) Run(ctx context.Context) error {
	unsubscribe := e.conn.Subscribe(func(online bool) {
		if online {
			e.TriggerDrain(ctx)
		}
	})

	if e.conn.Online() {
		e.TriggerDrain(ctx)
	}

	<-ctx.Done()
	unsubscribe()

	// A notification already in delivery may still call TriggerDrain.
	e.runMu.Lock()
	e.stopped = true
	e.runMu.Unlock()

	e.wg.Wait()
	return nil
}

// TriggerDrain starts a drain pass in the background. Redundant triggers
// coalesce into the pass already running. After Run has returned, or once
// ctx is done, it does nothing.
func (e *Engine) TriggerDrain(ctx context.Context) {
	if ctx.Err() != nil || e.State() == StateDraining {
		return
	}

	e.runMu.Lock()
	if e.stopped {
		e.runMu.Unlock()
		return
	}
	e.wg.Add(1)
	e.runMu.Unlock()

	go func() {
		defer e.wg.Done()
		if _, err := e.Drain(ctx); err != nil {
			e.log.WithError(err).Error("Background drain failed")
		}
	}()
}

func (e *Engine) insert(ctx context.Context, collection string, record map[string]any) error {
	if e.opts.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RemoteTimeout)
		defer cancel()
	}
	return e.remote.Insert(ctx, collection, record)
}

func (e *Engine) dequeue(ctx context.Context, id string) (bool, error) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	removed, err := e.queue.Dequeue(ctx, id)
	if err != nil || !removed {
		return false, err
	}
	e.adjustPending(-1)
	return true, nil
}

// resync replaces the pending count with the queue's true length.
func (e *Engine) resync(ctx context.Context) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	n, err := e.queue.QueueLength(ctx)
	if err != nil {
		e.log.WithError(err).Warn("Failed to recount queue")
		return
	}
	e.setPending(n)
}

// adjustPending moves the count by delta, never below zero, and notifies
// observers. It returns the new count.
func (e *Engine) adjustPending(delta int) int {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.countMu.Lock()
	e.pending += delta
	if e.pending < 0 {
		e.pending = 0
	}
	n := e.pending
	e.countMu.Unlock()

	e.notify(n)
	return n
}

func (e *Engine) setPending(n int) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.countMu.Lock()
	changed := e.pending != n
	e.pending = n
	e.countMu.Unlock()

	if changed {
		e.notify(n)
	}
}

func (e *Engine) notify(n int) {
	e.obsMu.Lock()
	fns := make([]func(int), 0, len(e.observers))
	for id := 0; id < e.nextObs; id++ {
		if fn, ok := e.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	e.obsMu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}
