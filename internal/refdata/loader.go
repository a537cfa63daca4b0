// Package refdata serves reference collections (stores, submission types,
// product lists) that forms need while offline. Reads go to the remote store
// when it is reachable and fall back to the last copy kept locally.
package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/sirupsen/logrus"
)

var ErrNoReferenceData = errors.New("no reference data available")

type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
)

type Remote interface {
	List(ctx context.Context, collection string) ([]map[string]any, error)
}

type Cache interface {
	CachePut(ctx context.Context, key, collection string, value any) error
	CacheGet(ctx context.Context, key string) (models.CacheEntry, bool, error)
}

type Connectivity interface {
	Online() bool
}

// Data is one read of a reference collection.
type Data struct {
	Key       string          `json:"key"`
	Source    Source          `json:"source"`
	Rows      json.RawMessage `json:"rows"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Loader struct {
	remote  Remote
	cache   Cache
	conn    Connectivity
	log     logrus.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

func NewLoader(remote Remote, cache Cache, conn Connectivity, timeout time.Duration, log logrus.FieldLogger) *Loader {
	return &Loader{
		remote:  remote,
		cache:   cache,
		conn:    conn,
		timeout: timeout,
		log:     log.WithField("component", "refdata"),
		now:     time.Now,
	}
}

// Get returns collection's rows, cached under key. A remote failure is not an
// error when a cached copy exists. Cache failures always are.
func (l *Loader) Get(ctx context.Context, key, collection string) (*Data, error) {
	fields := logrus.Fields{"key": key, "collection": collection}

	if l.conn.Online() {
		data, err := l.fetch(ctx, key, collection)
		if err == nil {
			return data, nil
		}
		var cacheErr *cacheWriteError
		if errors.As(err, &cacheErr) {
			return nil, cacheErr.err
		}
		l.log.WithFields(fields).WithError(err).Warn("Remote read failed, using cached reference data")
	}

	entry, ok, err := l.cache.CacheGet(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReferenceData, key)
	}
	return &Data{
		Key:       key,
		Source:    SourceCache,
		Rows:      entry.Value,
		UpdatedAt: entry.UpdatedAt,
	}, nil
}

type cacheWriteError struct{ err error }

func (e *cacheWriteError) Error() string { return e.err.Error() }

func (l *Loader) fetch(ctx context.Context, key, collection string) (*Data, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	rows, err := l.remote.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reference rows: %w", err)
	}
	if err := l.cache.CachePut(context.WithoutCancel(ctx), key, collection, json.RawMessage(raw)); err != nil {
		return nil, &cacheWriteError{err: err}
	}

	return &Data{
		Key:       key,
		Source:    SourceRemote,
		Rows:      raw,
		UpdatedAt: l.now(),
	}, nil
}
