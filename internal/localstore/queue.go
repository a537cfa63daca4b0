package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/storeledger/internal/models"
)

// maxIDAttempts bounds id regeneration when a fresh uuid collides with one
// already issued.
const maxIDAttempts = 3

var errIDExhausted = errors.New("could not allocate an unused queue id")

func newQueueID() string {
	return uuid.New().String()
}

// Enqueue persists a write for later replay and returns its id. The row is
// committed before Enqueue returns.
func (s *Store) Enqueue(ctx context.Context, collection string, payload map[string]any) (string, error) {
	if collection == "" {
		return "", storageErr("enqueue", errors.New("collection is required"))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", storageErr("enqueue", fmt.Errorf("failed to encode payload: %w", err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storageErr("enqueue", err)
	}
	defer tx.Rollback() // No-op if committed

	var id string
	for attempt := 0; attempt < maxIDAttempts && id == ""; attempt++ {
		candidate := s.newID()
		res, err := tx.ExecContext(ctx, `INSERT INTO issued_ids (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, candidate)
		if err != nil {
			return "", storageErr("enqueue", fmt.Errorf("failed to reserve id: %w", err))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			id = candidate
		}
	}
	if id == "" {
		return "", storageErr("enqueue", errIDExhausted)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO offline_queue (id, collection, data, enqueued_at) VALUES (?, ?, ?, ?)`,
		id, collection, string(data), s.now().UnixNano(),
	)
	if err != nil {
		return "", storageErr("enqueue", fmt.Errorf("failed to insert queued write: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("enqueue", err)
	}
	return id, nil
}

// ListQueue returns every queued write, oldest first.
func (s *Store) ListQueue(ctx context.Context) ([]models.QueuedWrite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collection, data, enqueued_at FROM offline_queue ORDER BY enqueued_at ASC, id ASC`)
	if err != nil {
		return nil, storageErr("list", fmt.Errorf("failed to query queue: %w", err))
	}
	defer rows.Close()

	var items []models.QueuedWrite
	for rows.Next() {
		var (
			item       models.QueuedWrite
			data       string
			enqueuedAt int64
		)
		if err := rows.Scan(&item.ID, &item.Collection, &data, &enqueuedAt); err != nil {
			return nil, storageErr("list", fmt.Errorf("failed to scan queued write: %w", err))
		}
		if err := json.Unmarshal([]byte(data), &item.Payload); err != nil {
			return nil, storageErr("list", fmt.Errorf("corrupt payload for %s: %w", item.ID, err))
		}
		item.EnqueuedAt = time.Unix(0, enqueuedAt)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("list", fmt.Errorf("error iterating queue: %w", err))
	}
	return items, nil
}

// Dequeue removes the write with the given id and reports whether a row was
// removed. Removing an unknown id is not an error.
func (s *Store) Dequeue(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id)
	if err != nil {
		return false, storageErr("dequeue", fmt.Errorf("failed to delete queued write: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("dequeue", fmt.Errorf("failed to read affected rows: %w", err))
	}
	return n == 1, nil
}

// QueueLength counts the rows currently queued.
func (s *Store) QueueLength(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, storageErr("count", fmt.Errorf("failed to count queue: %w", err))
	}
	return n, nil
}
