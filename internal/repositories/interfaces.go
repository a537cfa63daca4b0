package repositories

import (
	"context"

	"github.com/prudhvinik1/storeledger/internal/models"
)

// SubmissionRepository is the remote structured-data store.
type SubmissionRepository interface {
	// Insert writes record verbatim into collection. Any error means the
	// write is not confirmed.
	Insert(ctx context.Context, collection string, record map[string]any) error
	// List returns every row of a reference collection (stores, submission types).
	List(ctx context.Context, collection string) ([]map[string]any, error)
	// Ping reports whether the remote store is reachable.
	Ping(ctx context.Context) error
}

type AgentStatusRepository interface {
	SetStatus(ctx context.Context, status *models.AgentStatus) error
	GetStatus(ctx context.Context, storeID string) (*models.AgentStatus, error)
	DeleteStatus(ctx context.Context, storeID string) error
}
